// jobconnect-realtime-service
//
// Match scoring and realtime messaging for the recruitment marketplace.
// Exposes:
//   - match-annotated job listing and recommendations (HTTP, via Gateway)
//   - application creation with stored match score (HTTP)
//   - the chat hub (websocket: rooms, messages, unread accounting)
//   - interview scheduling with cron-driven reminders
//   - the notification inbox
//
// Publishes EVENT_NEW_MESSAGE / EVENT_MESSAGES_READ /
// EVENT_INTERVIEW_REMINDER to Redis for Gateway push forwarders.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobconnect/realtime-service/internal/chat"
	"jobconnect/realtime-service/internal/config"
	"jobconnect/realtime-service/internal/db"
	"jobconnect/realtime-service/internal/identity"
	"jobconnect/realtime-service/internal/interview"
	"jobconnect/realtime-service/internal/match"
	"jobconnect/realtime-service/internal/notify"
	"jobconnect/realtime-service/internal/scheduler"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[realtime-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[realtime-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[realtime-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[realtime-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[realtime-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[realtime-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[realtime-service] Redis connected ✓")

	// ── Wiring ───────────────────────────────────────────────────────────────
	notifier := notify.NewPublisher(pool, rdb)
	hub := chat.NewHub()
	chatSvc := chat.NewService(chat.NewPgStore(pool), hub, notifier)
	verifier := identity.NewPgVerifier(pool)

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	chat.NewHandler(hub, chatSvc, verifier).RegisterRoutes(mux)
	match.NewHandler(pool).RegisterRoutes(mux)
	notify.NewHandler(pool).RegisterRoutes(mux)
	interview.NewHandler(pool, notifier).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: it would sever long-lived websocket
		// connections. The chat write path enforces its own deadlines.
	}

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(pool, notifier, hub, cfg.ReminderSweepHours, cfg.ReminderWindowHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[realtime-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	go func() {
		log.Printf("[realtime-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[realtime-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[realtime-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[realtime-service] Shutdown error: %v", err)
	}
	log.Println("[realtime-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "realtime-service",
		"version": version,
	})
}
