// HTTP handlers for the notification inbox.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /notifications               → list caller's notifications
//	GET  /notifications/unread-count  → unread total for badges
//	POST /notifications/read          → mark ids (or all) read
package notify

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler holds shared dependencies for the notification routes.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler returns a configured Handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes mounts the notification routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/notifications", h.list)
	mux.HandleFunc("/notifications/unread-count", h.unreadCount)
	mux.HandleFunc("/notifications/read", h.markRead)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	query := `SELECT id, user_id, type, title, content, related_id, is_read, read_at, created_at
	          FROM notifications WHERE user_id = $1`
	if r.URL.Query().Get("unread") == "true" {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := h.pool.Query(r.Context(), query, userID)
	if err != nil {
		log.Printf("[realtime] list notifications query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Content,
			&n.RelatedID, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			log.Printf("[realtime] list notifications scan error: %v", err)
			jsonError(w, "database error", http.StatusInternalServerError)
			return
		}
		out = append(out, n)
	}
	jsonOK(w, out)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var count int
	err := h.pool.QueryRow(r.Context(),
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		log.Printf("[realtime] unread count query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]int{"unreadCount": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		IDs []string `json:"ids"`
		All bool     `json:"all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || (!body.All && len(body.IDs) == 0) {
		jsonError(w, "body must contain ids or all=true", http.StatusBadRequest)
		return
	}

	var err error
	if body.All {
		_, err = h.pool.Exec(r.Context(),
			`UPDATE notifications SET is_read = true, read_at = NOW()
			 WHERE user_id = $1 AND is_read = false`,
			userID)
	} else {
		_, err = h.pool.Exec(r.Context(),
			`UPDATE notifications SET is_read = true, read_at = NOW()
			 WHERE user_id = $1 AND id = ANY($2) AND is_read = false`,
			userID, body.IDs)
	}
	if err != nil {
		log.Printf("[realtime] mark notifications read error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, map[string]string{"status": "ok"})
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
