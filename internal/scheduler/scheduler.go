// Package scheduler wires up the cron job that sends interview
// reminders ahead of their scheduled time.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"jobconnect/realtime-service/internal/chat"
	"jobconnect/realtime-service/internal/notify"
)

// Pusher is the slice of the hub the scheduler pushes live reminders
// through.
type Pusher interface {
	SendToUser(userID string, data []byte) bool
}

// reminderEvent is the websocket payload for a live reminder.
type reminderEvent struct {
	InterviewID   string    `json:"interviewId"`
	JobID         string    `json:"jobId"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

// Scheduler wraps robfig/cron and manages the reminder sweep.
type Scheduler struct {
	cron     *cron.Cron
	pool     *pgxpool.Pool
	notifier *notify.Publisher
	hub      Pusher
	spec     string        // cron spec, e.g. "@every 1h"
	window   time.Duration // how far ahead reminders go out
}

// New creates a Scheduler that fires every sweepHours hours and reminds
// participants of interviews starting within windowHours.
func New(pool *pgxpool.Pool, notifier *notify.Publisher, hub Pusher, sweepHours, windowHours int) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cron.DefaultLogger)),
		pool:     pool,
		notifier: notifier,
		hub:      hub,
		spec:     fmt.Sprintf("@every %dh", sweepHours),
		window:   time.Duration(windowHours) * time.Hour,
	}
}

// Start registers the job and starts the scheduler. Also runs one sweep
// immediately so reminders aren't delayed by the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s, window: %s", s.spec, s.window)

	// Run immediately on startup (non-blocking)
	go s.runSweep(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

// runSweep claims and delivers all due reminders. Claiming flips
// reminder_sent in the same statement that selects, so overlapping
// sweeps (or a second instance) cannot double-send.
func (s *Scheduler) runSweep(ctx context.Context) {
	log.Println("[scheduler] Reminder sweep started")

	rows, err := s.pool.Query(ctx,
		`UPDATE interviews
		 SET reminder_sent = true, updated_at = NOW()
		 WHERE reminder_sent = false
		   AND status IN ('SCHEDULED', 'CONFIRMED', 'RESCHEDULED')
		   AND scheduled_time > NOW()
		   AND scheduled_time <= NOW() + $1
		 RETURNING id, job_id, employer_id, seeker_id, scheduled_time`,
		s.window)
	if err != nil {
		log.Printf("[scheduler] claim query error: %v", err)
		return
	}
	defer rows.Close()

	type due struct {
		id, jobID, employerID, seekerID string
		when                            time.Time
	}
	claimed := make([]due, 0)
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.id, &d.jobID, &d.employerID, &d.seekerID, &d.when); err != nil {
			log.Printf("[scheduler] claim scan error: %v", err)
			return
		}
		claimed = append(claimed, d)
	}

	if len(claimed) == 0 {
		log.Println("[scheduler] No reminders due")
		return
	}

	for _, d := range claimed {
		s.remind(ctx, d.id, d.jobID, d.employerID, d.when)
		s.remind(ctx, d.id, d.jobID, d.seekerID, d.when)
	}

	log.Printf("[scheduler] Reminder sweep complete — %d interview(s)", len(claimed))
}

// remind delivers one participant's reminder: a persisted notification
// plus a live hub push when they're connected. Failures are logged and
// skipped; the claim already happened, so a partial delivery is not
// retried.
func (s *Scheduler) remind(ctx context.Context, interviewID, jobID, userID string, when time.Time) {
	if err := s.notifier.InterviewReminder(ctx, userID, interviewID,
		"Upcoming interview",
		"You have an interview at "+when.Format(time.RFC1123)); err != nil {
		log.Printf("[scheduler] reminder notification failed for interview %s: %v", interviewID, err)
	}

	frame, err := chat.EncodeEvent("interview_reminder", reminderEvent{
		InterviewID:   interviewID,
		JobID:         jobID,
		ScheduledTime: when,
	})
	if err != nil {
		log.Printf("[scheduler] encode reminder event failed: %v", err)
		return
	}
	s.hub.SendToUser(userID, frame)
}
