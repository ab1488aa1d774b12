// HTTP handlers for interview scheduling.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	POST /interviews                    → schedule (employer only)
//	GET  /interviews/upcoming           → caller's upcoming interviews
//	POST /interviews/{id}/status        → state machine transitions
//	POST /interviews/{id}/reschedule    → new time, resets the reminder
package interview

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobconnect/realtime-service/internal/notify"
)

// Interview is the JSON shape returned to the Gateway.
type Interview struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	JobID         string    `json:"jobId"`
	EmployerID    string    `json:"employerId"`
	SeekerID      string    `json:"seekerId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	DurationMins  int       `json:"durationMinutes"`
	Location      *string   `json:"location"`
	MeetingLink   *string   `json:"meetingLink"`
	Status        string    `json:"status"`
	ReminderSent  bool      `json:"reminderSent"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

const interviewColumns = `id, application_id, job_id, employer_id, seeker_id,
	scheduled_time, duration_minutes, location, meeting_link, status,
	reminder_sent, created_at, updated_at`

// Handler holds shared dependencies for the interview routes.
type Handler struct {
	pool     *pgxpool.Pool
	notifier *notify.Publisher
}

// NewHandler returns a configured Handler.
func NewHandler(pool *pgxpool.Pool, notifier *notify.Publisher) *Handler {
	return &Handler{pool: pool, notifier: notifier}
}

// RegisterRoutes mounts the interview routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/interviews", h.handleInterviews)
	mux.HandleFunc("/interviews/upcoming", h.upcoming)
	mux.HandleFunc("/interviews/", h.handleInterviewAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func (h *Handler) handleInterviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.create(w, r)
}

// handleInterviewAction handles POST /interviews/{id}/status|reschedule
func (h *Handler) handleInterviewAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	id := parts[1]

	switch parts[2] {
	case "status":
		h.updateStatus(w, r, id)
	case "reschedule":
		h.reschedule(w, r, id)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", parts[2]), http.StatusNotFound)
	}
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		ApplicationID string  `json:"applicationId"`
		ScheduledTime string  `json:"scheduledTime"`
		DurationMins  int     `json:"durationMinutes"`
		Location      *string `json:"location"`
		MeetingLink   *string `json:"meetingLink"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil ||
		body.ApplicationID == "" || body.ScheduledTime == "" {
		jsonError(w, "body must contain applicationId and scheduledTime", http.StatusBadRequest)
		return
	}

	when, err := time.Parse(time.RFC3339, body.ScheduledTime)
	if err != nil {
		jsonError(w, "scheduledTime must be RFC3339", http.StatusBadRequest)
		return
	}
	if when.Before(time.Now()) {
		jsonError(w, "scheduledTime must be in the future", http.StatusBadRequest)
		return
	}
	if body.DurationMins <= 0 {
		body.DurationMins = 30
	}

	// The application must be to one of the caller's jobs — only the
	// employer side schedules interviews.
	var jobID, seekerID string
	err = h.pool.QueryRow(r.Context(),
		`SELECT a.job_id, a.seeker_id
		 FROM applications a
		 JOIN jobs j ON j.id = a.job_id
		 WHERE a.id = $1 AND j.employer_id = $2`,
		body.ApplicationID, userID,
	).Scan(&jobID, &seekerID)
	if err != nil {
		jsonError(w, "application not found", http.StatusNotFound)
		return
	}

	var iv Interview
	err = scanInterview(h.pool.QueryRow(r.Context(),
		fmt.Sprintf(`INSERT INTO interviews
		   (id, application_id, job_id, employer_id, seeker_id,
		    scheduled_time, duration_minutes, location, meeting_link, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'SCHEDULED')
		 RETURNING %s`, interviewColumns),
		uuid.New().String(), body.ApplicationID, jobID, userID, seekerID,
		when, body.DurationMins, body.Location, body.MeetingLink), &iv)
	if err != nil {
		log.Printf("[realtime] create interview error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	// Tell the seeker (non-fatal).
	if err := h.notifier.InterviewUpdate(r.Context(), seekerID, iv.ID,
		"Interview scheduled",
		"An interview has been scheduled for "+when.Format(time.RFC1123)); err != nil {
		slog.Warn("interview notification failed", "interviewId", iv.ID, "err", err)
	}

	jsonOK(w, iv)
}

func (h *Handler) upcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	rows, err := h.pool.Query(r.Context(),
		fmt.Sprintf(`SELECT %s FROM interviews
		 WHERE (employer_id = $1 OR seeker_id = $1)
		   AND scheduled_time > NOW()
		   AND status IN ('SCHEDULED', 'CONFIRMED', 'RESCHEDULED')
		 ORDER BY scheduled_time ASC`, interviewColumns),
		userID)
	if err != nil {
		log.Printf("[realtime] upcoming interviews query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := make([]Interview, 0)
	for rows.Next() {
		var iv Interview
		if err := scanInterview(rows, &iv); err != nil {
			log.Printf("[realtime] upcoming interviews scan error: %v", err)
			jsonError(w, "database error", http.StatusInternalServerError)
			return
		}
		out = append(out, iv)
	}
	jsonOK(w, out)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		NewStatus string `json:"newStatus"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NewStatus == "" {
		jsonError(w, "body must contain newStatus", http.StatusBadRequest)
		return
	}

	newStatus, err := ParseStatus(body.NewStatus)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Fetch current state (also checks participation).
	var currentStr, counterpart string
	err = h.pool.QueryRow(r.Context(),
		`SELECT status,
		        CASE WHEN employer_id = $2 THEN seeker_id ELSE employer_id END
		 FROM interviews
		 WHERE id = $1 AND (employer_id = $2 OR seeker_id = $2)`,
		id, userID,
	).Scan(&currentStr, &counterpart)
	if err != nil {
		jsonError(w, "interview not found", http.StatusNotFound)
		return
	}

	current, _ := ParseStatus(currentStr)
	if !IsTransitionAllowed(current, newStatus) {
		jsonError(w, fmt.Sprintf("transition %s → %s is not allowed", current, newStatus), http.StatusBadRequest)
		return
	}

	var iv Interview
	err = scanInterview(h.pool.QueryRow(r.Context(),
		fmt.Sprintf(`UPDATE interviews
		 SET status = $1::interview_status, updated_at = NOW()
		 WHERE id = $2
		 RETURNING %s`, interviewColumns),
		string(newStatus), id), &iv)
	if err != nil {
		log.Printf("[realtime] interview status update error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	if err := h.notifier.InterviewUpdate(r.Context(), counterpart, iv.ID,
		"Interview "+strings.ToLower(string(newStatus)),
		fmt.Sprintf("Interview status changed to %s", newStatus)); err != nil {
		slog.Warn("interview notification failed", "interviewId", iv.ID, "err", err)
	}

	jsonOK(w, iv)
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request, id string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	var body struct {
		ScheduledTime string `json:"scheduledTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ScheduledTime == "" {
		jsonError(w, "body must contain scheduledTime", http.StatusBadRequest)
		return
	}
	when, err := time.Parse(time.RFC3339, body.ScheduledTime)
	if err != nil {
		jsonError(w, "scheduledTime must be RFC3339", http.StatusBadRequest)
		return
	}
	if when.Before(time.Now()) {
		jsonError(w, "scheduledTime must be in the future", http.StatusBadRequest)
		return
	}

	var currentStr, counterpart string
	err = h.pool.QueryRow(r.Context(),
		`SELECT status,
		        CASE WHEN employer_id = $2 THEN seeker_id ELSE employer_id END
		 FROM interviews
		 WHERE id = $1 AND (employer_id = $2 OR seeker_id = $2)`,
		id, userID,
	).Scan(&currentStr, &counterpart)
	if err != nil {
		jsonError(w, "interview not found", http.StatusNotFound)
		return
	}

	current, _ := ParseStatus(currentStr)
	if !IsTransitionAllowed(current, StatusRescheduled) {
		jsonError(w, fmt.Sprintf("cannot reschedule an interview in status %s", current), http.StatusBadRequest)
		return
	}

	// A new time means a new reminder.
	var iv Interview
	err = scanInterview(h.pool.QueryRow(r.Context(),
		fmt.Sprintf(`UPDATE interviews
		 SET status = 'RESCHEDULED',
		     scheduled_time = $1,
		     reminder_sent = false,
		     updated_at = NOW()
		 WHERE id = $2
		 RETURNING %s`, interviewColumns),
		when, id), &iv)
	if err != nil {
		log.Printf("[realtime] interview reschedule error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	if err := h.notifier.InterviewUpdate(r.Context(), counterpart, iv.ID,
		"Interview rescheduled",
		"Interview moved to "+when.Format(time.RFC1123)); err != nil {
		slog.Warn("interview notification failed", "interviewId", iv.ID, "err", err)
	}

	jsonOK(w, iv)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner, iv *Interview) error {
	return row.Scan(
		&iv.ID, &iv.ApplicationID, &iv.JobID, &iv.EmployerID, &iv.SeekerID,
		&iv.ScheduledTime, &iv.DurationMins, &iv.Location, &iv.MeetingLink,
		&iv.Status, &iv.ReminderSent, &iv.CreatedAt, &iv.UpdatedAt,
	)
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
