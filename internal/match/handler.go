// HTTP handlers for the scoring surfaces.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /jobs              → open jobs, match-annotated for seekers
//	GET  /jobs/recommended  → seeker-only ranking by match score
//	POST /applications      → apply to a job, score stored on the row
//	GET  /applications      → caller's applications (either side)
package match

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobconnect/realtime-service/internal/identity"
)

// ─── Response types ───────────────────────────────────────────────────────────

// JobView is the JSON shape returned for job listings. MatchScore is only
// present for seeker callers with a usable profile; InsufficientData marks
// the neutral-50 case so clients don't render it as a genuine mid match.
type JobView struct {
	ID                 string    `json:"id"`
	EmployerID         string    `json:"employerId"`
	Title              string    `json:"title"`
	Location           string    `json:"location"`
	IsRemote           bool      `json:"isRemote"`
	SalaryMin          *int      `json:"salaryMin"`
	SalaryMax          *int      `json:"salaryMax"`
	SalaryType         string    `json:"salaryType"`
	EducationRequired  string    `json:"educationRequired"`
	ExperienceRequired string    `json:"experienceRequired"`
	SkillsRequired     []string  `json:"skillsRequired"`
	CreatedAt          time.Time `json:"createdAt"`

	MatchScore       *int `json:"matchScore,omitempty"`
	InsufficientData bool `json:"insufficientData,omitempty"`
}

// ApplicationView is the JSON shape for application rows.
type ApplicationView struct {
	ID         string    `json:"id"`
	JobID      string    `json:"jobId"`
	SeekerID   string    `json:"seekerId"`
	Status     string    `json:"status"`
	MatchScore *int      `json:"matchScore"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies for the scoring routes.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler returns a configured Handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes mounts the scoring routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/jobs", h.handleJobs)
	mux.HandleFunc("/jobs/recommended", h.handleRecommended)
	mux.HandleFunc("/applications", h.handleApplications)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listJobs(w, r)
}

func (h *Handler) handleRecommended(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.recommendedJobs(w, r)
}

func (h *Handler) handleApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listApplications(w, r)
	case http.MethodPost:
		h.createApplication(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r, h.pool)
	if !ok {
		return
	}

	page, limit := pagination(r)
	jobs, err := h.loadOpenJobs(r.Context(), limit, (page-1)*limit)
	if err != nil {
		log.Printf("[realtime] listJobs query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	if caller.Role == identity.RoleSeeker {
		h.annotate(r.Context(), caller.ID, jobs)
	}

	jsonOK(w, jobs)
}

func (h *Handler) recommendedJobs(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r, h.pool)
	if !ok {
		return
	}
	if caller.Role != identity.RoleSeeker {
		jsonError(w, "recommendations are only available to seekers", http.StatusForbidden)
		return
	}

	profile, resume, err := h.loadSeekerInputs(r.Context(), caller.ID)
	if err != nil {
		log.Printf("[realtime] recommendedJobs profile load error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		jsonError(w, "complete your profile to get recommendations", http.StatusBadRequest)
		return
	}

	// Score the whole open set, then paginate the ranked result: the sort
	// key is derived, so it cannot be pushed into SQL.
	jobs, err := h.loadOpenJobs(r.Context(), 500, 0)
	if err != nil {
		log.Printf("[realtime] recommendedJobs query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	for i := range jobs {
		score, sub := Breakdown(jobToInput(&jobs[i]), profile, resume)
		s := score
		jobs[i].MatchScore = &s
		jobs[i].InsufficientData = sub.Included() == 0
	}

	// Genuine scores rank above insufficient-data neutrals regardless of
	// the neutral's numeric value.
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].InsufficientData != jobs[j].InsufficientData {
			return !jobs[i].InsufficientData
		}
		return *jobs[i].MatchScore > *jobs[j].MatchScore
	})

	page, limit := pagination(r)
	start := (page - 1) * limit
	if start > len(jobs) {
		start = len(jobs)
	}
	end := start + limit
	if end > len(jobs) {
		end = len(jobs)
	}
	jsonOK(w, jobs[start:end])
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r, h.pool)
	if !ok {
		return
	}
	if caller.Role != identity.RoleSeeker {
		jsonError(w, "only seekers can apply to jobs", http.StatusForbidden)
		return
	}

	var body struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.JobID == "" {
		jsonError(w, "body must contain jobId", http.StatusBadRequest)
		return
	}

	job, err := h.loadJob(r.Context(), body.JobID)
	if err != nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if job.Status != "open" {
		jsonError(w, "job is not accepting applications", http.StatusBadRequest)
		return
	}

	// Score once at application time; the stored value is what the
	// employer sees, even if the profile changes later.
	var scorePtr *int
	profile, resume, err := h.loadSeekerInputs(r.Context(), caller.ID)
	if err != nil {
		log.Printf("[realtime] createApplication profile load error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if profile != nil {
		score := Score(&job.Job, profile, resume)
		scorePtr = &score
	}

	var app ApplicationView
	err = h.pool.QueryRow(r.Context(),
		`INSERT INTO applications (job_id, seeker_id, status, match_score)
		 VALUES ($1, $2, 'pending', $3)
		 ON CONFLICT (job_id, seeker_id) DO NOTHING
		 RETURNING id, job_id, seeker_id, status, match_score, created_at, updated_at`,
		body.JobID, caller.ID, scorePtr,
	).Scan(&app.ID, &app.JobID, &app.SeekerID, &app.Status, &app.MatchScore,
		&app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		jsonError(w, "you have already applied to this job", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("[realtime] createApplication insert error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, app)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(w, r, h.pool)
	if !ok {
		return
	}

	var (
		rows pgx.Rows
		err  error
	)
	if caller.Role == identity.RoleEmployer {
		rows, err = h.pool.Query(r.Context(),
			`SELECT a.id, a.job_id, a.seeker_id, a.status, a.match_score, a.created_at, a.updated_at
			 FROM applications a
			 JOIN jobs j ON j.id = a.job_id
			 WHERE j.employer_id = $1
			 ORDER BY a.created_at DESC`,
			caller.ID)
	} else {
		rows, err = h.pool.Query(r.Context(),
			`SELECT id, job_id, seeker_id, status, match_score, created_at, updated_at
			 FROM applications
			 WHERE seeker_id = $1
			 ORDER BY created_at DESC`,
			caller.ID)
	}
	if err != nil {
		log.Printf("[realtime] listApplications query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	apps := make([]ApplicationView, 0)
	for rows.Next() {
		var a ApplicationView
		if err := rows.Scan(&a.ID, &a.JobID, &a.SeekerID, &a.Status, &a.MatchScore,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			log.Printf("[realtime] listApplications scan error: %v", err)
			jsonError(w, "database error", http.StatusInternalServerError)
			return
		}
		apps = append(apps, a)
	}

	jsonOK(w, apps)
}

// ─── Data loading ─────────────────────────────────────────────────────────────

// jobRecord is a jobs row plus the scorer inputs embedded in it.
type jobRecord struct {
	Job
	ID         string
	EmployerID string
	Title      string
	Status     string
	CreatedAt  time.Time
}

func (h *Handler) loadJob(ctx context.Context, jobID string) (*jobRecord, error) {
	var (
		j         jobRecord
		rawSkills []byte
	)
	err := h.pool.QueryRow(ctx,
		`SELECT id, employer_id, title, status, location, is_remote,
		        salary_min, salary_max, salary_type,
		        education_required, experience_required, skills_required,
		        created_at
		 FROM jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &j.EmployerID, &j.Title, &j.Status, &j.Location, &j.IsRemote,
		&j.SalaryMin, &j.SalaryMax, &j.SalaryType,
		&j.EducationRequired, &j.ExperienceRequired, &rawSkills,
		&j.CreatedAt)
	if err != nil {
		return nil, err
	}
	j.SkillsRequired = decodeStringList(rawSkills)
	return &j, nil
}

func (h *Handler) loadOpenJobs(ctx context.Context, limit, offset int) ([]JobView, error) {
	rows, err := h.pool.Query(ctx,
		`SELECT id, employer_id, title, location, is_remote,
		        salary_min, salary_max, salary_type,
		        education_required, experience_required, skills_required,
		        created_at
		 FROM jobs
		 WHERE status = 'open'
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]JobView, 0)
	for rows.Next() {
		var (
			j         JobView
			rawSkills []byte
		)
		if err := rows.Scan(&j.ID, &j.EmployerID, &j.Title, &j.Location, &j.IsRemote,
			&j.SalaryMin, &j.SalaryMax, &j.SalaryType,
			&j.EducationRequired, &j.ExperienceRequired, &rawSkills,
			&j.CreatedAt); err != nil {
			return nil, err
		}
		j.SkillsRequired = decodeStringList(rawSkills)
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// loadSeekerInputs loads the profile and default resume used as scorer
// inputs. A missing profile returns (nil, nil, nil): scoring is simply
// skipped, per the degraded-data rules.
func (h *Handler) loadSeekerInputs(ctx context.Context, seekerID string) (*SeekerProfile, *Resume, error) {
	var (
		p         SeekerProfile
		rawSkills []byte
		rawPrefs  []byte
		// Nullable text columns: a partial profile leaves these NULL,
		// which maps to the scorer's unset-field behavior, not an error.
		education *string
		location  *string
	)
	err := h.pool.QueryRow(ctx,
		`SELECT skills, education_level, work_experience_years,
		        expected_salary_min, expected_salary_max,
		        current_location, job_preferences
		 FROM seeker_profiles WHERE user_id = $1`,
		seekerID,
	).Scan(&rawSkills, &education, &p.WorkExperienceYears,
		&p.ExpectedSalaryMin, &p.ExpectedSalaryMax,
		&location, &rawPrefs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if education != nil {
		p.EducationLevel = *education
	}
	if location != nil {
		p.CurrentLocation = *location
	}
	p.Skills = decodeStringList(rawSkills)
	if len(rawPrefs) > 0 {
		var prefs Preferences
		if json.Unmarshal(rawPrefs, &prefs) == nil {
			p.Preferences = &prefs
		}
	}

	var rawExtracted []byte
	err = h.pool.QueryRow(ctx,
		`SELECT extracted_skills
		 FROM resumes
		 WHERE user_id = $1 AND status = 'active' AND is_default = true
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		seekerID,
	).Scan(&rawExtracted)
	if errors.Is(err, pgx.ErrNoRows) {
		return &p, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &p, &Resume{ExtractedSkills: decodeStringList(rawExtracted)}, nil
}

// annotate fills MatchScore on each job for the given seeker. Any load
// failure leaves the listing un-annotated rather than failing the request.
func (h *Handler) annotate(ctx context.Context, seekerID string, jobs []JobView) {
	profile, resume, err := h.loadSeekerInputs(ctx, seekerID)
	if err != nil {
		log.Printf("[realtime] annotate profile load error: %v", err)
		return
	}
	if profile == nil {
		return
	}
	for i := range jobs {
		score, sub := Breakdown(jobToInput(&jobs[i]), profile, resume)
		s := score
		jobs[i].MatchScore = &s
		jobs[i].InsufficientData = sub.Included() == 0
	}
}

func jobToInput(j *JobView) *Job {
	return &Job{
		SkillsRequired:     j.SkillsRequired,
		EducationRequired:  j.EducationRequired,
		ExperienceRequired: j.ExperienceRequired,
		SalaryMin:          j.SalaryMin,
		SalaryMax:          j.SalaryMax,
		SalaryType:         j.SalaryType,
		Location:           j.Location,
		IsRemote:           j.IsRemote,
	}
}

// decodeStringList tolerates NULL and malformed JSONB skill columns.
func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// callerFromRequest resolves the x-user-id header to a user row. It writes
// the error response itself and returns ok=false on failure.
func callerFromRequest(w http.ResponseWriter, r *http.Request, pool *pgxpool.Pool) (*identity.User, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return nil, false
	}

	var u identity.User
	err := pool.QueryRow(r.Context(),
		`SELECT id, username, role, status FROM users WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Username, &u.Role, &u.Status)
	if err != nil {
		jsonError(w, "unknown user", http.StatusUnauthorized)
		return nil, false
	}
	if !u.Active() {
		jsonError(w, "account is not active", http.StatusForbidden)
		return nil, false
	}
	return &u, true
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
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
