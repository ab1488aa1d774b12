package match

// Job carries the posting attributes the scorer reads. It mirrors the
// jobs table row; the scorer never writes it.
type Job struct {
	SkillsRequired     []string `json:"skillsRequired"`
	EducationRequired  string   `json:"educationRequired"`
	ExperienceRequired string   `json:"experienceRequired"`
	SalaryMin          *int     `json:"salaryMin"`
	SalaryMax          *int     `json:"salaryMax"`
	SalaryType         string   `json:"salaryType"`
	Location           string   `json:"location"`
	IsRemote           bool     `json:"isRemote"`
}

// Preferences is the structured job-preference block on a seeker profile.
type Preferences struct {
	Locations []string `json:"locations"`
	JobTypes  []string `json:"jobTypes"`
}

// SeekerProfile carries the profile attributes the scorer reads.
// Optional numeric fields are pointers: nil means "not filled in", which
// omits the corresponding sub-score rather than zeroing it.
type SeekerProfile struct {
	Skills              []string     `json:"skills"`
	EducationLevel      string       `json:"educationLevel"`
	WorkExperienceYears *int         `json:"workExperienceYears"`
	ExpectedSalaryMin   *int         `json:"expectedSalaryMin"`
	ExpectedSalaryMax   *int         `json:"expectedSalaryMax"`
	CurrentLocation     string       `json:"currentLocation"`
	Preferences         *Preferences `json:"preferences,omitempty"`
}

// Resume supplements the profile with skills extracted from the
// seeker's uploaded resume.
type Resume struct {
	ExtractedSkills []string `json:"extractedSkills"`
}
