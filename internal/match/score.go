// Package match computes job ↔ seeker compatibility scores.
//
// The score is a weighted blend of five sub-scores (skills, education,
// experience, location, salary), each normalized to [0,1]. A sub-score
// whose inputs are missing is omitted from the blend entirely — both its
// contribution and its weight drop out — so sparse profiles degrade
// gracefully instead of being punished. With nothing to go on the scorer
// returns a neutral 50, which callers must treat as "insufficient data",
// not as a mid-quality match.
//
// Scoring is pure: no I/O, no side effects, safe from any number of
// concurrent requests.
package match

import (
	"math"
	"strings"
)

// Blend weights. They sum to 100 so a fully-populated pair maps the
// weighted sum directly onto the 0-100 scale.
const (
	weightSkill      = 40.0
	weightEducation  = 15.0
	weightExperience = 20.0
	weightLocation   = 10.0
	weightSalary     = 15.0
)

// neutralScore is returned when no sub-score is computable.
const neutralScore = 50

// educationRank maps education levels to an ordinal scale.
var educationRank = map[string]int{
	"none":        0,
	"high_school": 1,
	"associate":   2,
	"bachelor":    3,
	"master":      4,
	"phd":         5,
}

// experienceYears maps required-experience tiers to a minimum-years
// threshold.
var experienceYears = map[string]int{
	"entry":     0,
	"junior":    1,
	"mid":       3,
	"mid-level": 3,
	"senior":    5,
	"executive": 8,
}

// Subscores reports the five normalized components and which of them
// actually entered the blend.
type Subscores struct {
	Skill      float64 `json:"skill"`
	Education  float64 `json:"education"`
	Experience float64 `json:"experience"`
	Location   float64 `json:"location"`
	Salary     float64 `json:"salary"`

	SkillIncluded      bool `json:"skillIncluded"`
	EducationIncluded  bool `json:"educationIncluded"`
	ExperienceIncluded bool `json:"experienceIncluded"`
	LocationIncluded   bool `json:"locationIncluded"`
	SalaryIncluded     bool `json:"salaryIncluded"`
}

// Included returns how many sub-scores entered the blend. A zero count
// means the final score is the neutral default and carries no signal.
func (s Subscores) Included() int {
	n := 0
	for _, ok := range []bool{
		s.SkillIncluded, s.EducationIncluded, s.ExperienceIncluded,
		s.LocationIncluded, s.SalaryIncluded,
	} {
		if ok {
			n++
		}
	}
	return n
}

// Score computes the compatibility score for a (job, profile) pair.
// resume may be nil; its extracted skills supplement the profile's.
func Score(job *Job, profile *SeekerProfile, resume *Resume) int {
	score, _ := Breakdown(job, profile, resume)
	return score
}

// Breakdown is Score plus the per-component detail, for callers that
// need to explain the number or detect the insufficient-data case.
func Breakdown(job *Job, profile *SeekerProfile, resume *Resume) (int, Subscores) {
	var sub Subscores

	sub.Skill, sub.SkillIncluded = skillMatch(job, profile, resume)
	sub.Education, sub.EducationIncluded = educationMatch(job, profile)
	sub.Experience, sub.ExperienceIncluded = experienceMatch(job, profile)
	sub.Location, sub.LocationIncluded = locationMatch(job, profile)
	sub.Salary, sub.SalaryIncluded = salaryMatch(job, profile)

	var sum, weights float64
	add := func(v float64, w float64, ok bool) {
		if ok {
			sum += v * w
			weights += w
		}
	}
	add(sub.Skill, weightSkill, sub.SkillIncluded)
	add(sub.Education, weightEducation, sub.EducationIncluded)
	add(sub.Experience, weightExperience, sub.ExperienceIncluded)
	add(sub.Location, weightLocation, sub.LocationIncluded)
	add(sub.Salary, weightSalary, sub.SalaryIncluded)

	if weights == 0 {
		return neutralScore, sub
	}

	score := int(math.Round(sum / weights * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, sub
}

// skillMatch scores each required skill against the union of profile and
// resume skills, case-insensitively: 1.0 for an exact match, 0.7 for a
// substring containment in either direction, 0 otherwise.
//
// A job with no required skills is fully satisfied (1.0). A job that
// does require skills scores 0 against a seeker who lists none — the two
// cases must never be conflated.
func skillMatch(job *Job, profile *SeekerProfile, resume *Resume) (float64, bool) {
	if len(job.SkillsRequired) == 0 {
		return 1.0, true
	}

	seen := make(map[string]struct{})
	var seekerSkills []string
	collect := func(skills []string) {
		for _, s := range skills {
			k := strings.ToLower(strings.TrimSpace(s))
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			seekerSkills = append(seekerSkills, k)
		}
	}
	collect(profile.Skills)
	if resume != nil {
		collect(resume.ExtractedSkills)
	}

	if len(seekerSkills) == 0 {
		return 0, true
	}

	var matched float64
	for _, required := range job.SkillsRequired {
		req := strings.ToLower(strings.TrimSpace(required))
		if req == "" {
			continue
		}
		if _, ok := seen[req]; ok {
			matched += 1.0
			continue
		}
		for _, have := range seekerSkills {
			if strings.Contains(have, req) || strings.Contains(req, have) {
				matched += 0.7
				break
			}
		}
	}

	ratio := matched / float64(len(job.SkillsRequired))
	if ratio > 1.0 {
		ratio = 1.0
	}
	return ratio, true
}

// educationMatch gives full marks when the seeker meets or exceeds the
// requirement and decays by 0.3 per missing ordinal level otherwise.
func educationMatch(job *Job, profile *SeekerProfile) (float64, bool) {
	if job.EducationRequired == "" || job.EducationRequired == "none" {
		return 1.0, true
	}
	if profile.EducationLevel == "" {
		return 0, false
	}

	required := educationRank[job.EducationRequired]
	seeker := educationRank[profile.EducationLevel]
	if seeker >= required {
		return 1.0, true
	}
	return math.Max(0, 1-0.3*float64(required-seeker)), true
}

// experienceMatch compares the seeker's years against the tier threshold,
// decaying by 0.2 per missing year.
func experienceMatch(job *Job, profile *SeekerProfile) (float64, bool) {
	if job.ExperienceRequired == "" || profile.WorkExperienceYears == nil {
		return 0, false
	}

	required := experienceYears[job.ExperienceRequired]
	seeker := *profile.WorkExperienceYears
	if seeker >= required {
		return 1.0, true
	}
	return math.Max(0, 1-0.2*float64(required-seeker)), true
}

// locationMatch: remote jobs always fit; otherwise tiers of exact match,
// containment, and a shared leading token as a coarse region proxy.
// The floor is 0.3, never zero — a mismatched city is a commute problem,
// not a disqualifier.
//
// Splitting on the first space is a known weak heuristic kept for
// behavioral compatibility with the rest of the marketplace.
func locationMatch(job *Job, profile *SeekerProfile) (float64, bool) {
	if job.Location == "" || profile.CurrentLocation == "" {
		return 0, false
	}
	if job.IsRemote {
		return 1.0, true
	}

	jobLoc := strings.ToLower(job.Location)
	seekerLoc := strings.ToLower(profile.CurrentLocation)

	if jobLoc == seekerLoc {
		return 1.0, true
	}
	if strings.Contains(jobLoc, seekerLoc) || strings.Contains(seekerLoc, jobLoc) {
		return 0.8, true
	}
	if leadingToken(jobLoc) == leadingToken(seekerLoc) {
		return 0.6, true
	}
	return 0.3, true
}

func leadingToken(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// salaryMatch scores the overlap between the job's range and the
// seeker's expected range. Negotiable jobs always score 1.0, regardless
// of what numeric bounds are present. When the ranges miss each other
// the score decays from 0.5 toward 0 as the gap grows relative to the
// job's upper bound.
func salaryMatch(job *Job, profile *SeekerProfile) (float64, bool) {
	if job.SalaryType == "negotiable" {
		return 1.0, true
	}
	if job.SalaryMin == nil || job.SalaryMax == nil || profile.ExpectedSalaryMin == nil {
		return 0, false
	}

	jobMin := float64(*job.SalaryMin)
	jobMax := float64(*job.SalaryMax)
	seekerMin := float64(*profile.ExpectedSalaryMin)
	seekerMax := seekerMin * 1.5
	if profile.ExpectedSalaryMax != nil {
		seekerMax = float64(*profile.ExpectedSalaryMax)
	}

	overlapStart := math.Max(jobMin, seekerMin)
	overlapEnd := math.Min(jobMax, seekerMax)

	if overlapStart > overlapEnd {
		gap := math.Min(math.Abs(jobMin-seekerMax), math.Abs(seekerMin-jobMax))
		if jobMax <= 0 || gap > jobMax*0.3 {
			return 0, true
		}
		return math.Max(0, 0.5-(gap/jobMax)*0.5), true
	}

	overlap := overlapEnd - overlapStart
	jobRange := jobMax - jobMin
	seekerRange := seekerMax - seekerMin

	jobRatio := 0.0
	if jobRange > 0 {
		jobRatio = overlap / jobRange
	}
	seekerRatio := 0.0
	if seekerRange > 0 {
		seekerRatio = overlap / seekerRange
	}
	return (jobRatio + seekerRatio) / 2, true
}
