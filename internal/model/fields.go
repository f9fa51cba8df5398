package model

import "strings"

// CandidateFields is the structured data extracted from a resume.
type CandidateFields struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Location        string   `json:"location"`
	CurrentCompany  string   `json:"current_company"`
	ExperienceYears *float64 `json:"experience_years"`
	Skills          []string `json:"skills"`
}

// Normalize trims every field, lowercases the email and de-duplicates
// skills case-insensitively, keeping the first spelling.
func (f *CandidateFields) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.Location = strings.TrimSpace(f.Location)
	f.CurrentCompany = strings.TrimSpace(f.CurrentCompany)
	if f.ExperienceYears != nil && *f.ExperienceYears < 0 {
		f.ExperienceYears = nil
	}

	seen := make(map[string]struct{}, len(f.Skills))
	skills := f.Skills[:0]
	for _, s := range f.Skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, s)
	}
	f.Skills = skills
}

// Candidate builds a new candidate for org from the extracted fields and
// the resume it came from.
func (f CandidateFields) Candidate(org, resumeText, resumeLink string) *Candidate {
	return &Candidate{
		Org:             OrgRef(org),
		Email:           f.Email,
		Name:            f.Name,
		Phone:           f.Phone,
		ResumeLink:      resumeLink,
		ResumeText:      resumeText,
		Location:        f.Location,
		CurrentCompany:  f.CurrentCompany,
		ExperienceYears: f.ExperienceYears,
		Skills:          f.Skills,
		Status:          CandidateActive,
	}
}
