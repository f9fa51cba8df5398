package model

import (
	"github.com/54b3r/hiresync-go/internal/index"
)

// Base collection names in the vector index.
const (
	CandidatesCollection  = "ha_candidates"
	JobListingsCollection = "ha_job_listings"
)

// CandidateSchema indexes resumes densely and skills sparsely. All tenants
// share one collection, separated by the org payload filter.
func CandidateSchema() *index.Schema[*Candidate] {
	return &index.Schema[*Candidate]{
		Collection: CandidatesCollection,
		PayloadFields: []string{
			"email", "name", "phone", "resume_link", "location",
			"current_company", "experience_years", "skills", "status",
		},
		DenseFields:  []string{"resume_text"},
		SparseFields: []string{"skills"},
		Fields: map[string]index.Accessor[*Candidate]{
			"email":            index.Field(func(c *Candidate) any { return c.Email }),
			"name":             index.Field(func(c *Candidate) any { return c.Name }),
			"phone":            index.Field(func(c *Candidate) any { return c.Phone }),
			"resume_link":      index.Field(func(c *Candidate) any { return c.ResumeLink }),
			"resume_text":      index.Field(func(c *Candidate) any { return c.ResumeText }),
			"location":         index.Field(func(c *Candidate) any { return c.Location }),
			"current_company":  index.Field(func(c *Candidate) any { return c.CurrentCompany }),
			"experience_years": index.Field(func(c *Candidate) any { return deref(c.ExperienceYears) }),
			"skills":           index.Field(func(c *Candidate) any { return c.Skills }),
			"status":           index.Field(func(c *Candidate) any { return string(c.Status) }),
		},
		ID:     func(c *Candidate) string { return c.ID },
		Tenant: func(c *Candidate) string { return string(c.Org) },
	}
}

// JobListingSchema indexes descriptions densely and the skill lists sparsely.
func JobListingSchema() *index.Schema[*JobListing] {
	return &index.Schema[*JobListing]{
		Collection: JobListingsCollection,
		PayloadFields: []string{
			"title", "description", "location", "employment_type", "salary_range",
			"experience_required_min", "experience_required_max",
			"required_skills", "nice_to_have", "created_by", "status",
			"published_at", "metadata",
		},
		DenseFields:  []string{"description"},
		SparseFields: []string{"required_skills", "nice_to_have"},
		Fields: map[string]index.Accessor[*JobListing]{
			"title":                   index.Field(func(j *JobListing) any { return j.Title }),
			"description":             index.Field(func(j *JobListing) any { return j.Description }),
			"location":                index.Field(func(j *JobListing) any { return j.Location }),
			"employment_type":         index.Field(func(j *JobListing) any { return string(j.EmploymentType) }),
			"salary_range":            index.Field(func(j *JobListing) any { return j.SalaryRange }),
			"experience_required_min": index.Field(func(j *JobListing) any { return deref(j.ExperienceRequiredMin) }),
			"experience_required_max": index.Field(func(j *JobListing) any { return deref(j.ExperienceRequiredMax) }),
			"required_skills":         index.Field(func(j *JobListing) any { return j.RequiredSkills }),
			"nice_to_have":            index.Field(func(j *JobListing) any { return j.NiceToHave }),
			"created_by":              index.Field(func(j *JobListing) any { return j.CreatedBy }),
			"status":                  index.Field(func(j *JobListing) any { return string(j.Status) }),
			"published_at":            index.Field(func(j *JobListing) any { return j.PublishedAt }),
			"metadata":                index.Field(func(j *JobListing) any { return j.Metadata }),
		},
		ID:     func(j *JobListing) string { return j.ID },
		Tenant: func(j *JobListing) string { return string(j.Org) },
	}
}

// deref unwraps p so the payload stores the number, or null when unset.
func deref[T int | float64](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
