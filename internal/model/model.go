// Package model defines the hiring-platform records held in the primary
// store and declares how the searchable ones are indexed.
package model

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid record")

// Entity names used in API routes and CLI arguments.
const (
	EntityCandidates = "candidates"
	EntityJobs       = "jobs"
)

// OrgRef references the owning Organization by id. The index payload stores
// the id.
type OrgRef string

// RefID returns the referenced organization id.
func (r OrgRef) RefID() string { return string(r) }

// Organization is a tenant. It is stored but not indexed.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CandidateStatus is the lifecycle state of a Candidate.
type CandidateStatus string

const (
	CandidateActive   CandidateStatus = "active"
	CandidateArchived CandidateStatus = "archived"
	CandidateDeleted  CandidateStatus = "deleted"
)

// Valid reports whether s is a known status.
func (s CandidateStatus) Valid() bool {
	switch s {
	case CandidateActive, CandidateArchived, CandidateDeleted:
		return true
	}
	return false
}

// Candidate is a job seeker within one organization.
type Candidate struct {
	ID              string          `json:"id"`
	Org             OrgRef          `json:"org"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone,omitempty"`
	ResumeLink      string          `json:"resume_link,omitempty"`
	ResumeText      string          `json:"resume_text,omitempty"`
	Location        string          `json:"location,omitempty"`
	CurrentCompany  string          `json:"current_company,omitempty"`
	ExperienceYears *float64        `json:"experience_years,omitempty"`
	Skills          []string        `json:"skills"`
	Status          CandidateStatus `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// JobStatus is the lifecycle state of a JobListing.
type JobStatus string

const (
	JobOpen   JobStatus = "open"
	JobClosed JobStatus = "closed"
	JobPaused JobStatus = "paused"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobClosed, JobPaused:
		return true
	}
	return false
}

// EmploymentType classifies a JobListing.
type EmploymentType string

const (
	FullTime   EmploymentType = "full_time"
	PartTime   EmploymentType = "part_time"
	Contract   EmploymentType = "contract"
	Internship EmploymentType = "internship"
)

// Valid reports whether t is empty or a known type.
func (t EmploymentType) Valid() bool {
	switch t {
	case "", FullTime, PartTime, Contract, Internship:
		return true
	}
	return false
}

// JobListing is an open position posted by an organization.
type JobListing struct {
	ID                    string         `json:"id"`
	Org                   OrgRef         `json:"org"`
	Title                 string         `json:"title"`
	Description           string         `json:"description"`
	Location              string         `json:"location,omitempty"`
	EmploymentType        EmploymentType `json:"employment_type,omitempty"`
	SalaryRange           string         `json:"salary_range,omitempty"`
	ExperienceRequiredMin *int           `json:"experience_required_min,omitempty"`
	ExperienceRequiredMax *int           `json:"experience_required_max,omitempty"`
	RequiredSkills        []string       `json:"required_skills"`
	NiceToHave            []string       `json:"nice_to_have"`
	CreatedBy             string         `json:"created_by,omitempty"`
	Status                JobStatus      `json:"status"`
	PublishedAt           *time.Time     `json:"published_at,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// GetID, SetID, Tenant, Stamp and Validate make the records storable.

func (o *Organization) GetID() string   { return o.ID }
func (o *Organization) SetID(id string) { o.ID = id }
func (o *Organization) Tenant() string  { return "" }

func (o *Organization) Stamp(now time.Time) { stamp(&o.CreatedAt, &o.UpdatedAt, now) }

func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: organization name is required", ErrInvalid)
	}
	return nil
}

func (c *Candidate) GetID() string   { return c.ID }
func (c *Candidate) SetID(id string) { c.ID = id }
func (c *Candidate) Tenant() string  { return string(c.Org) }

func (c *Candidate) Stamp(now time.Time) { stamp(&c.CreatedAt, &c.UpdatedAt, now) }

// Validate checks required fields and defaults Status to active.
func (c *Candidate) Validate() error {
	if c.Org == "" {
		return fmt.Errorf("%w: candidate org is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: candidate name is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: candidate email %q: %v", ErrInvalid, c.Email, err)
	}
	if c.Status == "" {
		c.Status = CandidateActive
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown candidate status %q", ErrInvalid, c.Status)
	}
	if c.ExperienceYears != nil && *c.ExperienceYears < 0 {
		return fmt.Errorf("%w: experience_years must not be negative", ErrInvalid)
	}
	return nil
}

func (j *JobListing) GetID() string   { return j.ID }
func (j *JobListing) SetID(id string) { j.ID = id }
func (j *JobListing) Tenant() string  { return string(j.Org) }

func (j *JobListing) Stamp(now time.Time) { stamp(&j.CreatedAt, &j.UpdatedAt, now) }

// Validate checks required fields and defaults Status to open.
func (j *JobListing) Validate() error {
	if j.Org == "" {
		return fmt.Errorf("%w: job org is required", ErrInvalid)
	}
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("%w: job title is required", ErrInvalid)
	}
	if j.Status == "" {
		j.Status = JobOpen
	}
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", ErrInvalid, j.Status)
	}
	if !j.EmploymentType.Valid() {
		return fmt.Errorf("%w: unknown employment type %q", ErrInvalid, j.EmploymentType)
	}
	if lo, hi := j.ExperienceRequiredMin, j.ExperienceRequiredMax; lo != nil && hi != nil && *lo > *hi {
		return fmt.Errorf("%w: experience_required_min %d exceeds max %d", ErrInvalid, *lo, *hi)
	}
	return nil
}

func stamp(created, updated *time.Time, now time.Time) {
	now = now.UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
