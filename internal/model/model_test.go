package model

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func TestCandidateSchema_PayloadAndText(t *testing.T) {
	t.Parallel()
	s := CandidateSchema()
	if err := s.Validate(); err != nil {
		t.Fatalf("candidate schema invalid: %v", err)
	}

	c := &Candidate{
		ID:              "c1",
		Org:             "o1",
		Email:           "ada@example.com",
		Name:            "Ada",
		ResumeText:      "Built distributed systems in Go.",
		ExperienceYears: floatPtr(9.5),
		Skills:          []string{"go", "kubernetes"},
		Status:          CandidateActive,
	}

	p := s.Payload(c)
	if p["experience_years"] != 9.5 {
		t.Errorf("experience_years = %#v, want 9.5", p["experience_years"])
	}
	if !reflect.DeepEqual(p["skills"], []any{"go", "kubernetes"}) {
		t.Errorf("skills = %#v", p["skills"])
	}
	if p["org"] != "o1" || p["_id"] != "c1" || p["_collection"] != CandidatesCollection {
		t.Errorf("reserved keys wrong: %v", p)
	}
	if _, ok := p["resume_text"]; ok {
		t.Error("resume_text must not be copied into the payload")
	}
	if got := s.Text(c, s.DenseFields); got != "Built distributed systems in Go." {
		t.Errorf("dense text = %q", got)
	}
	if got := s.Text(c, s.SparseFields); got != "go kubernetes" {
		t.Errorf("sparse text = %q", got)
	}
	if got := s.CollectionName("o1"); got != CandidatesCollection {
		t.Errorf("collection = %q, want shared %q", got, CandidatesCollection)
	}
}

func TestJobListingSchema_Payload(t *testing.T) {
	t.Parallel()
	s := JobListingSchema()
	if err := s.Validate(); err != nil {
		t.Fatalf("job schema invalid: %v", err)
	}

	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	j := &JobListing{
		ID:             "j1",
		Org:            "o1",
		Title:          "SRE",
		Description:    "Keep the lights on.",
		RequiredSkills: []string{"linux"},
		NiceToHave:     []string{"terraform"},
		PublishedAt:    &published,
		Status:         JobOpen,
	}

	p := s.Payload(j)
	if p["published_at"] != "2025-01-02T03:04:05Z" {
		t.Errorf("published_at = %#v", p["published_at"])
	}
	if p["experience_required_min"] != nil || p["metadata"] != nil {
		t.Errorf("unset optional fields should be null: %v", p)
	}
	if got := s.Text(j, s.SparseFields); got != "linux terraform" {
		t.Errorf("sparse text = %q", got)
	}
}

func TestCandidate_Validate(t *testing.T) {
	t.Parallel()
	valid := func() *Candidate {
		return &Candidate{Org: "o1", Name: "Ada", Email: "ada@example.com"}
	}

	c := valid()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid candidate: %v", err)
	}
	if c.Status != CandidateActive {
		t.Errorf("status should default to active, got %q", c.Status)
	}

	tests := map[string]func(c *Candidate){
		"missing org":    func(c *Candidate) { c.Org = "" },
		"missing name":   func(c *Candidate) { c.Name = " " },
		"bad email":      func(c *Candidate) { c.Email = "not-an-email" },
		"unknown status": func(c *Candidate) { c.Status = "hired" },
		"negative years": func(c *Candidate) { c.ExperienceYears = floatPtr(-1) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := valid()
			mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("want ErrInvalid, got %v", err)
			}
		})
	}
}

func TestJobListing_Validate(t *testing.T) {
	t.Parallel()
	j := &JobListing{Org: "o1", Title: "SRE"}
	if err := j.Validate(); err != nil {
		t.Fatalf("valid job: %v", err)
	}
	if j.Status != JobOpen {
		t.Errorf("status should default to open, got %q", j.Status)
	}

	j.ExperienceRequiredMin, j.ExperienceRequiredMax = intPtr(5), intPtr(2)
	if err := j.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("inverted experience bounds: want ErrInvalid, got %v", err)
	}
	j.ExperienceRequiredMin, j.EmploymentType = nil, "gig"
	if err := j.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown employment type: want ErrInvalid, got %v", err)
	}
}

func TestStamp(t *testing.T) {
	t.Parallel()
	c := &Candidate{}
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Stamp(first)
	c.Stamp(first.Add(time.Hour))
	if !c.CreatedAt.Equal(first) {
		t.Errorf("created_at moved: %v", c.CreatedAt)
	}
	if !c.UpdatedAt.Equal(first.Add(time.Hour)) {
		t.Errorf("updated_at not advanced: %v", c.UpdatedAt)
	}
}

func TestCandidateFields_Normalize(t *testing.T) {
	t.Parallel()
	f := CandidateFields{
		Name:            "  Grace Hopper ",
		Email:           " Grace@Navy.MIL ",
		ExperienceYears: floatPtr(-3),
		Skills:          []string{"COBOL", " cobol", "", "Compilers"},
	}
	f.Normalize()

	if f.Name != "Grace Hopper" || f.Email != "grace@navy.mil" {
		t.Errorf("trim/lowercase failed: %+v", f)
	}
	if f.ExperienceYears != nil {
		t.Error("negative experience should be dropped")
	}
	if !reflect.DeepEqual(f.Skills, []string{"COBOL", "Compilers"}) {
		t.Errorf("skills = %v", f.Skills)
	}

	c := f.Candidate("o1", "resume body", "https://example.com/cv.pdf")
	if c.Org != "o1" || c.ResumeText != "resume body" || c.Status != CandidateActive {
		t.Errorf("candidate not populated: %+v", c)
	}
}
