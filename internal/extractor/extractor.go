// Package extractor turns free-form resume text into structured candidate
// fields using an LLM chat model.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/hiresync-go/internal/budget"
	"github.com/54b3r/hiresync-go/internal/logging"
	hsmodel "github.com/54b3r/hiresync-go/internal/model"
)

// ErrEmptyResume is returned when there is no text to extract from.
var ErrEmptyResume = errors.New("extractor: resume text is empty")

// ErrNoFields is returned when the model answer carries neither a name nor
// an email, which a candidate record cannot do without.
var ErrNoFields = errors.New("extractor: no candidate fields in model response")

const systemPrompt = `You extract structured data from resumes.
Reply with a single JSON object and nothing else, using exactly these keys:
  "name"             full name of the candidate (string)
  "email"            primary email address (string)
  "phone"            phone number as written (string, "" if absent)
  "location"         city and country (string, "" if absent)
  "current_company"  most recent employer (string, "" if absent)
  "experience_years" total years of professional experience (number, may be fractional, null if unknown)
  "skills"           technical and professional skills (array of short strings)
Do not invent values that are not in the resume.`

// Extractor asks a chat model for candidate fields.
type Extractor struct {
	chat      model.BaseChatModel
	log       *slog.Logger
	maxTokens int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxContextTokens sets the prompt budget. The resume is truncated to fit.
func WithMaxContextTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// New returns an Extractor using chat.
func New(chat model.BaseChatModel, log *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		chat:      chat,
		log:       logging.Component(log, "extractor"),
		maxTokens: budget.DefaultMaxContextTokens,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFields returns the candidate fields found in text, normalized.
func (e *Extractor) ExtractFields(ctx context.Context, text string) (hsmodel.CandidateFields, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return hsmodel.CandidateFields{}, ErrEmptyResume
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(text),
	}
	if budget.Fit(msgs, e.maxTokens) {
		e.log.Warn("extractor: resume truncated to fit context budget",
			slog.Int("original_tokens", budget.Estimate(text)),
			slog.Int("max_context_tokens", e.maxTokens),
		)
	}

	start := time.Now()
	resp, err := e.chat.Generate(ctx, msgs)
	if err != nil {
		return hsmodel.CandidateFields{}, fmt.Errorf("extractor: model call failed: %w", err)
	}
	e.log.Debug("extractor: model responded",
		slog.Duration("duration", time.Since(start)),
		slog.Int("response_chars", len(resp.Content)),
	)

	fields, err := Parse(resp.Content)
	if err != nil {
		return hsmodel.CandidateFields{}, err
	}
	return fields, nil
}

// Parse decodes a model answer into normalized fields. It tolerates code
// fences and prose around the JSON object.
func Parse(content string) (hsmodel.CandidateFields, error) {
	raw := jsonObject(content)
	if raw == "" {
		return hsmodel.CandidateFields{}, fmt.Errorf("extractor: no JSON object in model response")
	}

	var wire struct {
		hsmodel.CandidateFields
		ExperienceYears any `json:"experience_years"`
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return hsmodel.CandidateFields{}, fmt.Errorf("extractor: decode model response: %w", err)
	}

	fields := wire.CandidateFields
	fields.ExperienceYears = years(wire.ExperienceYears)
	fields.Normalize()
	if fields.Name == "" && fields.Email == "" {
		return hsmodel.CandidateFields{}, ErrNoFields
	}
	return fields, nil
}

// years accepts a number or a string that starts with one ("7+", "5 years").
func years(v any) *float64 {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		return nil
	}
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return nil
	}
	return &f
}

// jsonObject returns the outermost {...} span of s, or "".
func jsonObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
