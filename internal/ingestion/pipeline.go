// Package ingestion implements the resume ingestion pipeline: read a resume
// from a file, URL or upload, extract candidate fields with the LLM
// extractor, and create the candidate in the store. Indexing follows from
// the store's lifecycle events.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
)

// DefaultMaxBytes caps the size of a resume.
const DefaultMaxBytes = 2 << 20

// ErrTooLarge is returned when a resume exceeds Config.MaxBytes.
var ErrTooLarge = errors.New("ingestion: resume exceeds size limit")

// ErrNotText is returned when a resume is not valid UTF-8 text.
var ErrNotText = errors.New("ingestion: resume is not valid UTF-8 text")

// FieldExtractor turns resume text into candidate fields.
// *extractor.Extractor satisfies it.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (model.CandidateFields, error)
}

// CandidateStore persists candidates.
type CandidateStore interface {
	Create(ctx context.Context, c *model.Candidate) error
}

// OrgStore looks up organizations. Get returns an error wrapping the store's
// not-found sentinel for unknown ids.
type OrgStore interface {
	Get(ctx context.Context, id string) (*model.Organization, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// MaxBytes caps a resume's size. Defaults to DefaultMaxBytes if zero.
	MaxBytes int64

	// HTTPTimeout is the timeout for each resume fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// Logger receives pipeline progress. If nil, slog.Default is used.
	Logger *slog.Logger
}

// Pipeline orchestrates the read → extract → create flow.
type Pipeline struct {
	// extractor turns resume text into fields.
	extractor FieldExtractor

	// candidates persists the new candidate.
	candidates CandidateStore

	// orgs validates the owning organization.
	orgs OrgStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching resumes by URL.
	httpClient *http.Client

	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(ex FieldExtractor, candidates CandidateStore, orgs OrgStore, cfg *Config) (*Pipeline, error) {
	if ex == nil {
		return nil, fmt.Errorf("ingestion: extractor must not be nil")
	}
	if candidates == nil {
		return nil, fmt.Errorf("ingestion: candidate store must not be nil")
	}
	if orgs == nil {
		return nil, fmt.Errorf("ingestion: organization store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "hiresync-go/1.0 (resume ingestion)"
	}

	return &Pipeline{
		extractor:  ex,
		candidates: candidates,
		orgs:       orgs,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		log:        logging.Component(cfg.Logger, "ingestion"),
	}, nil
}

// IngestSource reads a resume from a local path or an http(s) URL and
// creates a candidate for org from it.
func (p *Pipeline) IngestSource(ctx context.Context, org, source string) (*model.Candidate, error) {
	if !SupportedFileType(source) {
		return nil, ErrUnsupportedFileType
	}

	var (
		text string
		link string
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		text, err = p.fetch(ctx, source)
		link = source
	} else {
		text, err = p.readFile(source)
	}
	if err != nil {
		return nil, err
	}
	return p.IngestText(ctx, org, text, link)
}

// IngestUpload reads an uploaded resume named name from r.
func (p *Pipeline) IngestUpload(ctx context.Context, org, name string, r io.Reader) (*model.Candidate, error) {
	if !SupportedFileType(name) {
		return nil, ErrUnsupportedFileType
	}
	text, err := p.readAll(r)
	if err != nil {
		return nil, err
	}
	return p.IngestText(ctx, org, text, "")
}

// IngestText extracts fields from text and creates the candidate. link is
// stored as the candidate's resume link and may be empty.
func (p *Pipeline) IngestText(ctx context.Context, org, text, link string) (*model.Candidate, error) {
	if _, err := p.orgs.Get(ctx, org); err != nil {
		return nil, fmt.Errorf("ingestion: organization %q: %w", org, err)
	}

	start := time.Now()
	fields, err := p.extractor.ExtractFields(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ingestion: extract fields: %w", err)
	}

	c := fields.Candidate(org, strings.TrimSpace(text), link)
	if err := p.candidates.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("ingestion: create candidate: %w", err)
	}

	p.log.Info("ingestion: candidate created",
		slog.String("candidate_id", c.ID),
		slog.String("org", org),
		slog.Int("skills", len(c.Skills)),
		slog.Duration("duration", time.Since(start)),
	)
	return c, nil
}

// fetch retrieves the raw text content of a URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("ingestion: creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/markdown")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingestion: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, url)
	}
	if !supportedContentType(resp.Header.Get("Content-Type")) {
		return "", ErrUnsupportedFileType
	}
	return p.readAll(resp.Body)
}

func (p *Pipeline) readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer f.Close()
	return p.readAll(f)
}

// readAll reads at most MaxBytes from r and checks the result is text.
func (p *Pipeline) readAll(r io.Reader) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r, p.cfg.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("ingestion: reading resume: %w", err)
	}
	if int64(len(body)) > p.cfg.MaxBytes {
		return "", ErrTooLarge
	}
	if !utf8.Valid(body) {
		return "", ErrNotText
	}
	return string(body), nil
}
