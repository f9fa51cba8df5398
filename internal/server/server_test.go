package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/hiresync-go/internal/embedder"
	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/ingestion"
	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/search"
	"github.com/54b3r/hiresync-go/internal/similarity"
	"github.com/54b3r/hiresync-go/internal/store"
)

// okHandler is a trivial handler used to verify that allowed requests reach
// the downstream handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// vocab is the keyword space of keywordEmbedder.
var vocab = []string{"go", "python", "kubernetes"}

// keywordEmbedder embeds text as keyword counts over vocab, plus a constant
// component so that no text maps to the zero vector.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(vocab)+1)
		v[0] = 0.1
		for _, tok := range embedder.Tokenize(text) {
			for j, w := range vocab {
				if tok == w {
					v[j+1]++
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

// stubExtractor returns fixed fields for every resume.
type stubExtractor struct {
	fields model.CandidateFields
}

func (s *stubExtractor) ExtractFields(context.Context, string) (model.CandidateFields, error) {
	return s.fields, nil
}

// testEnv is a server wired to an in-memory store and index holding the
// organizations o1 and o2.
type testEnv struct {
	srv        *Server
	mem        *index.MemoryClient
	reg        *prometheus.Registry
	candidates *store.Repository[*model.Candidate]
	jobs       *store.Repository[*model.JobListing]
	candIndex  *index.Syncer[*model.Candidate]
	jobIndex   *index.Syncer[*model.JobListing]
}

type envOption func(*Deps, *Config)

func withoutIngest() envOption {
	return func(d *Deps, _ *Config) { d.Ingest = nil }
}

func withAPIKey(key string) envOption {
	return func(_ *Deps, c *Config) { c.APIKey = key }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logging.Discard()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	orgs := store.NewOrganizations(db, log)
	for _, o := range []*model.Organization{{ID: "o1", Name: "Acme"}, {ID: "o2", Name: "Globex"}} {
		if err := orgs.Create(ctx, o); err != nil {
			t.Fatalf("create org: %v", err)
		}
	}
	candidates := store.NewCandidates(db, log)
	jobs := store.NewJobListings(db, log)

	reg := prometheus.NewRegistry()
	mem := index.NewMemoryClient()
	emb := embedder.NewProvider(embedder.ProviderConfig{
		Dense:      keywordEmbedder{},
		Sparse:     embedder.NewBM25Encoder(nil),
		Dimensions: len(vocab) + 1,
		Logger:     log,
	})

	candIndex, err := index.NewSyncer(model.CandidateSchema(), mem, emb, index.SyncerConfig{Logger: log})
	if err != nil {
		t.Fatalf("candidate syncer: %v", err)
	}
	jobIndex, err := index.NewSyncer(model.JobListingSchema(), mem, emb, index.SyncerConfig{Logger: log})
	if err != nil {
		t.Fatalf("job syncer: %v", err)
	}
	candidates.Subscribe(candIndex)
	jobs.Subscribe(jobIndex)

	pipeline, err := ingestion.NewPipeline(&stubExtractor{fields: model.CandidateFields{
		Name:   "Ada Lovelace",
		Email:  "ada@example.com",
		Skills: []string{"go", "kubernetes"},
	}}, candidates, orgs, &ingestion.Config{Logger: log})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	deps := Deps{
		Orgs:           orgs,
		Candidates:     candidates,
		Jobs:           jobs,
		CandidateIndex: candIndex,
		JobIndex:       jobIndex,
		Search:         search.New(search.Config{Client: mem, Embedder: emb, Logger: log, Metrics: search.NewMetrics(reg)}),
		Similarity:     similarity.New(mem, log, similarity.NewMetrics(reg)),
		Ingest:         pipeline,
	}
	cfg := &Config{
		Logger:          log,
		MetricsRegistry: reg,
		MetricsGatherer: reg,
		RateLimit:       1000,
		RateBurst:       1000,
	}
	for _, opt := range opts {
		opt(&deps, cfg)
	}

	srv, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(srv.stopRL)

	return &testEnv{
		srv:        srv,
		mem:        mem,
		reg:        reg,
		candidates: candidates,
		jobs:       jobs,
		candIndex:  candIndex,
		jobIndex:   jobIndex,
	}
}

// newTestServer returns a fully wired server for handler-level tests.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestEnv(t).srv
}

// do sends a request through the full middleware chain. A string body is
// sent as is; anything else is JSON-encoded.
func (e *testEnv) do(t *testing.T, method, path, org string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if org != "" {
		req.Header.Set(tenantHeader, org)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into v.
func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// createCandidate creates a candidate through the API and returns it.
func (e *testEnv) createCandidate(t *testing.T, org, name, resume string, skills ...string) model.Candidate {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/candidates", org, map[string]any{
		"name":        name,
		"email":       name + "@example.com",
		"resume_text": resume,
		"skills":      skills,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create candidate: status %d, body %s", w.Code, w.Body.String())
	}
	var c model.Candidate
	decode(t, w, &c)
	return c
}

// indexed returns the stored index point of a candidate.
func (e *testEnv) indexed(id string) (index.Point, bool) {
	return e.mem.Point(e.candIndex.CollectionName(""), id)
}
