package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/store"
)

// setupEnv points the CLI at a fresh store, an in-memory index and the
// sparse encoder only, so no external service is needed. Candidates are
// indexed from their skills alone in this setup.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hiresync.db")
	t.Setenv("HOME", dir)
	t.Setenv("HIRESYNC_CONFIG", "")
	t.Setenv("HIRESYNC_DB", dbPath)
	t.Setenv("INDEX_BACKEND", "memory")
	t.Setenv("EMBEDDING_PROVIDER", "none")
	t.Setenv("SPARSE_ENCODER", "bm25")
	t.Setenv("EMBEDDING_CACHE_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func Test_Version(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "hiresync ") {
		t.Errorf("unexpected output %q", out)
	}
}

func Test_Org_CreateAndList(t *testing.T) {
	setupEnv(t)

	if _, err := run(t, "org", "create", "Acme", "--id", "acme"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := run(t, "org", "create", "Globex"); err != nil {
		t.Fatalf("create: %v", err)
	}

	out, err := run(t, "org", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var orgs []model.Organization
	if err := json.Unmarshal([]byte(out), &orgs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(orgs) != 2 || orgs[0].ID != "acme" || orgs[1].Name != "Globex" {
		t.Errorf("unexpected orgs %+v", orgs)
	}
}

func Test_Org_CreateRejectsBlankName(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "org", "create", "  "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func Test_Reindex_IndexesEveryRecord(t *testing.T) {
	dbPath := setupEnv(t)

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	log := logging.Discard()
	if err := store.NewOrganizations(db, log).Create(ctx, &model.Organization{ID: "acme", Name: "Acme"}); err != nil {
		t.Fatalf("org: %v", err)
	}
	candidates := store.NewCandidates(db, log)
	for _, name := range []string{"ada", "grace", "linus"} {
		c := &model.Candidate{
			Org:        "acme",
			Name:       name,
			Email:      name + "@example.com",
			ResumeText: name + " writes Go",
			Skills:     []string{"go", "sql"},
		}
		if err := candidates.Create(ctx, c); err != nil {
			t.Fatalf("candidate: %v", err)
		}
	}
	_ = db.Close()

	out, err := run(t, "reindex", "candidates")
	if err != nil {
		t.Fatalf("reindex: %v\n%s", err, out)
	}
	if !strings.Contains(out, "candidates: 3/3 indexed") {
		t.Errorf("unexpected output %q", out)
	}
}

func Test_Reindex_UnknownEntity(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "reindex", "widgets")
	if err == nil || !strings.Contains(err.Error(), "unknown entity") {
		t.Fatalf("want unknown entity error, got %v", err)
	}
}

func Test_Search_EmptyIndexPrintsEmptyList(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "search", "candidates", "golang", "--org", "acme")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("want [], got %q", out)
	}
}

func Test_Extract_RequiresOrg(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "extract", "cv.md"); err == nil || !strings.Contains(err.Error(), "--org") {
		t.Fatalf("want --org error, got %v", err)
	}
}

func Test_Check_LocalBackends(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, name := range []string{"memory-index", "sqlite"} {
		if !strings.Contains(out, "ok    "+name) {
			t.Errorf("missing %s in %q", name, out)
		}
	}
	if strings.Contains(out, "embedder") {
		t.Errorf("embedder probed with EMBEDDING_PROVIDER=none: %q", out)
	}
}
