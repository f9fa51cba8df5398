package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
)

// openTestDB opens an in-memory database for use in tests.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// recorder captures lifecycle events in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []string
	bulk   [][]string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnCreated(_ context.Context, c *model.Candidate) { r.add("created:" + c.ID) }
func (r *recorder) OnUpdated(_ context.Context, c *model.Candidate) { r.add("updated:" + c.ID) }
func (r *recorder) OnDeleted(_ context.Context, c *model.Candidate) { r.add("deleted:" + c.ID) }

// bulkRecorder additionally implements BulkListener.
type bulkRecorder struct {
	recorder
}

func (b *bulkRecorder) OnBulkUpdated(_ context.Context, cs []*model.Candidate) {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bulk = append(b.bulk, ids)
}

func newCandidate(id, org string) *model.Candidate {
	return &model.Candidate{
		ID:     id,
		Org:    model.OrgRef(org),
		Name:   "Candidate " + id,
		Email:  id + "@example.com",
		Skills: []string{"go"},
	}
}

func Test_Repository_CRUDAndEvents(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	rec := &recorder{}
	repo.Subscribe(rec)
	ctx := context.Background()

	c := newCandidate("c1", "o1")
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.CreatedAt.IsZero() || c.Status != model.CandidateActive {
		t.Errorf("create should stamp and default status: %+v", c)
	}

	got, err := repo.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "c1@example.com" || got.Org != "o1" || !slices.Equal(got.Skills, []string{"go"}) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	got.Skills = append(got.Skills, "sql")
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: want ErrNotFound, got %v", err)
	}

	want := []string{"created:c1", "updated:c1", "deleted:c1"}
	if !slices.Equal(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func Test_Repository_CreateAssignsID(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())

	c := newCandidate("", "o1")
	c.Email = "anon@example.com"
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(c.ID) != 36 {
		t.Errorf("expected a generated uuid, got %q", c.ID)
	}
}

func Test_Repository_InvalidAndMissing(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	rec := &recorder{}
	repo.Subscribe(rec)
	ctx := context.Background()

	bad := newCandidate("c1", "")
	if err := repo.Create(ctx, bad); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("create invalid: want ErrInvalid, got %v", err)
	}
	if err := repo.Update(ctx, newCandidate("ghost", "o1")); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: want ErrNotFound, got %v", err)
	}
	if _, err := repo.Delete(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: want ErrNotFound, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("failed writes must not emit events, got %v", rec.events)
	}
}

func Test_Repository_GetManyAndList(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	ctx := context.Background()

	for _, c := range []*model.Candidate{
		newCandidate("a", "o1"), newCandidate("b", "o2"), newCandidate("c", "o1"),
	} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.ID, err)
		}
	}

	many, err := repo.GetMany(ctx, []string{"c", "missing", "a"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(many) != 2 || many[0].ID != "c" || many[1].ID != "a" {
		t.Errorf("GetMany order wrong: %v", ids(many))
	}

	o1, err := repo.List(ctx, ListOptions{Org: "o1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(o1); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("List(o1) = %v", got)
	}

	page, err := repo.List(ctx, ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("page = %v", ids(page))
	}
}

func Test_Repository_UpdateWhereResyncsCapturedIDs(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	ctx := context.Background()

	for i := range 100 {
		if err := repo.Create(ctx, newCandidate(fmt.Sprintf("c%03d", i), "o1")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := newCandidate("x", "o2")
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := &bulkRecorder{}
	repo.Subscribe(rec)

	n, err := repo.UpdateWhere(ctx,
		Filter{Org: "o1", Fields: map[string]any{"status": model.CandidateActive}},
		map[string]any{"status": model.CandidateArchived},
	)
	if err != nil {
		t.Fatalf("update where: %v", err)
	}
	if n != 100 {
		t.Fatalf("want 100 updated, got %d", n)
	}
	if len(rec.bulk) != 1 || len(rec.bulk[0]) != 100 {
		t.Fatalf("want one bulk event with 100 ids, got %d batches", len(rec.bulk))
	}
	for i, id := range rec.bulk[0] {
		if want := fmt.Sprintf("c%03d", i); id != want {
			t.Fatalf("bulk id %d = %q, want %q", i, id, want)
		}
	}
	if len(rec.events) != 0 {
		t.Errorf("bulk listener must not receive per-record events, got %d", len(rec.events))
	}

	c, _ := repo.Get(ctx, "c042")
	if c.Status != model.CandidateArchived {
		t.Errorf("status not patched: %q", c.Status)
	}
	x, _ := repo.Get(ctx, "x")
	if x.Status != model.CandidateActive {
		t.Errorf("other tenant touched: %q", x.Status)
	}

	archived, err := repo.IDsWhere(ctx, Filter{Fields: map[string]any{"status": "archived"}})
	if err != nil {
		t.Fatalf("ids where: %v", err)
	}
	if len(archived) != 100 {
		t.Errorf("want 100 archived ids, got %d", len(archived))
	}
}

func Test_Repository_LongIDListsAreChunked(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	ctx := context.Background()

	for _, id := range []string{"a", "m", "z"} {
		if err := repo.Create(ctx, newCandidate(id, "o1")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// More ids than SQLite binds in one statement; the real ones straddle
	// chunk boundaries.
	ids := make([]string, 0, 40_000)
	for i := range 40_000 {
		switch i {
		case 10:
			ids = append(ids, "z")
		case 20_000:
			ids = append(ids, "a")
		case 39_999:
			ids = append(ids, "m")
		default:
			ids = append(ids, fmt.Sprintf("missing-%d", i))
		}
	}

	got, err := repo.GetMany(ctx, ids)
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	gotIDs := make([]string, 0, len(got))
	for _, c := range got {
		gotIDs = append(gotIDs, c.ID)
	}
	if !slices.Equal(gotIDs, []string{"z", "a", "m"}) {
		t.Errorf("get many = %v, want [z a m]", gotIDs)
	}

	rec := &bulkRecorder{}
	repo.Subscribe(rec)
	n, err := repo.UpdateWhere(ctx, Filter{IDs: ids}, map[string]any{"status": model.CandidateArchived})
	if err != nil {
		t.Fatalf("update where: %v", err)
	}
	if n != 3 || len(rec.bulk) != 1 || !slices.Equal(rec.bulk[0], []string{"a", "m", "z"}) {
		t.Errorf("updated %d, bulk events %v", n, rec.bulk)
	}
	archived, err := repo.IDsWhere(ctx, Filter{IDs: ids, Fields: map[string]any{"status": "archived"}})
	if err != nil {
		t.Fatalf("ids where: %v", err)
	}
	if !slices.Equal(archived, []string{"a", "m", "z"}) {
		t.Errorf("archived = %v", archived)
	}
}

func Test_Repository_UpdateWherePerRecordFallback(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := repo.Create(ctx, newCandidate(id, "o1")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	rec := &recorder{}
	repo.Subscribe(rec)

	if _, err := repo.UpdateWhere(ctx, Filter{}, map[string]any{"location": "Berlin"}); err != nil {
		t.Fatalf("update where: %v", err)
	}
	if !slices.Equal(rec.events, []string{"updated:a", "updated:b"}) {
		t.Errorf("events = %v", rec.events)
	}
}

func Test_Repository_UpdateWhereRejectsBadFields(t *testing.T) {
	t.Parallel()
	repo := NewCandidates(openTestDB(t), logging.Discard())
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		patch  map[string]any
	}{
		{"immutable org", Filter{}, map[string]any{"org": "o2"}},
		{"injection in patch", Filter{}, map[string]any{"status') --": "x"}},
		{"injection in filter", Filter{Fields: map[string]any{"a'b": 1}}, map[string]any{"status": "archived"}},
	}
	for _, tc := range tests {
		if _, err := repo.UpdateWhere(ctx, tc.filter, tc.patch); !errors.Is(err, model.ErrInvalid) {
			t.Errorf("%s: want ErrInvalid, got %v", tc.name, err)
		}
	}
}

func ids(cs []*model.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
