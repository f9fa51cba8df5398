package search

import (
	"math"
	"testing"

	"github.com/54b3r/hiresync-go/internal/index"
)

func points(ids ...string) []index.ScoredPoint {
	out := make([]index.ScoredPoint, 0, len(ids))
	for _, id := range ids {
		out = append(out, index.ScoredPoint{ID: id, Payload: map[string]any{"_id": id}})
	}
	return out
}

func TestFuseRRF_Scores(t *testing.T) {
	t.Parallel()

	hits := FuseRRF(60, points("a", "b"), points("b", "c"))
	if len(hits) != 3 {
		t.Fatalf("want 3 hits, got %d", len(hits))
	}

	want := []struct {
		id    string
		score float64
	}{
		{"b", 1.0/62 + 1.0/61},
		{"a", 1.0 / 61},
		{"c", 1.0 / 62},
	}
	for i, w := range want {
		if hits[i].ID != w.id {
			t.Errorf("hit %d: want %s, got %s", i, w.id, hits[i].ID)
		}
		if math.Abs(hits[i].Score-w.score) > 1e-12 {
			t.Errorf("hit %d (%s): score = %v, want %v", i, w.id, hits[i].Score, w.score)
		}
	}
}

func TestFuseRRF_TiesKeepFirstSeenOrder(t *testing.T) {
	t.Parallel()

	hits := FuseRRF(0, points("x"), points("y"))
	if len(hits) != 2 || hits[0].ID != "x" || hits[1].ID != "y" {
		t.Fatalf("want [x y], got %+v", hits)
	}
	if hits[0].Score != hits[1].Score {
		t.Errorf("expected equal scores, got %v and %v", hits[0].Score, hits[1].Score)
	}
}

func TestFuseRRF_CustomK(t *testing.T) {
	t.Parallel()

	hits := FuseRRF(1, points("a"))
	if len(hits) != 1 || hits[0].Score != 0.5 {
		t.Fatalf("want score 1/(1+1), got %+v", hits)
	}
}

func TestFuseRRF_Empty(t *testing.T) {
	t.Parallel()

	if hits := FuseRRF(60); len(hits) != 0 {
		t.Errorf("want no hits, got %d", len(hits))
	}
	if hits := FuseRRF(60, nil, nil); len(hits) != 0 {
		t.Errorf("want no hits, got %d", len(hits))
	}
}
