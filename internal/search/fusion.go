package search

import (
	"cmp"
	"slices"

	"github.com/54b3r/hiresync-go/internal/index"
)

// DefaultRRFK is the rank offset of Reciprocal Rank Fusion.
const DefaultRRFK = 60

// FuseRRF merges ranked lists with Reciprocal Rank Fusion: each id scores
// the sum of 1/(k+rank) over the lists it appears in, rank starting at 1.
// The result is sorted by score descending; ties keep the order in which ids
// were first seen, scanning lists in argument order. The payload of an id's
// first occurrence is kept.
func FuseRRF(k int, lists ...[]index.ScoredPoint) []Hit {
	if k <= 0 {
		k = DefaultRRFK
	}
	byID := make(map[string]int)
	var hits []Hit
	for _, list := range lists {
		for i, p := range list {
			contribution := 1.0 / float64(k+i+1)
			if at, ok := byID[p.ID]; ok {
				hits[at].Score += contribution
				if hits[at].Payload == nil {
					hits[at].Payload = p.Payload
				}
				continue
			}
			byID[p.ID] = len(hits)
			hits = append(hits, Hit{ID: p.ID, Payload: p.Payload, Score: contribution})
		}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return hits
}
