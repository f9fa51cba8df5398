package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/similarity"
)

// maxLimit caps the result count of search and similarity requests.
const maxLimit = 100

// maxTargets caps the explicit target list of a similarity request.
const maxTargets = 1000

// collectionResolver maps a tenant to its index collection. Both
// search.Collection and similarity.Collection have this shape.
type collectionResolver interface {
	CollectionName(tenant string) string
}

// collection resolves an entity name from a route to its index syncer.
func (s *Server) collection(entity string) (collectionResolver, bool) {
	switch entity {
	case model.EntityCandidates:
		return s.deps.CandidateIndex, true
	case model.EntityJobs:
		return s.deps.JobIndex, true
	}
	return nil, false
}

func (s *Server) limit(requested int) int {
	if requested <= 0 {
		return s.cfg.DefaultLimit
	}
	return min(requested, maxLimit)
}

// handleSearch handles POST /api/search/{entity}. The X-Organization-ID
// header, when present, restricts results to that organization.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	coll, ok := s.collection(entity)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown entity %q", entity))
		return
	}

	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "query is required")
		return
	}

	hits := s.deps.Search.Search(r.Context(), coll, req.Query, s.limit(req.Limit), tenant(r))
	writeJSON(w, r, http.StatusOK, searchResponse{Results: hits})
}

// handleSimilarity handles POST /api/similarity/{entity}. With target_ids
// it scores exactly those targets; without, it returns the nearest
// entities of the target type.
func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	source, ok := s.collection(entity)
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown entity %q", entity))
		return
	}

	var req similarityRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if req.SourceID == "" {
		writeError(w, r, http.StatusBadRequest, "source_id is required")
		return
	}
	if len(req.TargetIDs) > maxTargets {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("at most %d target_ids are allowed", maxTargets))
		return
	}
	target := source
	if req.Target != "" {
		if target, ok = s.collection(req.Target); !ok {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown target entity %q", req.Target))
			return
		}
	}

	simReq := similarity.Request{
		Source:    source,
		Target:    target,
		SourceID:  req.SourceID,
		TargetIDs: req.TargetIDs,
		Tenant:    tenant(r),
	}
	var matches []similarity.Match
	if len(req.TargetIDs) > 0 {
		matches = s.deps.Similarity.CompareOne(r.Context(), simReq)
	} else {
		matches = s.deps.Similarity.Nearest(r.Context(), simReq, s.limit(req.Limit))
	}
	writeJSON(w, r, http.StatusOK, similarityResponse{Results: matches})
}
