package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/store"
)

// resource serves the write routes of one record type. Writes go to the
// store only; the index follows through the repository's listeners.
type resource[E store.Document] struct {
	repo *store.Repository[E]
	orgs *store.Repository[*model.Organization]

	newDoc func() E

	// assign sets the server-owned fields of a decoded body before a write.
	assign func(e E, id, org string, created time.Time)

	createdAt func(e E) time.Time
}

func candidateResource(d Deps) *resource[*model.Candidate] {
	return &resource[*model.Candidate]{
		repo:   d.Candidates,
		orgs:   d.Orgs,
		newDoc: func() *model.Candidate { return &model.Candidate{} },
		assign: func(c *model.Candidate, id, org string, created time.Time) {
			c.ID, c.Org, c.CreatedAt = id, model.OrgRef(org), created
		},
		createdAt: func(c *model.Candidate) time.Time { return c.CreatedAt },
	}
}

func jobResource(d Deps) *resource[*model.JobListing] {
	return &resource[*model.JobListing]{
		repo:   d.Jobs,
		orgs:   d.Orgs,
		newDoc: func() *model.JobListing { return &model.JobListing{} },
		assign: func(j *model.JobListing, id, org string, created time.Time) {
			j.ID, j.Org, j.CreatedAt = id, model.OrgRef(org), created
		},
		createdAt: func(j *model.JobListing) time.Time { return j.CreatedAt },
	}
}

// create handles POST /api/{entity}. The id is always server-assigned.
func (res *resource[E]) create(w http.ResponseWriter, r *http.Request) {
	org, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if _, err := res.orgs.Get(r.Context(), org); err != nil {
		writeFailure(w, r, fmt.Errorf("organization %q: %w", org, err))
		return
	}

	e := res.newDoc()
	if err := decodeBody(r, e); err != nil {
		writeFailure(w, r, err)
		return
	}
	res.assign(e, "", org, time.Time{})

	if err := res.repo.Create(r.Context(), e); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

// get handles GET /api/{entity}/{id}.
func (res *resource[E]) get(w http.ResponseWriter, r *http.Request) {
	org, ok := requireTenant(w, r)
	if !ok {
		return
	}
	e, err := res.load(r, org)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// update handles PUT /api/{entity}/{id}. The body replaces the record; the
// owning organization and creation time are kept from the stored copy.
func (res *resource[E]) update(w http.ResponseWriter, r *http.Request) {
	org, ok := requireTenant(w, r)
	if !ok {
		return
	}
	existing, err := res.load(r, org)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	e := res.newDoc()
	if err := decodeBody(r, e); err != nil {
		writeFailure(w, r, err)
		return
	}
	res.assign(e, existing.GetID(), existing.Tenant(), res.createdAt(existing))

	if err := res.repo.Update(r.Context(), e); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// remove handles DELETE /api/{entity}/{id}.
func (res *resource[E]) remove(w http.ResponseWriter, r *http.Request) {
	org, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if _, err := res.load(r, org); err != nil {
		writeFailure(w, r, err)
		return
	}
	if _, err := res.repo.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the path's record. Records of another organization are
// reported as not found.
func (res *resource[E]) load(r *http.Request, org string) (E, error) {
	e, err := res.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return e, err
	}
	if e.Tenant() != org {
		var zero E
		return zero, store.ErrNotFound
	}
	return e, nil
}

// handleBulkStatus handles POST /api/candidates/bulk-status. Every changed
// candidate is re-read and re-indexed after the update commits.
func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	org, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req bulkStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	f := store.Filter{Org: org, IDs: req.IDs}
	if req.FromStatus != "" {
		if !req.FromStatus.Valid() {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown from_status %q", req.FromStatus))
			return
		}
		f.Fields = map[string]any{"status": string(req.FromStatus)}
	}

	n, err := s.deps.Candidates.UpdateWhere(r.Context(), f, map[string]any{"status": string(req.Status)})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bulkStatusResponse{Updated: n})
}

// requireTenant returns the request's organization, answering 400 when the
// header is missing.
func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := tenant(r)
	if org == "" {
		writeError(w, r, http.StatusBadRequest, tenantHeader+" header is required")
		return "", false
	}
	return org, true
}
