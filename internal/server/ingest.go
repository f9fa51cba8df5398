package server

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/ingestion"
	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/resync"
)

// multipartOverhead is the allowance for multipart framing on top of
// Config.MaxUploadBytes.
const multipartOverhead = 64 << 10

// handleExtract handles POST /api/resume/extract. It accepts either a
// multipart upload with a "file" field, or a JSON body carrying the resume
// "text" or an http(s) "source" URL. The extracted candidate is created in
// the caller's organization and returned.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ingest == nil {
		writeError(w, r, http.StatusServiceUnavailable, "resume extraction is not configured")
		return
	}
	org, ok := requireTenant(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	var (
		c   *model.Candidate
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, hdr, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, r, http.StatusBadRequest, `multipart field "file" is required`)
			return
		}
		defer file.Close()
		c, err = s.deps.Ingest.IngestUpload(r.Context(), org, hdr.Filename, file)
	} else {
		var req extractRequest
		if err := decodeBody(r, &req); err != nil {
			writeFailure(w, r, err)
			return
		}
		switch {
		case req.Text != "":
			if int64(len(req.Text)) > s.cfg.MaxUploadBytes {
				writeFailure(w, r, ingestion.ErrTooLarge)
				return
			}
			c, err = s.deps.Ingest.IngestText(r.Context(), org, req.Text, "")
		case strings.HasPrefix(req.Source, "http://"), strings.HasPrefix(req.Source, "https://"):
			c, err = s.deps.Ingest.IngestSource(r.Context(), org, req.Source)
		case req.Source != "":
			writeError(w, r, http.StatusBadRequest, "source must be an http(s) URL")
			return
		default:
			writeError(w, r, http.StatusBadRequest, "one of text or source is required")
			return
		}
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// handleReindex handles POST /api/reindex/{entity}. It re-upserts every
// record of the entity type, or only the caller's organization when the
// X-Organization-ID header is set, and reports per-id failures.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	opts := resync.Options{Org: tenant(r), Logger: logging.FromContext(r.Context())}

	var (
		report index.Report
		err    error
	)
	switch entity {
	case model.EntityCandidates:
		report, err = resync.Run[*model.Candidate](r.Context(), s.deps.Candidates, s.deps.CandidateIndex, opts)
	case model.EntityJobs:
		report, err = resync.Run[*model.JobListing](r.Context(), s.deps.Jobs, s.deps.JobIndex, opts)
	default:
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown entity %q", entity))
		return
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, reindexResponse{
		Entity:    entity,
		Total:     report.Total,
		Indexed:   report.Indexed,
		Failed:    report.Failed(),
		FailedIDs: report.FailedIDs,
	})
}
