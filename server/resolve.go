package server

import (
	"net/http"
	"strings"
	"time"

	"audiostream/core"
	"audiostream/eventlog"
)

type resolveResponse struct {
	Success  bool   `json:"success"`
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MIMEType string `json:"mime"`
	Size     int64  `json:"size"`
	Strategy string `json:"strategy"`
}

// handleResolveID serves GET /resolve-id?filename=. It answers with the
// resource ID and direct URL so clients can switch to /play/{id}.
func (s *Server) handleResolveID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	ev := newEvent(r, eventlog.TypeResolve, start)

	if filename == "" {
		writeError(w, http.StatusBadRequest, "missing_filename")
		ev.Status = http.StatusBadRequest
		ev.Message = "missing filename"
		s.Events.Record(ev)
		return
	}

	ref, strategy, err := s.Resolver.ResolveTraced(r.Context(), filename)
	ev.Duration = time.Since(start)
	if err != nil {
		kind := core.KindOf(err)
		status := core.StatusFor(kind)
		code := "not_found"
		switch kind {
		case core.KindNotFound:
		case core.KindForbidden:
			code = "forbidden"
		default:
			status, code = http.StatusInternalServerError, "internal_error"
			ev.Type = eventlog.TypeError
		}
		writeError(w, status, code)
		ev.Status = status
		ev.Message = err.Error()
		s.Events.Record(ev)
		return
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		Success:  true,
		ID:       ref.ID,
		Filename: ref.Filename,
		URL:      s.publicURL(ref),
		MIMEType: ref.MIMEType,
		Size:     ref.Size,
		Strategy: string(strategy),
	})
	ev.Status = http.StatusOK
	ev.ResourceID = ref.ID
	ev.FileSize = ref.Size
	ev.Message = "resolved via " + string(strategy)
	s.Events.Record(ev)
}
