package server

import (
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"audiostream/core"
	"audiostream/delivery"
	"audiostream/eventlog"
	"audiostream/stream"
)

// StatusClientClosed is recorded for requests whose client went away
// mid-body. It never reaches the wire.
const StatusClientClosed = 499

// playPathPassthrough hands /play/ requests whose path is not clean, such as
// /play/https://host/a.mp3, straight to handlePlay. ServeMux would answer
// them with a redirect to the cleaned path, which drops the "//" of the
// scheme.
func (s *Server) playPathPassthrough(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			locator, ok := strings.CutPrefix(r.URL.Path, "/play/")
			if ok && locator != "" && !isCleanPath(r.URL.Path) {
				r.SetPathValue("locator", locator)
				s.handlePlay(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isCleanPath reports whether ServeMux would route p without redirecting.
func isCleanPath(p string) bool {
	np := path.Clean(p)
	if strings.HasSuffix(p, "/") && np != "/" {
		np += "/"
	}
	return np == p
}

// handlePlay serves GET and HEAD /play/{locator}. The locator may also be
// given as ?url= for clients that cannot put a URL in a path segment.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	release, ok := s.begin(w, eventlog.TypeStream)
	if !ok {
		return
	}
	defer release()

	locator := r.PathValue("locator")
	if locator == "" {
		locator = r.URL.Query().Get("url")
	}

	ref, strategy, err := s.Resolver.ResolveTraced(r.Context(), locator)
	var decision delivery.Decision
	if err != nil {
		decision = delivery.FromError(err)
	} else {
		decision = s.Policy.Decide(ref, delivery.Request{
			Method:      r.Method,
			Range:       r.Header.Get("Range"),
			IfNoneMatch: r.Header.Get("If-None-Match"),
			DirectURL:   s.redirectURL(ref),
		})
	}

	result := s.Engine.Stream(r.Context(), ref, decision, stream.NewHTTPSink(w))

	ev := newEvent(r, eventlog.TypeStream, start)
	ev.ResourceID = ref.ID
	ev.FileSize = ref.Size
	ev.Status = result.Status
	ev.BytesSent = result.BytesSent
	ev.Duration = time.Since(start)
	ev.Message = decision.Kind.String() + " via " + string(strategy)
	if decision.Streams() {
		rng := decision.Range
		ev.Range = &rng
	}

	switch kind := core.KindOf(result.Err); {
	case result.Aborted():
		ev.Status = StatusClientClosed
		ev.Message = "client disconnected"
	case kind == core.KindOpenFailed, kind == core.KindReadFailed, result.Status >= 500:
		ev.Type = eventlog.TypeError
		ev.Message = result.Err.Error()
		s.Logger.Error("stream failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int64("resource_id", ref.ID),
			zap.Error(result.Err))
	case result.Err != nil:
		ev.Message = decision.Kind.String() + ": " + decision.Reason
	}
	s.Events.Record(ev)
}
