// Package server exposes the streaming core over HTTP: the play, resolve
// and chunk endpoints, the static media route, health, metrics and the
// password-protected admin API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"audiostream/chunkcache"
	"audiostream/core"
	"audiostream/delivery"
	"audiostream/eventlog"
	"audiostream/logging"
	"audiostream/media"
	"audiostream/shutdown"
	"audiostream/stream"
)

// FileLocator maps a catalog filename to an absolute path inside the
// media root, refusing anything that escapes it.
type FileLocator interface {
	Contain(filename string) (string, error)
}

// Deps are the components the server routes requests to. Logs and
// Gatherer are optional.
type Deps struct {
	Config   *core.Config
	Resolver *media.Resolver
	Files    FileLocator
	Policy   *delivery.Policy
	Engine   *stream.Engine
	Chunks   *chunkcache.Cache
	Tracker  *shutdown.StreamTracker
	Events   eventlog.Sink
	Recorder *eventlog.Recorder
	Logs     LogAdmin
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Server is the HTTP front end.
type Server struct {
	Deps
	handler    http.Handler
	httpServer *http.Server
	limiter    *loginLimiter
}

// NewServer validates deps and builds the route table.
//
// Parameters:
//   - deps: every field except Logs and Gatherer is required
//
// Returns:
//   - *Server: ready to Start or to be mounted via Handler
//   - error: if a required dependency is missing
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("server: config is required")
	case deps.Resolver == nil, deps.Files == nil:
		return nil, errors.New("server: resolver and file locator are required")
	case deps.Policy == nil, deps.Engine == nil, deps.Chunks == nil:
		return nil, errors.New("server: policy, engine and chunk cache are required")
	case deps.Tracker == nil:
		return nil, errors.New("server: stream tracker is required")
	}
	if deps.Recorder == nil {
		deps.Recorder = eventlog.NewRecorder(100)
	}
	if deps.Events == nil {
		deps.Events = deps.Recorder
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	s := &Server{Deps: deps, limiter: newLoginLimiter()}
	s.handler = s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              deps.Config.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: deps.Config.ReadHeaderTimeout,
		IdleTimeout:       deps.Config.IdleTimeout,
		// No WriteTimeout: a full-length stream may legitimately run for
		// as long as the track plays.
		ErrorLog: zap.NewStdLog(deps.Logger.Zap()),
	}
	return s, nil
}

// setupRoutes configures all HTTP routes. GET patterns also match HEAD.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /play/{locator...}", s.handlePlay)
	mux.HandleFunc("GET /resolve-id", s.handleResolveID)
	mux.HandleFunc("GET /chunk", s.handleChunk)
	mux.HandleFunc("GET /{$}", s.handleChunk)
	mux.HandleFunc("GET /media/{path...}", s.handleMedia)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	if s.Config.AdminPasswordHash != "" {
		admin := http.NewServeMux()
		admin.HandleFunc("GET /admin/logs", s.handleAdminLogs)
		admin.HandleFunc("GET /admin/stats", s.handleAdminStats)
		admin.HandleFunc("POST /admin/logs/clear", s.handleAdminClearLogs)
		admin.HandleFunc("POST /admin/cache/clear", s.handleAdminClearCache)
		mux.Handle("/admin/", basicAuth(s.Config.AdminPasswordHash, s.limiter, s.Logger, admin))
	}

	var h http.Handler = s.playPathPassthrough(mux)
	h = loggingMiddleware(s.Logger.Named("http"), map[string]bool{"/health": true, "/metrics": true})(h)
	h = recoverMiddleware(s.Logger)(h)
	h = requestIDMiddleware(h)
	return h
}

// Handler returns the fully wrapped route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and blocks until the server is
// shut down. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.Logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to return
// or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status        string `json:"status"`
	ActiveStreams int64  `json:"active_streams"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.Tracker.Closed() {
		status, code = "shutting_down", http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, ActiveStreams: s.Tracker.Active()})
}

// publicURL returns the direct URL of ref under the public base URL, with
// each path segment escaped.
func (s *Server) publicURL(ref media.ResourceReference) string {
	segments := strings.Split(ref.Filename, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(s.Config.PublicBaseURL, "/") + "/" + strings.Join(segments, "/")
}

// redirectURL is publicURL when redirects are enabled, otherwise "".
func (s *Server) redirectURL(ref media.ResourceReference) string {
	if !s.Config.RedirectEnabled || ref.Filename == "" {
		return ""
	}
	return s.publicURL(ref)
}

// newEvent starts an event for r with the request fields filled in.
func newEvent(r *http.Request, typ eventlog.Type, start time.Time) eventlog.Event {
	return eventlog.Event{
		Time:        start,
		Type:        typ,
		CacheStatus: eventlog.CacheNone,
		ClientIP:    clientIP(r),
		UserAgent:   r.UserAgent(),
		RequestURI:  r.RequestURI,
	}
}

// begin registers an in-flight request with the tracker. When the server
// is draining it answers 503 and returns ok=false.
func (s *Server) begin(w http.ResponseWriter, kind eventlog.Type) (release func(), ok bool) {
	release, err := s.Tracker.Begin(string(kind))
	if err != nil {
		w.Header().Set("Retry-After", "5")
		http.Error(w, "shutting_down", http.StatusServiceUnavailable)
		return nil, false
	}
	return release, true
}
