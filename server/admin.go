package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"audiostream/db"
	"audiostream/eventlog"
)

// Admin list limits.
const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
)

// LogAdmin is the persisted side of the log sink.
type LogAdmin interface {
	RecentLogs(ctx context.Context, limit int) ([]db.LogEntry, error)
	StreamLogStats(ctx context.Context) (db.LogStats, error)
	ClearLogs(ctx context.Context) (int64, error)
}

// logView is the JSON shape of one log entry.
type logView struct {
	ID          int64     `json:"id,omitempty"`
	Time        time.Time `json:"time"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	ResourceID  *int64    `json:"resource_id,omitempty"`
	Chunk       *int64    `json:"chunk,omitempty"`
	ByteStart   *int64    `json:"byte_start,omitempty"`
	ByteEnd     *int64    `json:"byte_end,omitempty"`
	FileSize    *int64    `json:"file_size,omitempty"`
	Status      int       `json:"status"`
	DurationMS  float64   `json:"duration_ms"`
	BytesSent   int64     `json:"bytes_sent"`
	CacheStatus string    `json:"cache_status"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	RequestURI  string    `json:"request_uri"`
}

func viewFromEntry(e db.LogEntry) logView {
	return logView{
		ID:          e.ID,
		Time:        e.LogTime,
		Type:        e.Type,
		Message:     e.Message,
		ResourceID:  e.ResourceID,
		Chunk:       e.ChunkIndex,
		ByteStart:   e.ByteStart,
		ByteEnd:     e.ByteEnd,
		FileSize:    e.FileSize,
		Status:      e.StatusCode,
		DurationMS:  e.DurationMS,
		BytesSent:   e.BytesSent,
		CacheStatus: e.CacheStatus,
		ClientIP:    e.IPAddress,
		UserAgent:   e.UserAgent,
		RequestURI:  e.RequestURI,
	}
}

type logsResponse struct {
	Success bool      `json:"success"`
	Source  string    `json:"source"`
	Logs    []logView `json:"logs"`
}

// handleAdminLogs serves GET /admin/logs?limit=, newest first.
func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(n, maxLogLimit)
	}

	resp := logsResponse{Success: true, Logs: []logView{}}
	if s.Logs != nil {
		entries, err := s.Logs.RecentLogs(r.Context(), limit)
		if err != nil {
			s.Logger.Error("failed to read stream log", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		resp.Source = "database"
		for _, e := range entries {
			resp.Logs = append(resp.Logs, viewFromEntry(e))
		}
	} else {
		resp.Source = "memory"
		for _, e := range s.Recorder.Recent(limit) {
			resp.Logs = append(resp.Logs, viewFromEntry(eventlog.ToLogEntry(e)))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Success       bool             `json:"success"`
	Persisted     *db.LogStats     `json:"persisted,omitempty"`
	CacheHitRate  float64          `json:"cache_hit_rate"`
	Memory        eventlog.Stats   `json:"memory"`
	CacheEntries  int              `json:"cache_entries"`
	ActiveStreams int64            `json:"active_streams"`
	ActiveByKind  map[string]int64 `json:"active_by_kind"`
}

// handleAdminStats serves GET /admin/stats.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	mem := s.Recorder.Stats()
	resp := statsResponse{
		Success:       true,
		CacheHitRate:  mem.CacheHitRate,
		Memory:        mem,
		CacheEntries:  s.Chunks.Len(),
		ActiveStreams: s.Tracker.Active(),
		ActiveByKind:  s.Tracker.ActiveByKind(),
	}
	if s.Logs != nil {
		stats, err := s.Logs.StreamLogStats(r.Context())
		if err != nil {
			s.Logger.Error("failed to compute stream log stats", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		resp.Persisted = &stats
		resp.CacheHitRate = stats.CacheHitRate()
	}
	writeJSON(w, http.StatusOK, resp)
}

type clearResponse struct {
	Success bool  `json:"success"`
	Cleared int64 `json:"cleared"`
}

// handleAdminClearLogs serves POST /admin/logs/clear. It empties both the
// in-memory recorder and the persisted log.
func (s *Server) handleAdminClearLogs(w http.ResponseWriter, r *http.Request) {
	cleared := int64(s.Recorder.Reset())
	if s.Logs != nil {
		n, err := s.Logs.ClearLogs(r.Context())
		if err != nil {
			s.Logger.Error("failed to clear stream log", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		cleared = n
	}
	s.Logger.Info("stream log cleared", zap.Int64("entries", cleared))
	writeJSON(w, http.StatusOK, clearResponse{Success: true, Cleared: cleared})
}

// handleAdminClearCache serves POST /admin/cache/clear.
func (s *Server) handleAdminClearCache(w http.ResponseWriter, r *http.Request) {
	n := s.Chunks.Clear()
	s.Logger.Info("chunk cache cleared", zap.Int("entries", n))
	writeJSON(w, http.StatusOK, clearResponse{Success: true, Cleared: int64(n)})
}
