package eventlog

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"audiostream/db"
	"audiostream/logging"
)

// DefaultRetentionInterval is how often the retention policy runs.
const DefaultRetentionInterval = 10 * time.Minute

// LogStore queues stream_log rows without blocking.
type LogStore interface {
	InsertLogAsync(e db.LogEntry) bool
}

// Retainer trims the persisted log.
type Retainer interface {
	ApplyLogRetention(ctx context.Context, maxEntries, retentionDays int) (db.CleanupResult, error)
}

// RetentionPolicy bounds the persisted log.
type RetentionPolicy struct {
	MaxEntries int
	MaxAgeDays int
	Interval   time.Duration
}

// PersistentSink writes events to the stream_log table through the
// database's async writer. When the queue is full the event is dropped.
type PersistentSink struct {
	store   LogStore
	logger  *logging.Logger
	dropped atomic.Int64
}

// NewPersistentSink creates a sink writing through store.
func NewPersistentSink(store LogStore, logger *logging.Logger) *PersistentSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PersistentSink{store: store, logger: logger.Named("eventlog")}
}

// Record implements Sink.
func (s *PersistentSink) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if !s.store.InsertLogAsync(ToLogEntry(e)) {
		n := s.dropped.Add(1)
		s.logger.Debug("stream log entry dropped", zap.String("type", string(e.Type)), zap.Int64("dropped_total", n))
	}
}

// Dropped returns the number of events that could not be queued.
func (s *PersistentSink) Dropped() int64 {
	return s.dropped.Load()
}

// RunRetention applies policy once immediately and then every
// policy.Interval until ctx is cancelled.
func RunRetention(ctx context.Context, r Retainer, policy RetentionPolicy, logger *logging.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := policy.Interval
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	apply := func() {
		result, err := r.ApplyLogRetention(ctx, policy.MaxEntries, policy.MaxAgeDays)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("log retention failed", zap.Error(err))
			}
			return
		}
		if result.TotalDeleted() > 0 {
			logger.Debug("log retention applied",
				zap.Int64("expired", result.ExpiredDeleted),
				zap.Int64("overflow", result.OverflowDeleted))
		}
	}

	apply()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			apply()
		}
	}
}
