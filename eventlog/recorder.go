package eventlog

import (
	"sync"
	"time"
)

// Stats aggregates events seen by a Recorder since start or the last Reset.
type Stats struct {
	Total         int64            `json:"total"`
	ByType        map[string]int64 `json:"by_type"`
	Errors        int64            `json:"errors"`
	Aborted       int64            `json:"aborted"`
	BytesSent     int64            `json:"bytes_sent"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
	MaxDurationMS float64          `json:"max_duration_ms"`
	MinDurationMS float64          `json:"min_duration_ms"`
	CacheHits     int64            `json:"cache_hits"`
	CacheMisses   int64            `json:"cache_misses"`
	CacheHitRate  float64          `json:"cache_hit_rate"`
	Uptime        string           `json:"uptime"`
}

// Recorder keeps the most recent events in memory and running totals over
// all of them. It serves the admin endpoints when no database is attached.
type Recorder struct {
	recent *Ring[Event]

	mu            sync.Mutex
	startTime     time.Time
	total         int64
	byType        map[string]int64
	errors        int64
	aborted       int64
	bytesSent     int64
	totalDuration time.Duration
	maxDuration   time.Duration
	minDuration   time.Duration
	cacheHits     int64
	cacheMisses   int64
}

// NewRecorder creates a Recorder retaining capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 100
	}
	return &Recorder{
		recent:    NewRing[Event](capacity),
		startTime: time.Now(),
		byType:    make(map[string]int64),
	}
}

// Record implements Sink.
func (r *Recorder) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.recent.Push(e)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	r.byType[string(e.Type)]++
	if e.Failed() {
		r.errors++
	}
	if e.Status == 499 {
		r.aborted++
	}
	r.bytesSent += e.BytesSent
	r.totalDuration += e.Duration
	if e.Duration > r.maxDuration {
		r.maxDuration = e.Duration
	}
	if r.total == 1 || e.Duration < r.minDuration {
		r.minDuration = e.Duration
	}
	switch e.CacheStatus {
	case CacheHit:
		r.cacheHits++
	case CacheMiss:
		r.cacheMisses++
	}
}

// Recent returns up to limit events, newest first.
func (r *Recorder) Recent(limit int) []Event {
	return r.recent.Recent(limit)
}

// Stats returns a snapshot of the running totals.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Total:         r.total,
		ByType:        make(map[string]int64, len(r.byType)),
		Errors:        r.errors,
		Aborted:       r.aborted,
		BytesSent:     r.bytesSent,
		MaxDurationMS: ms(r.maxDuration),
		MinDurationMS: ms(r.minDuration),
		CacheHits:     r.cacheHits,
		CacheMisses:   r.cacheMisses,
		Uptime:        time.Since(r.startTime).Round(time.Second).String(),
	}
	for k, v := range r.byType {
		s.ByType[k] = v
	}
	if r.total > 0 {
		s.AvgDurationMS = ms(r.totalDuration) / float64(r.total)
	}
	if lookups := r.cacheHits + r.cacheMisses; lookups > 0 {
		s.CacheHitRate = float64(r.cacheHits) / float64(lookups)
	}
	return s
}

// Reset clears recent events and totals. It returns the number of events
// that were held in memory.
func (r *Recorder) Reset() int {
	n := r.recent.Clear()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.total, r.errors, r.aborted, r.bytesSent = 0, 0, 0, 0
	r.totalDuration, r.maxDuration, r.minDuration = 0, 0, 0
	r.cacheHits, r.cacheMisses = 0, 0
	r.byType = make(map[string]int64)
	return n
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
