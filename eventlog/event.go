// Package eventlog is the fire-and-forget log sink of the streaming path.
// Handlers build an Event per request and hand it to a Sink; sinks persist
// it asynchronously, keep it in memory or export it as metrics, and never
// block or fail the response.
package eventlog

import (
	"time"

	"audiostream/core"
	"audiostream/db"
)

// Type classifies an event.
type Type string

const (
	TypeStream  Type = "stream"
	TypeChunk   Type = "chunk"
	TypeResolve Type = "resolve"
	TypeError   Type = "error"
)

// CacheStatus records the chunk cache outcome of a request.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
	CacheNone CacheStatus = "none"
)

// Event describes one handled request.
type Event struct {
	Time        time.Time
	Type        Type
	Message     string
	ResourceID  int64 // 0 when the locator did not resolve
	Chunk       *int  // Set for chunk requests only
	Range       *core.ByteRange
	FileSize    int64
	Status      int
	Duration    time.Duration
	BytesSent   int64
	CacheStatus CacheStatus
	ClientIP    string
	UserAgent   string
	RequestURI  string
}

// Failed reports whether the event describes a server-side failure.
// Client aborts and expected 4xx outcomes are not failures.
func (e Event) Failed() bool {
	return e.Type == TypeError || e.Status >= 500
}

// Sink receives events. Record must return promptly and must not panic.
type Sink interface {
	Record(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

// Record implements Sink.
func (f SinkFunc) Record(e Event) { f(e) }

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

// ToLogEntry converts an event to its stream_log row.
func ToLogEntry(e Event) db.LogEntry {
	entry := db.LogEntry{
		LogTime:     e.Time,
		Type:        string(e.Type),
		Message:     e.Message,
		StatusCode:  e.Status,
		DurationMS:  float64(e.Duration) / float64(time.Millisecond),
		BytesSent:   e.BytesSent,
		CacheStatus: string(e.CacheStatus),
		IPAddress:   e.ClientIP,
		UserAgent:   e.UserAgent,
		RequestURI:  e.RequestURI,
	}
	if entry.CacheStatus == "" {
		entry.CacheStatus = string(CacheNone)
	}
	if e.ResourceID != 0 {
		id := e.ResourceID
		entry.ResourceID = &id
	}
	if e.Chunk != nil {
		chunk := int64(*e.Chunk)
		entry.ChunkIndex = &chunk
	}
	if e.Range != nil {
		start, end := e.Range.Start, e.Range.End
		entry.ByteStart = &start
		entry.ByteEnd = &end
	}
	if e.FileSize > 0 || e.ResourceID != 0 {
		size := e.FileSize
		entry.FileSize = &size
	}
	return entry
}
