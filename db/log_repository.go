package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogEntry is a row of the stream_log table.
type LogEntry struct {
	ID          int64
	LogTime     time.Time // Stored as unix milliseconds
	Type        string    // "stream", "chunk", "resolve" or "error"
	Message     string
	ResourceID  *int64
	ChunkIndex  *int64
	ByteStart   *int64
	ByteEnd     *int64
	FileSize    *int64
	StatusCode  int
	DurationMS  float64
	BytesSent   int64
	CacheStatus string // "hit", "miss" or "none"
	IPAddress   string
	UserAgent   string
	RequestURI  string
}

const insertLogQuery = `
	INSERT INTO stream_log (
		log_time, log_type, message, resource_id, chunk_index, byte_start, byte_end,
		file_size, status_code, duration_ms, bytes_sent, cache_status,
		ip_address, user_agent, request_uri
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func logArgs(e LogEntry) []interface{} {
	logTime := e.LogTime
	if logTime.IsZero() {
		logTime = time.Now()
	}
	cacheStatus := e.CacheStatus
	if cacheStatus == "" {
		cacheStatus = "none"
	}
	return []interface{}{
		logTime.UnixMilli(), e.Type, e.Message,
		nullInt64(e.ResourceID), nullInt64(e.ChunkIndex), nullInt64(e.ByteStart), nullInt64(e.ByteEnd),
		nullInt64(e.FileSize), e.StatusCode, e.DurationMS, e.BytesSent, cacheStatus,
		e.IPAddress, e.UserAgent, e.RequestURI,
	}
}

// InsertLog writes an entry synchronously.
func (r *Repository) InsertLog(ctx context.Context, e LogEntry) error {
	conn, err := r.db.conn()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, insertLogQuery, logArgs(e)...); err != nil {
		return fmt.Errorf("failed to insert stream log: %w", err)
	}
	return nil
}

// InsertLogAsync queues an entry on the AsyncWriter. It never blocks and
// returns false when the entry was not queued.
func (r *Repository) InsertLogAsync(e LogEntry) bool {
	if r.asyncWriter == nil {
		return false
	}
	return r.asyncWriter.Enqueue(insertLogQuery, logArgs(e)...)
}

// RecentLogs returns up to limit entries, newest first.
func (r *Repository) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT id, log_time, log_type, message, resource_id, chunk_index, byte_start, byte_end,
			file_size, status_code, duration_ms, bytes_sent, cache_status,
			ip_address, user_agent, request_uri
		FROM stream_log
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream log: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var logTime int64
		var resourceID, chunkIndex, byteStart, byteEnd, fileSize sql.NullInt64
		if err := rows.Scan(&e.ID, &logTime, &e.Type, &e.Message, &resourceID, &chunkIndex,
			&byteStart, &byteEnd, &fileSize, &e.StatusCode, &e.DurationMS, &e.BytesSent,
			&e.CacheStatus, &e.IPAddress, &e.UserAgent, &e.RequestURI); err != nil {
			return nil, fmt.Errorf("failed to scan stream log: %w", err)
		}
		e.LogTime = time.UnixMilli(logTime).UTC()
		e.ResourceID = int64Ptr(resourceID)
		e.ChunkIndex = int64Ptr(chunkIndex)
		e.ByteStart = int64Ptr(byteStart)
		e.ByteEnd = int64Ptr(byteEnd)
		e.FileSize = int64Ptr(fileSize)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LogStats summarizes the persisted stream log.
type LogStats struct {
	Total         int64            `json:"total"`
	ByType        map[string]int64 `json:"by_type"`
	Errors        int64            `json:"errors"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
	MaxDurationMS float64          `json:"max_duration_ms"`
	MinDurationMS float64          `json:"min_duration_ms"`
	BytesSent     int64            `json:"bytes_sent"`
	CacheHits     int64            `json:"cache_hits"`
	CacheMisses   int64            `json:"cache_misses"`
}

// CacheHitRate returns hits / (hits + misses), or 0 with no lookups.
func (s LogStats) CacheHitRate() float64 {
	if s.CacheHits+s.CacheMisses == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.CacheHits+s.CacheMisses)
}

// StreamLogStats aggregates the stream log.
func (r *Repository) StreamLogStats(ctx context.Context) (LogStats, error) {
	stats := LogStats{ByType: make(map[string]int64)}
	conn, err := r.db.conn()
	if err != nil {
		return stats, err
	}

	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(MAX(duration_ms), 0),
			COALESCE(MIN(duration_ms), 0),
			COALESCE(SUM(bytes_sent), 0),
			COALESCE(SUM(CASE WHEN cache_status = 'hit' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN cache_status = 'miss' THEN 1 ELSE 0 END), 0)
		FROM stream_log`).Scan(&stats.Total, &stats.Errors, &stats.AvgDurationMS,
		&stats.MaxDurationMS, &stats.MinDurationMS, &stats.BytesSent, &stats.CacheHits, &stats.CacheMisses)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate stream log: %w", err)
	}

	rows, err := conn.QueryContext(ctx, `SELECT log_type, COUNT(*) FROM stream_log GROUP BY log_type`)
	if err != nil {
		return stats, fmt.Errorf("failed to count stream log types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var logType string
		var n int64
		if err := rows.Scan(&logType, &n); err != nil {
			return stats, fmt.Errorf("failed to scan stream log type: %w", err)
		}
		stats.ByType[logType] = n
	}
	return stats, rows.Err()
}

// ClearLogs deletes every stream log row and returns the count removed.
func (r *Repository) ClearLogs(ctx context.Context) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, `DELETE FROM stream_log`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear stream log: %w", err)
	}
	return res.RowsAffected()
}
