package db

import (
	"context"
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func TestInsertAndRecentLogs(t *testing.T) {
	repo := NewRepository(newTestDatabase(t), nil)
	ctx := context.Background()

	entries := []LogEntry{
		{Type: "stream", StatusCode: 206, ResourceID: int64p(1), ByteStart: int64p(100), ByteEnd: int64p(199), FileSize: int64p(10000), BytesSent: 100, DurationMS: 12.5},
		{Type: "chunk", StatusCode: 206, ResourceID: int64p(1), ChunkIndex: int64p(0), CacheStatus: "miss", DurationMS: 3},
		{Type: "chunk", StatusCode: 206, ResourceID: int64p(1), ChunkIndex: int64p(0), CacheStatus: "hit", DurationMS: 1},
		{Type: "error", StatusCode: 404, Message: "not_found", DurationMS: 0.5},
	}
	for _, e := range entries {
		if err := repo.InsertLog(ctx, e); err != nil {
			t.Fatalf("InsertLog() error = %v", err)
		}
	}

	recent, err := repo.RecentLogs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentLogs(2) returned %d rows", len(recent))
	}
	if recent[0].Type != "error" || recent[0].ResourceID != nil {
		t.Errorf("newest entry = %+v", recent[0])
	}
	if recent[1].CacheStatus != "hit" || recent[1].ChunkIndex == nil || *recent[1].ChunkIndex != 0 {
		t.Errorf("second newest entry = %+v", recent[1])
	}
	if recent[0].LogTime.IsZero() || time.Since(recent[0].LogTime) > time.Minute {
		t.Errorf("LogTime = %v, want recent", recent[0].LogTime)
	}
}

func TestStreamLogStats(t *testing.T) {
	repo := NewRepository(newTestDatabase(t), nil)
	ctx := context.Background()

	for _, e := range []LogEntry{
		{Type: "stream", StatusCode: 200, DurationMS: 10, BytesSent: 1000},
		{Type: "stream", StatusCode: 206, DurationMS: 30, BytesSent: 500},
		{Type: "chunk", StatusCode: 206, DurationMS: 2, CacheStatus: "hit"},
		{Type: "chunk", StatusCode: 206, DurationMS: 6, CacheStatus: "miss"},
		{Type: "error", StatusCode: 416, DurationMS: 2},
	} {
		if err := repo.InsertLog(ctx, e); err != nil {
			t.Fatalf("InsertLog() error = %v", err)
		}
	}

	stats, err := repo.StreamLogStats(ctx)
	if err != nil {
		t.Fatalf("StreamLogStats() error = %v", err)
	}

	if stats.Total != 5 || stats.Errors != 1 {
		t.Errorf("Total = %d Errors = %d, want 5 and 1", stats.Total, stats.Errors)
	}
	if stats.ByType["stream"] != 2 || stats.ByType["chunk"] != 2 || stats.ByType["error"] != 1 {
		t.Errorf("ByType = %v", stats.ByType)
	}
	if stats.AvgDurationMS != 10 || stats.MaxDurationMS != 30 || stats.MinDurationMS != 2 {
		t.Errorf("durations avg=%v max=%v min=%v", stats.AvgDurationMS, stats.MaxDurationMS, stats.MinDurationMS)
	}
	if stats.BytesSent != 1500 {
		t.Errorf("BytesSent = %d, want 1500", stats.BytesSent)
	}
	if stats.CacheHitRate() != 0.5 {
		t.Errorf("CacheHitRate() = %v, want 0.5", stats.CacheHitRate())
	}
}

func TestStreamLogStatsEmpty(t *testing.T) {
	repo := NewRepository(newTestDatabase(t), nil)

	stats, err := repo.StreamLogStats(context.Background())
	if err != nil {
		t.Fatalf("StreamLogStats() error = %v", err)
	}
	if stats.Total != 0 || stats.CacheHitRate() != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestApplyLogRetentionTrimsToNewest(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := repo.InsertLog(ctx, LogEntry{Type: "stream", BytesSent: int64(i)}); err != nil {
			t.Fatalf("InsertLog() error = %v", err)
		}
	}

	result, err := database.ApplyLogRetention(ctx, 10, 30)
	if err != nil {
		t.Fatalf("ApplyLogRetention() error = %v", err)
	}
	if result.OverflowDeleted != 5 || result.ExpiredDeleted != 0 || result.TotalDeleted() != 5 {
		t.Errorf("result = %+v", result)
	}

	recent, _ := repo.RecentLogs(ctx, 100)
	if len(recent) != 10 {
		t.Fatalf("rows after trim = %d, want 10", len(recent))
	}
	if recent[len(recent)-1].BytesSent != 5 {
		t.Errorf("oldest kept row BytesSent = %d, want 5", recent[len(recent)-1].BytesSent)
	}
}

func TestApplyLogRetentionDeletesExpired(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database, nil)
	ctx := context.Background()

	if err := repo.InsertLog(ctx, LogEntry{Type: "stream"}); err != nil {
		t.Fatalf("InsertLog() error = %v", err)
	}
	if _, err := database.DB().Exec(`UPDATE stream_log SET created_at = datetime('now', '-40 days')`); err != nil {
		t.Fatalf("backdating row: %v", err)
	}
	if err := repo.InsertLog(ctx, LogEntry{Type: "stream"}); err != nil {
		t.Fatalf("InsertLog() error = %v", err)
	}

	result, err := database.ApplyLogRetention(ctx, 0, 30)
	if err != nil {
		t.Fatalf("ApplyLogRetention() error = %v", err)
	}
	if result.ExpiredDeleted != 1 {
		t.Errorf("ExpiredDeleted = %d, want 1", result.ExpiredDeleted)
	}
}

func TestApplyLogRetentionRejectsNegative(t *testing.T) {
	database := newTestDatabase(t)
	if _, err := database.ApplyLogRetention(context.Background(), -1, 0); err == nil {
		t.Error("negative maxEntries should fail")
	}
}

func TestClearLogs(t *testing.T) {
	repo := NewRepository(newTestDatabase(t), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		repo.InsertLog(ctx, LogEntry{Type: "chunk"})
	}

	n, err := repo.ClearLogs(ctx)
	if err != nil || n != 3 {
		t.Errorf("ClearLogs() = %d, %v, want 3", n, err)
	}
}
