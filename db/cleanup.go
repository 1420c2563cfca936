package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult reports what a retention pass removed.
type CleanupResult struct {
	ExpiredDeleted  int64 // Rows older than the retention window
	OverflowDeleted int64 // Rows beyond the newest maxEntries
	Duration        time.Duration
}

// TotalDeleted returns the sum of both deletions.
func (r CleanupResult) TotalDeleted() int64 {
	return r.ExpiredDeleted + r.OverflowDeleted
}

// ApplyLogRetention deletes stream log rows older than retentionDays and then
// trims the table to the newest maxEntries rows, in one transaction.
// A zero value disables the corresponding rule.
func (d *Database) ApplyLogRetention(ctx context.Context, maxEntries, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if maxEntries < 0 || retentionDays < 0 {
		return result, fmt.Errorf("retention limits must be non-negative, got entries=%d days=%d", maxEntries, retentionDays)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return result, fmt.Errorf("database connection is closed")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op after commit

	if retentionDays > 0 {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM stream_log WHERE created_at < datetime('now', '-%d days')", retentionDays))
		if err != nil {
			return result, fmt.Errorf("failed to delete expired stream log rows: %w", err)
		}
		result.ExpiredDeleted, _ = res.RowsAffected()
	}

	if maxEntries > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM stream_log
			WHERE id NOT IN (SELECT id FROM stream_log ORDER BY id DESC LIMIT ?)`, maxEntries)
		if err != nil {
			return result, fmt.Errorf("failed to trim stream log: %w", err)
		}
		result.OverflowDeleted, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit retention: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}
