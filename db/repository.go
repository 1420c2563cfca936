package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Repository provides typed access to the media and stream_log tables.
// Log inserts go through the AsyncWriter when one is attached.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter is optional; without it
// InsertLogAsync reports false and callers decide whether to write
// synchronously.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

// CreateAsyncWriteHandler returns a WriteHandler executing queued statements
// against this repository's database.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(ctx context.Context, op WriteOperation) error {
		conn, err := r.db.conn()
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, op.Query, op.Args...); err != nil {
			return fmt.Errorf("async write failed: %w", err)
		}
		return nil
	}
}

// AttachAsyncWriter sets the writer used by InsertLogAsync.
func (r *Repository) AttachAsyncWriter(w *AsyncWriter) {
	r.asyncWriter = w
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
