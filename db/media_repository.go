package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"audiostream/core"
)

// MediaRecord is a row of the media table.
type MediaRecord struct {
	ID         int64
	Filename   string // Path relative to the media root, slash separated
	Basename   string // Last path segment of Filename
	Title      string
	Artist     string
	Album      string
	MIMEType   string
	Size       int64 // Size at index time; streaming re-reads it from disk
	DurationMS int64
	SampleRate int
	Channels   int
	ModTime    time.Time // Stored as unix seconds
}

const mediaColumns = `id, filename, basename, title, artist, album, mime_type, size,
	duration_ms, sample_rate, channels, mod_time`

func scanMedia(row interface{ Scan(...interface{}) error }) (*MediaRecord, error) {
	var m MediaRecord
	var modTime int64
	err := row.Scan(&m.ID, &m.Filename, &m.Basename, &m.Title, &m.Artist, &m.Album, &m.MIMEType,
		&m.Size, &m.DurationMS, &m.SampleRate, &m.Channels, &modTime)
	if err != nil {
		return nil, err
	}
	if modTime > 0 {
		m.ModTime = time.Unix(modTime, 0).UTC()
	}
	return &m, nil
}

// GetMedia returns the record with the given ID, or core.ErrNotFound.
func (r *Repository) GetMedia(ctx context.Context, id int64) (*MediaRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media %d: %w", id, err)
	}
	return m, nil
}

// FindMediaByFilename returns the ID of the record whose stored filename
// matches name. An exact basename or path match always wins over a
// substring match; ties go to the lowest ID. Matching is case-insensitive.
func (r *Repository) FindMediaByFilename(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, core.ErrNotFound
	}
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}

	var id int64
	err = conn.QueryRowContext(ctx, `
		SELECT id FROM media
		WHERE basename = ? COLLATE NOCASE OR filename = ? COLLATE NOCASE
		ORDER BY id LIMIT 1`, name, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to search media by filename: %w", err)
	}

	err = conn.QueryRowContext(ctx, `
		SELECT id FROM media
		WHERE filename LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY id LIMIT 1`, escapeLike(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to search media by filename: %w", err)
	}
	return id, nil
}

// SearchMediaByTitle returns the first record whose title, artist or album
// contains text, preferring title matches.
func (r *Repository) SearchMediaByTitle(ctx context.Context, text string) (int64, error) {
	if text == "" {
		return 0, core.ErrNotFound
	}
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}

	pattern := "%" + escapeLike(text) + "%"
	var id int64
	err = conn.QueryRowContext(ctx, `
		SELECT id FROM media
		WHERE title LIKE ?1 ESCAPE '\' OR artist LIKE ?1 ESCAPE '\' OR album LIKE ?1 ESCAPE '\'
		ORDER BY CASE WHEN title LIKE ?1 ESCAPE '\' THEN 0 ELSE 1 END, id
		LIMIT 1`, pattern).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to search media by title: %w", err)
	}
	return id, nil
}

// UpsertMedia inserts or updates the record keyed by Filename and returns
// its ID. Existing rows keep their ID.
func (r *Repository) UpsertMedia(ctx context.Context, m MediaRecord) (int64, error) {
	if m.Filename == "" {
		return 0, fmt.Errorf("media filename is required")
	}
	if m.Basename == "" {
		m.Basename = path.Base(m.Filename)
	}
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO media (filename, basename, title, artist, album, mime_type, size,
			duration_ms, sample_rate, channels, mod_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			basename = excluded.basename,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			mime_type = excluded.mime_type,
			size = excluded.size,
			duration_ms = excluded.duration_ms,
			sample_rate = excluded.sample_rate,
			channels = excluded.channels,
			mod_time = excluded.mod_time,
			updated_at = CURRENT_TIMESTAMP`,
		m.Filename, m.Basename, m.Title, m.Artist, m.Album, m.MIMEType, m.Size,
		m.DurationMS, m.SampleRate, m.Channels, unixOrZero(m.ModTime))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert media %s: %w", m.Filename, err)
	}

	var id int64
	if err := conn.QueryRowContext(ctx, `SELECT id FROM media WHERE filename = ?`, m.Filename).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read media id for %s: %w", m.Filename, err)
	}
	return id, nil
}

// ListMedia returns all records ordered by ID.
func (r *Repository) ListMedia(ctx context.Context) ([]MediaRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	var records []MediaRecord
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		records = append(records, *m)
	}
	return records, rows.Err()
}

// DeleteMedia removes the record with the given filename.
func (r *Repository) DeleteMedia(ctx context.Context, filename string) error {
	conn, err := r.db.conn()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM media WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete media %s: %w", filename, err)
	}
	return nil
}

// CountMedia returns the number of catalogued files.
func (r *Repository) CountMedia(ctx context.Context) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return n, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
