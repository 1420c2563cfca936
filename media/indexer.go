package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"audiostream/core"
	"audiostream/db"
	"audiostream/logging"
)

// IndexStore is the subset of db.Repository the indexer writes to.
type IndexStore interface {
	UpsertMedia(ctx context.Context, m db.MediaRecord) (int64, error)
	ListMedia(ctx context.Context) ([]db.MediaRecord, error)
	DeleteMedia(ctx context.Context, filename string) error
}

// IndexResult summarizes an indexing pass.
type IndexResult struct {
	Scanned  int
	Upserted int
	Removed  int
	Skipped  int // Files with a disallowed extension
	Failed   int
	Duration time.Duration
}

// Indexer walks the media root and keeps the catalog in sync with it.
type Indexer struct {
	store    IndexStore
	root     string
	allowed  func(ext string) bool
	metadata Metadata
	logger   *logging.Logger
}

// NewIndexer creates an Indexer. allowed filters extensions; metadata may
// be nil.
func NewIndexer(store IndexStore, root string, allowed func(ext string) bool, metadata Metadata, logger *logging.Logger) *Indexer {
	if metadata == nil {
		metadata = Metadata{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Indexer{store: store, root: root, allowed: allowed, metadata: metadata, logger: logger.Named("indexer")}
}

// Run performs one pass: every allowed file under the root is probed and
// upserted, and catalog rows whose file disappeared are removed.
func (ix *Indexer) Run(ctx context.Context) (IndexResult, error) {
	start := time.Now()
	var result IndexResult
	seen := make(map[string]bool)

	err := filepath.WalkDir(ix.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == ix.root {
				return err
			}
			ix.logger.Warn("skipping unreadable path", zap.String("path", p), zap.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		result.Scanned++
		if !ix.allowed(core.Extension(p)) {
			result.Skipped++
			return nil
		}

		rel, err := filepath.Rel(ix.root, p)
		if err != nil {
			result.Failed++
			return nil
		}
		rel = filepath.ToSlash(rel)
		seen[rel] = true

		if err := ix.indexFile(ctx, p, rel, d); err != nil {
			result.Failed++
			ix.logger.Warn("failed to index file", zap.String("file", rel), zap.Error(err))
			return nil
		}
		result.Upserted++
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk media root: %w", err)
	}

	existing, err := ix.store.ListMedia(ctx)
	if err != nil {
		return result, err
	}
	for _, rec := range existing {
		if seen[rec.Filename] {
			continue
		}
		if err := ix.store.DeleteMedia(ctx, rec.Filename); err != nil {
			return result, err
		}
		result.Removed++
	}

	result.Duration = time.Since(start)
	ix.logger.Info("index pass complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("upserted", result.Upserted),
		zap.Int("removed", result.Removed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (ix *Indexer) indexFile(ctx context.Context, absPath, rel string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	rec := db.MediaRecord{
		Filename: rel,
		Basename: filepath.Base(absPath),
		Title:    TitleFromFilename(rel),
		MIMEType: DetectMIME(absPath),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}
	if entry, ok := ix.metadata[rel]; ok {
		if entry.Title != "" {
			rec.Title = entry.Title
		}
		rec.Artist = entry.Artist
		rec.Album = entry.Album
	}

	audio, err := Probe(absPath)
	switch {
	case err == nil:
		rec.DurationMS = audio.Duration.Milliseconds()
		rec.SampleRate = audio.SampleRate
		rec.Channels = audio.Channels
	case errors.Is(err, ErrProbeUnsupported):
	default:
		// A file that fails to decode is still served byte for byte.
		ix.logger.Debug("probe failed", zap.String("file", rel), zap.Error(err))
	}

	_, err = ix.store.UpsertMedia(ctx, rec)
	return err
}
