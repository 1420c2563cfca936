package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"audiostream/core"
	"audiostream/db"
)

// Provider is the media resource provider the resolver consults.
type Provider interface {
	// LookupByID returns the resource with its current on-disk size.
	LookupByID(ctx context.Context, id int64) (ResourceReference, error)
	// SearchByFilename returns the ID whose stored filename matches name,
	// preferring exact matches over substring matches.
	SearchByFilename(ctx context.Context, name string) (int64, error)
	// SearchByTitle returns the first ID whose title or metadata contains text.
	SearchByTitle(ctx context.Context, text string) (int64, error)
}

// Catalog is the subset of db.Repository the provider reads from.
type Catalog interface {
	GetMedia(ctx context.Context, id int64) (*db.MediaRecord, error)
	FindMediaByFilename(ctx context.Context, name string) (int64, error)
	SearchMediaByTitle(ctx context.Context, text string) (int64, error)
}

// ErrOutsideRoot is returned when a catalogued path escapes the media root.
var ErrOutsideRoot = errors.New("path outside media root")

// CatalogProvider serves resources listed in the catalog from a media root.
// Existence, size and modification time are read from disk on every lookup
// because files may be replaced or deleted between requests.
type CatalogProvider struct {
	catalog Catalog
	root    string
}

// NewCatalogProvider creates a provider rooted at mediaRoot. The root is
// made absolute and symlinks in it are resolved once.
func NewCatalogProvider(catalog Catalog, mediaRoot string) (*CatalogProvider, error) {
	root, err := filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return &CatalogProvider{catalog: catalog, root: root}, nil
}

// Root returns the absolute media root.
func (p *CatalogProvider) Root() string {
	return p.root
}

// LookupByID implements Provider.
func (p *CatalogProvider) LookupByID(ctx context.Context, id int64) (ResourceReference, error) {
	rec, err := p.catalog.GetMedia(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ResourceReference{}, core.NewStreamError(core.KindNotFound, "lookup", err)
		}
		return ResourceReference{}, fmt.Errorf("catalog lookup %d: %w", id, err)
	}

	path, err := p.Contain(rec.Filename)
	if err != nil {
		return ResourceReference{}, core.NewStreamError(core.KindForbidden, "lookup", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ResourceReference{}, core.NewStreamError(core.KindNotFound, "stat",
				fmt.Errorf("media %d file missing: %w", id, core.ErrNotFound))
		}
		return ResourceReference{}, core.NewStreamError(core.KindOpenFailed, "stat", err)
	}
	if !info.Mode().IsRegular() {
		return ResourceReference{}, core.NewStreamError(core.KindNotFound, "stat",
			fmt.Errorf("media %d is not a regular file: %w", id, core.ErrNotFound))
	}

	mimeType := rec.MIMEType
	if mimeType == "" {
		mimeType = DetectMIME(path)
	}

	return ResourceReference{
		ID:       rec.ID,
		Path:     path,
		Filename: rec.Filename,
		Size:     info.Size(),
		MIMEType: mimeType,
		ModTime:  info.ModTime(),
	}, nil
}

// SearchByFilename implements Provider.
func (p *CatalogProvider) SearchByFilename(ctx context.Context, name string) (int64, error) {
	return p.catalog.FindMediaByFilename(ctx, name)
}

// SearchByTitle implements Provider.
func (p *CatalogProvider) SearchByTitle(ctx context.Context, text string) (int64, error) {
	return p.catalog.SearchMediaByTitle(ctx, text)
}

// Contain joins a relative filename onto the media root and verifies the
// result, after resolving symlinks, stays inside the root.
func (p *CatalogProvider) Contain(filename string) (string, error) {
	path := filepath.Join(p.root, filepath.FromSlash(filename))
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	rel, err := filepath.Rel(p.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", filename, ErrOutsideRoot)
	}
	return path, nil
}
