package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"audiostream/core"
	"audiostream/db"
)

func newTestRepository(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.NewRepository(database, nil)
}

func writeFile(t *testing.T, root, rel string, size int) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCatalogProviderLookup(t *testing.T) {
	repo := newTestRepository(t)
	root := t.TempDir()
	ctx := context.Background()

	writeFile(t, root, "2024/05/song.mp3", 2048)
	id, err := repo.UpsertMedia(ctx, db.MediaRecord{Filename: "2024/05/song.mp3", MIMEType: "audio/mpeg", Size: 1})
	if err != nil {
		t.Fatalf("UpsertMedia() error = %v", err)
	}

	p, err := NewCatalogProvider(repo, root)
	if err != nil {
		t.Fatalf("NewCatalogProvider() error = %v", err)
	}

	ref, err := p.LookupByID(ctx, id)
	if err != nil {
		t.Fatalf("LookupByID() error = %v", err)
	}
	if ref.Size != 2048 {
		t.Errorf("Size = %d, want on-disk size 2048", ref.Size)
	}
	if ref.MIMEType != "audio/mpeg" {
		t.Errorf("MIMEType = %q", ref.MIMEType)
	}
	if filepath.Dir(ref.Path) != filepath.Join(p.Root(), "2024", "05") {
		t.Errorf("Path = %q", ref.Path)
	}
	if ref.ETag() == "" || ref.LastModified() == "" {
		t.Error("expected cache validators")
	}
}

func TestCatalogProviderLookupErrors(t *testing.T) {
	repo := newTestRepository(t)
	root := t.TempDir()
	ctx := context.Background()

	missingID, _ := repo.UpsertMedia(ctx, db.MediaRecord{Filename: "gone.wav"})
	escapeID, _ := repo.UpsertMedia(ctx, db.MediaRecord{Filename: "../outside.wav"})
	if err := os.MkdirAll(filepath.Join(root, "dir.wav"), 0755); err != nil {
		t.Fatal(err)
	}
	dirID, _ := repo.UpsertMedia(ctx, db.MediaRecord{Filename: "dir.wav"})

	p, err := NewCatalogProvider(repo, root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		id   int64
		want core.ErrorKind
	}{
		{"unknown id", 9999, core.KindNotFound},
		{"file deleted", missingID, core.KindNotFound},
		{"escapes root", escapeID, core.KindForbidden},
		{"directory", dirID, core.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.LookupByID(ctx, tt.id)
			if got := core.KindOf(err); got != tt.want {
				t.Errorf("LookupByID() kind = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestCatalogProviderResolvesThroughResolver(t *testing.T) {
	repo := newTestRepository(t)
	root := t.TempDir()
	ctx := context.Background()

	writeFile(t, root, "talks/My Song.wav", 64)
	id, _ := repo.UpsertMedia(ctx, db.MediaRecord{Filename: "talks/My Song.wav", Title: "Keynote", MIMEType: "audio/wav"})

	p, err := NewCatalogProvider(repo, root)
	if err != nil {
		t.Fatal(err)
	}
	r := NewResolver(p)

	for _, locator := range []string{"My%20Song.wav", "https://host/x/My%2520Song.wav", "Keynote.wav"} {
		ref, err := r.Resolve(ctx, locator)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", locator, err)
			continue
		}
		if ref.ID != id {
			t.Errorf("Resolve(%q) = %d, want %d", locator, ref.ID, id)
		}
	}
}
