// Package media maps client locators to files on disk: the catalog-backed
// resource provider, the resolver with its fallback search order, audio
// probing and the library indexer.
package media

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"audiostream/core"
)

// ResourceReference identifies a streamable file. It is built fresh for each
// request and never mutated.
type ResourceReference struct {
	ID       int64
	Path     string // Absolute filesystem path
	Filename string // Path relative to the media root, slash separated
	Size     int64
	MIMEType string
	ModTime  time.Time
}

// Extension returns the lowercase file extension without the dot.
func (r ResourceReference) Extension() string {
	if r.Path == "" {
		return core.Extension(r.Filename)
	}
	return core.Extension(r.Path)
}

// ETag returns a strong validator derived from modification time and size.
func (r ResourceReference) ETag() string {
	sum := md5.Sum([]byte(strconv.FormatInt(r.ModTime.Unix(), 10) + strconv.FormatInt(r.Size, 10)))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// LastModified returns the modification time formatted for HTTP headers.
func (r ResourceReference) LastModified() string {
	return r.ModTime.UTC().Format(http.TimeFormat)
}
