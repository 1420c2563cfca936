// Package chunkcache serves fixed-size, index-addressed chunks of a
// resource. Chunk zero is kept in a TTL-bounded LRU so players that poll
// the first chunk repeatedly skip file I/O.
package chunkcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"audiostream/core"
	"audiostream/media"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultEntries = 256
)

// Config configures a Cache.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// Result is one served chunk.
type Result struct {
	Data      []byte
	Range     core.ByteRange
	Size      int64 // Total size of the resource
	MIMEType  string
	FromCache bool
}

// RangeReader reads an inclusive byte range of a resource.
type RangeReader interface {
	ReadRange(ref media.ResourceReference, r core.ByteRange) ([]byte, error)
}

// FileReader reads ranges straight from disk.
type FileReader struct{}

// ReadRange implements RangeReader.
func (FileReader) ReadRange(ref media.ResourceReference, r core.ByteRange) ([]byte, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, core.NewStreamError(core.KindOpenFailed, "open", err)
	}
	defer f.Close()

	buf := make([]byte, r.Length())
	n, err := f.ReadAt(buf, r.Start)
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, core.NewStreamError(core.KindReadFailed, "read", err)
	}
	return buf, nil
}

type key struct {
	resourceID int64
	chunk      int
}

type entry struct {
	data     []byte
	rng      core.ByteRange
	size     int64
	mimeType string
}

// Cache is the chunk engine. Only chunk zero is cached; entries are never
// invalidated on resource change and live until TTL expiry or Clear.
type Cache struct {
	entries *expirable.LRU[key, entry]
	group   singleflight.Group
	reader  RangeReader
}

// New creates a Cache reading through reader. A nil reader reads from disk.
func New(cfg Config, reader RangeReader) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultEntries
	}
	if reader == nil {
		reader = FileReader{}
	}
	return &Cache{
		entries: expirable.NewLRU[key, entry](cfg.MaxEntries, nil, cfg.TTL),
		reader:  reader,
	}
}

// Get returns chunk index of ref.
//
// Parameters:
//   - ctx: used to abandon waiting on a concurrent load of the same chunk
//   - ref: the resolved resource
//   - index: zero-based chunk index
//   - chunkSize: chunk size in bytes, capped at core.MaxChunkSize
//
// Returns:
//   - Result with the chunk bytes and their range within the resource
//   - a StreamError of kind KindUnsatisfiableRange when the chunk starts at
//     or past the end, or KindOpenFailed / KindReadFailed on I/O errors
func (c *Cache) Get(ctx context.Context, ref media.ResourceReference, index int, chunkSize int64) (Result, error) {
	if chunkSize > core.MaxChunkSize {
		chunkSize = core.MaxChunkSize
	}
	r, ok := core.ChunkRange(index, chunkSize, ref.Size)
	if !ok {
		return Result{}, core.NewStreamError(core.KindUnsatisfiableRange, "chunk",
			fmt.Errorf("chunk %d of %d bytes is past end of %d byte resource", index, chunkSize, ref.Size))
	}

	if index != 0 {
		data, err := c.reader.ReadRange(ref, r)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: data, Range: r, Size: ref.Size, MIMEType: ref.MIMEType}, nil
	}

	k := key{resourceID: ref.ID, chunk: 0}
	if e, ok := c.entries.Get(k); ok && e.rng.Length() == r.Length() {
		return Result{Data: e.data, Range: e.rng, Size: e.size, MIMEType: e.mimeType, FromCache: true}, nil
	}

	ch := c.group.DoChan(strconv.FormatInt(ref.ID, 10)+":"+strconv.FormatInt(chunkSize, 10), func() (interface{}, error) {
		data, err := c.reader.ReadRange(ref, r)
		if err != nil {
			return nil, err
		}
		e := entry{data: data, rng: r, size: ref.Size, mimeType: ref.MIMEType}
		c.entries.Add(k, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, core.NewStreamError(core.KindClientAbort, "chunk", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		e := res.Val.(entry)
		return Result{Data: e.data, Range: e.rng, Size: e.size, MIMEType: e.mimeType}, nil
	}
}

// Clear drops every cached chunk and returns how many there were.
func (c *Cache) Clear() int {
	n := c.entries.Len()
	c.entries.Purge()
	return n
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
