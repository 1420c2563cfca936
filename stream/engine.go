// Package stream performs the bounded I/O of a delivery decision: it opens
// the resource, seeks to the requested offset and copies bytes to the
// response sink one buffer at a time.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"audiostream/core"
	"audiostream/delivery"
	"audiostream/logging"
	"audiostream/media"
)

// throttleFloor is the size below which throttling never applies.
const throttleFloor = core.BytesPerMB

// File is the read side of an opened resource.
type File interface {
	io.ReadSeeker
	io.Closer
}

// Config configures an Engine.
type Config struct {
	// BufferSize is the size of each read and write, in bytes.
	BufferSize int
	// ThrottleBytesPerSec caps the rate of each stream over 1 MiB.
	// Zero disables throttling.
	ThrottleBytesPerSec int64
}

// Result reports what a Stream call did.
type Result struct {
	Status    int
	BytesSent int64
	Duration  time.Duration
	// Err is nil on success. A ClientAbort or ReadFailed StreamError means
	// headers went out but the body ended early; OpenFailed means a 500 was
	// sent instead.
	Err error
}

// Aborted reports whether the client disconnected mid-stream.
func (r Result) Aborted() bool {
	return core.KindOf(r.Err) == core.KindClientAbort
}

// Engine executes delivery decisions. It is safe for concurrent use; every
// call opens its own file handle.
type Engine struct {
	bufferSize int
	throttle   int64
	logger     *logging.Logger
	open       func(path string) (File, error)
}

// NewEngine creates an Engine. A buffer size outside 8 KiB to 1 MiB is
// clamped into that range.
func NewEngine(cfg Config, logger *logging.Logger) *Engine {
	minSize := core.MinBufferSizeKB * int(core.BytesPerKB)
	maxSize := core.MaxBufferSizeKB * int(core.BytesPerKB)
	size := cfg.BufferSize
	if size < minSize {
		size = minSize
	}
	if size > maxSize {
		size = maxSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		bufferSize: size,
		throttle:   cfg.ThrottleBytesPerSec,
		logger:     logger.Named("stream"),
		open:       func(path string) (File, error) { return os.Open(path) },
	}
}

// BufferSize returns the effective buffer size in bytes.
func (e *Engine) BufferSize() int {
	return e.bufferSize
}

// Stream answers decision for ref on sink.
//
// Parameters:
//   - ctx: the request context; cancellation is treated as a client abort
//   - ref: the resolved resource
//   - decision: the outcome of the delivery policy for this request
//   - sink: where status, headers and body are written
//
// Returns:
//   - Result with the status sent and the body bytes actually written.
//     Status is the status on the wire even when the body was cut short.
//
// The file is opened before any header is written, so an open failure
// still produces a clean 500.
func (e *Engine) Stream(ctx context.Context, ref media.ResourceReference, decision delivery.Decision, sink ResponseSink) Result {
	start := time.Now()
	result := e.stream(ctx, ref, decision, sink)
	result.Duration = time.Since(start)
	return result
}

func (e *Engine) stream(ctx context.Context, ref media.ResourceReference, d delivery.Decision, sink ResponseSink) Result {
	h := sink.Header()

	switch d.Kind {
	case delivery.KindRedirect:
		h.Set("Location", d.URL)
		sink.WriteHeader(http.StatusFound)
		return Result{Status: http.StatusFound}

	case delivery.KindNotModified:
		setCacheHeaders(h, ref)
		sink.WriteHeader(http.StatusNotModified)
		return Result{Status: http.StatusNotModified}

	case delivery.KindStreamFull:
		if d.HeadOnly {
			setContentHeaders(h, ref, ref.Size)
			sink.WriteHeader(http.StatusOK)
			return Result{Status: http.StatusOK}
		}
		return e.copyRange(ctx, ref, core.ByteRange{Start: 0, End: ref.Size - 1}, sink)

	case delivery.KindStreamRange:
		return e.copyRange(ctx, ref, d.Range, sink)

	case delivery.KindRejectRange:
		h.Set("Content-Range", core.UnsatisfiedContentRange(d.Size))
		h.Set("Accept-Ranges", "bytes")
		sink.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return Result{Status: http.StatusRequestedRangeNotSatisfiable}

	case delivery.KindRejectBadFormat, delivery.KindNotFound, delivery.KindForbidden, delivery.KindFailed:
		status := d.Status()
		writeReason(sink, status, d.Reason)
		return Result{Status: status, Err: core.NewStreamError(d.Err, "deliver", errors.New(d.Reason))}

	default:
		writeReason(sink, http.StatusInternalServerError, delivery.ReasonInternal)
		return Result{
			Status: http.StatusInternalServerError,
			Err:    core.NewStreamError(core.KindUnknown, "deliver", fmt.Errorf("unhandled decision %s", d.Kind)),
		}
	}
}

// copyRange streams r of ref with status 200 for a full range and 206 for
// a partial one.
func (e *Engine) copyRange(ctx context.Context, ref media.ResourceReference, r core.ByteRange, sink ResponseSink) Result {
	f, err := e.open(ref.Path)
	if err == nil && r.Start > 0 {
		if _, serr := f.Seek(r.Start, io.SeekStart); serr != nil {
			f.Close()
			err = serr
		}
	}
	if err != nil {
		e.logger.Error("failed to open resource",
			zap.Int64("resource_id", ref.ID), zap.String("path", ref.Path), zap.Error(err))
		writeReason(sink, http.StatusInternalServerError, delivery.ReasonInternal)
		return Result{Status: http.StatusInternalServerError, Err: core.NewStreamError(core.KindOpenFailed, "open", err)}
	}
	defer f.Close()

	length := r.Length()
	status := http.StatusOK
	if r.Partial {
		status = http.StatusPartialContent
		sink.Header().Set("Content-Range", r.ContentRange(ref.Size))
	}
	setContentHeaders(sink.Header(), ref, length)
	sink.WriteHeader(status)

	var limiter *rate.Limiter
	if e.throttle > 0 && ref.Size > throttleFloor {
		limiter = rate.NewLimiter(rate.Limit(e.throttle), e.bufferSize)
	}

	sent, err := e.copy(ctx, f, length, sink, limiter)
	result := Result{Status: status, BytesSent: sent}

	switch core.KindOf(err) {
	case core.KindUnknown:
	case core.KindClientAbort:
		e.logger.Debug("client disconnected",
			zap.Int64("resource_id", ref.ID), zap.Int64("bytes_sent", sent), zap.Int64("expected", length))
		result.Err = err
	default:
		e.logger.Warn("stream ended early",
			append(logging.RangeFields(r.Start, r.End, ref.Size),
				zap.Int64("resource_id", ref.ID), zap.Int64("bytes_sent", sent), zap.Error(err))...)
		result.Err = err
	}
	return result
}

// copy writes exactly length bytes from src to sink, flushing after every
// buffer. It checks ctx before each read so a departed client stops the
// loop within one buffer.
func (e *Engine) copy(ctx context.Context, src io.Reader, length int64, sink ResponseSink, limiter *rate.Limiter) (int64, error) {
	if length <= 0 {
		return 0, nil
	}

	bufSize := int64(e.bufferSize)
	if length < bufSize {
		bufSize = length
	}
	buf := make([]byte, bufSize)

	var sent int64
	for sent < length {
		if err := ctx.Err(); err != nil {
			return sent, core.NewStreamError(core.KindClientAbort, "write", err)
		}

		want := length - sent
		if want > bufSize {
			want = bufSize
		}
		n, rerr := io.ReadFull(src, buf[:want])

		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return sent, core.NewStreamError(core.KindClientAbort, "throttle", err)
				}
			}
			w, werr := sink.Write(buf[:n])
			sent += int64(w)
			if werr != nil {
				return sent, core.NewStreamError(core.KindClientAbort, "write", werr)
			}
			if ferr := sink.Flush(); ferr != nil {
				return sent, core.NewStreamError(core.KindClientAbort, "flush", ferr)
			}
		}

		if rerr != nil {
			return sent, core.NewStreamError(core.KindReadFailed, "read", rerr)
		}
	}
	return sent, nil
}
