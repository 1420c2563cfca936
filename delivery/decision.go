// Package delivery decides how a resolved resource is answered: redirected
// to its direct URL, streamed whole or in part, or rejected.
package delivery

import (
	"fmt"
	"net/http"

	"audiostream/core"
)

// Kind enumerates the closed set of delivery decisions.
type Kind int

const (
	KindRedirect Kind = iota + 1
	KindStreamFull
	KindStreamRange
	KindNotModified
	KindRejectRange
	KindRejectBadFormat
	KindNotFound
	KindForbidden
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindStreamFull:
		return "stream_full"
	case KindStreamRange:
		return "stream_range"
	case KindNotModified:
		return "not_modified"
	case KindRejectRange:
		return "reject_range"
	case KindRejectBadFormat:
		return "reject_bad_format"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason codes sent as the body of rejections.
const (
	ReasonNotFound          = "not_found"
	ReasonUnsupportedFormat = "unsupported_format"
	ReasonMalformedRange    = "malformed_range"
	ReasonSizeExceeded      = "size_exceeded"
	ReasonStreamingDisabled = "streaming_disabled"
	ReasonInvalidPath       = "invalid_path"
	ReasonInternal          = "internal_error"
)

// Decision is the outcome of the delivery policy. Which fields are set
// depends on Kind:
//   - KindRedirect: URL
//   - KindStreamFull: Range covers the whole resource; HeadOnly for HEAD
//   - KindStreamRange: Range
//   - KindRejectRange: Size
//   - rejections: Reason and Err
type Decision struct {
	Kind     Kind
	URL      string
	Range    core.ByteRange
	Size     int64
	HeadOnly bool
	Reason   string
	Err      core.ErrorKind
}

// Redirect sends the client to url.
func Redirect(url string) Decision {
	return Decision{Kind: KindRedirect, URL: url}
}

// StreamFull serves all size bytes with status 200.
func StreamFull(size int64, headOnly bool) Decision {
	return Decision{
		Kind:     KindStreamFull,
		Range:    core.ByteRange{Start: 0, End: size - 1},
		Size:     size,
		HeadOnly: headOnly,
	}
}

// StreamRange serves r with status 206.
func StreamRange(r core.ByteRange, size int64) Decision {
	return Decision{Kind: KindStreamRange, Range: r, Size: size}
}

// NotModified answers a conditional request whose validator still matches.
func NotModified() Decision {
	return Decision{Kind: KindNotModified}
}

// RejectRange answers 416 for a resource of the given size.
func RejectRange(size int64) Decision {
	return Decision{Kind: KindRejectRange, Size: size, Reason: "range_not_satisfiable", Err: core.KindUnsatisfiableRange}
}

// RejectBadFormat rejects a resource of a disallowed type, or a request with
// a malformed Range header.
func RejectBadFormat(reason string) Decision {
	kind := core.KindBadFormat
	if reason == ReasonMalformedRange {
		kind = core.KindMalformedRange
	}
	return Decision{Kind: KindRejectBadFormat, Reason: reason, Err: kind}
}

// NotFound answers 404.
func NotFound() Decision {
	return Decision{Kind: KindNotFound, Reason: ReasonNotFound, Err: core.KindNotFound}
}

// Forbidden answers 403 with reason as the body.
func Forbidden(reason string) Decision {
	kind := core.KindForbidden
	if reason == ReasonSizeExceeded {
		kind = core.KindSizeExceeded
	}
	return Decision{Kind: KindForbidden, Reason: reason, Err: kind}
}

// Failed answers 500 for errors raised before any byte was written.
func Failed() Decision {
	return Decision{Kind: KindFailed, Reason: ReasonInternal, Err: core.KindOpenFailed}
}

// Status returns the HTTP status the decision is answered with.
func (d Decision) Status() int {
	switch d.Kind {
	case KindRedirect:
		return http.StatusFound
	case KindStreamFull:
		return http.StatusOK
	case KindStreamRange:
		return http.StatusPartialContent
	case KindNotModified:
		return http.StatusNotModified
	default:
		return core.StatusFor(d.Err)
	}
}

// Streams reports whether the decision carries a body from the resource.
func (d Decision) Streams() bool {
	return (d.Kind == KindStreamFull && !d.HeadOnly) || d.Kind == KindStreamRange
}

// FromError turns a resolution error into the rejection it is answered
// with. Unclassified errors become Failed.
func FromError(err error) Decision {
	switch core.KindOf(err) {
	case core.KindNotFound:
		return NotFound()
	case core.KindForbidden:
		return Forbidden(ReasonInvalidPath)
	case core.KindBadFormat:
		return RejectBadFormat(ReasonUnsupportedFormat)
	case core.KindSizeExceeded:
		return Forbidden(ReasonSizeExceeded)
	default:
		return Failed()
	}
}
