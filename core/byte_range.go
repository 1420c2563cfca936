package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ByteRange is an inclusive [Start, End] interval of a resource's bytes.
// Partial reports whether the interval came from a client Range header,
// which decides between 206 and 200 on the wire.
type ByteRange struct {
	Start   int64
	End     int64
	Partial bool
}

// Length returns the number of bytes covered by the range.
// A full range over an empty resource has End == -1 and a length of zero.
func (r ByteRange) Length() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for this range.
//
// Example:
//
//	ByteRange{Start: 100, End: 199}.ContentRange(10000) // "bytes 100-199/10000"
func (r ByteRange) ContentRange(totalSize int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, totalSize)
}

// UnsatisfiedContentRange formats the Content-Range value sent with a 416.
func UnsatisfiedContentRange(totalSize int64) string {
	return fmt.Sprintf("bytes */%d", totalSize)
}

// RangeOutcome classifies the result of parsing a Range header.
type RangeOutcome int

const (
	// RangeFull means no Range header was given; serve the whole resource.
	RangeFull RangeOutcome = iota
	// RangeSatisfiable means the header produced a valid interval.
	RangeSatisfiable
	// RangeUnsatisfiable means the interval lies outside the resource (416).
	RangeUnsatisfiable
	// RangeMalformed means the header does not follow bytes=<start>-<end> (400).
	RangeMalformed
)

func (o RangeOutcome) String() string {
	switch o {
	case RangeFull:
		return "full"
	case RangeSatisfiable:
		return "satisfiable"
	case RangeUnsatisfiable:
		return "unsatisfiable"
	case RangeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// RangeResult is the output of ParseRange. Range is meaningful only for
// RangeFull and RangeSatisfiable.
type RangeResult struct {
	Outcome RangeOutcome
	Range   ByteRange
}

// rangePattern matches the first range of a bytes Range header. The unit
// is case-insensitive. Any further comma-separated ranges are accepted and
// ignored.
var rangePattern = regexp.MustCompile(`^(?i:bytes)=(\d*)-(\d*)(?:\s*,.*)?$`)

// ParseRange resolves a raw Range header value against the total size of a
// resource.
//
// Parameters:
//   - header: the raw Range header value; "" means the header was absent
//   - totalSize: the current size of the resource in bytes
//
// Returns:
//   - RangeFull with the whole resource when header is empty
//   - RangeMalformed when the header is not of the form bytes=<start>-<end>
//   - RangeUnsatisfiable when start > end or start >= totalSize
//   - RangeSatisfiable with the clamped interval otherwise
//
// Examples:
//   - ParseRange("bytes=0-0", 1000)    -> Satisfiable{0, 0}
//   - ParseRange("bytes=500-", 1000)   -> Satisfiable{500, 999}
//   - ParseRange("bytes=-500", 100)    -> Satisfiable{0, 99}
//   - ParseRange("bytes=1000-", 1000)  -> Unsatisfiable
//
// Only the first range of a multi-range header is honored.
// This is a pure function with no side effects.
func ParseRange(header string, totalSize int64) RangeResult {
	if totalSize < 0 {
		totalSize = 0
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return RangeResult{
			Outcome: RangeFull,
			Range:   ByteRange{Start: 0, End: totalSize - 1},
		}
	}

	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return RangeResult{Outcome: RangeMalformed}
	}
	startStr, endStr := m[1], m[2]
	if startStr == "" && endStr == "" {
		return RangeResult{Outcome: RangeMalformed}
	}

	var start, end int64
	if startStr == "" {
		// Suffix form: the last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			n = totalSize
		}
		start = totalSize - n
		if start < 0 {
			start = 0
		}
		end = totalSize - 1
	} else {
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			// Only overflow can fail here; such an offset is past any file.
			return RangeResult{Outcome: RangeUnsatisfiable}
		}
		start = s
		end = totalSize - 1
		if endStr != "" {
			e, err := strconv.ParseInt(endStr, 10, 64)
			if err == nil {
				end = e
			}
		}
	}

	if start > end || start >= totalSize {
		return RangeResult{Outcome: RangeUnsatisfiable}
	}
	if end > totalSize-1 {
		end = totalSize - 1
	}

	return RangeResult{
		Outcome: RangeSatisfiable,
		Range:   ByteRange{Start: start, End: end, Partial: true},
	}
}

// ChunkRange computes the byte interval of a fixed-size chunk.
// ok is false when the chunk starts at or beyond the end of the resource.
//
// Example:
//
//	ChunkRange(2, 1024, 2500) // {2048, 2499}, true
//
// This is a pure function with no side effects.
func ChunkRange(index int, chunkSize, totalSize int64) (ByteRange, bool) {
	if index < 0 || chunkSize <= 0 {
		return ByteRange{}, false
	}
	start := int64(index) * chunkSize
	if start >= totalSize || start/chunkSize != int64(index) {
		return ByteRange{}, false
	}
	end := start + chunkSize - 1
	if end > totalSize-1 {
		end = totalSize - 1
	}
	return ByteRange{Start: start, End: end, Partial: true}, true
}
