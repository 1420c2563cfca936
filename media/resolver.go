package media

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strconv"
	"strings"

	"audiostream/core"
)

// Strategy names the fallback step that produced a match.
type Strategy string

const (
	StrategyID       Strategy = "id"
	StrategyFilename Strategy = "filename"
	StrategyTitle    Strategy = "title"
	StrategyNone     Strategy = "none"
)

// Resolver maps a client locator (numeric ID, bare filename or URL) to a
// resource. It holds no state between calls.
type Resolver struct {
	provider Provider
}

// NewResolver creates a Resolver over provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve returns the resource a locator refers to, or a StreamError of kind
// KindNotFound.
func (r *Resolver) Resolve(ctx context.Context, locator string) (ResourceReference, error) {
	ref, _, err := r.ResolveTraced(ctx, locator)
	return ref, err
}

// ResolveTraced is Resolve that also reports which strategy matched, for
// the caller to record.
//
// Order, stopping at the first match:
//  1. an all-digit locator is a direct ID, with no further fallback
//  2. the decoded basename is matched against stored filenames,
//     exact before substring
//  3. the basename without its extension is searched in titles
func (r *Resolver) ResolveTraced(ctx context.Context, locator string) (ResourceReference, Strategy, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return ResourceReference{}, StrategyNone, notFound("empty locator")
	}

	if isDigits(locator) {
		id, err := strconv.ParseInt(locator, 10, 64)
		if err != nil {
			return ResourceReference{}, StrategyNone, notFound("id out of range")
		}
		ref, err := r.provider.LookupByID(ctx, id)
		return ref, StrategyID, err
	}

	candidate := CandidateFilename(locator)
	if candidate == "" {
		return ResourceReference{}, StrategyNone, notFound("no filename in locator")
	}

	id, err := r.provider.SearchByFilename(ctx, candidate)
	if err == nil {
		ref, err := r.provider.LookupByID(ctx, id)
		return ref, StrategyFilename, err
	}
	if !errors.Is(err, core.ErrNotFound) {
		return ResourceReference{}, StrategyFilename, err
	}

	stem := strings.TrimSuffix(candidate, path.Ext(candidate))
	id, err = r.provider.SearchByTitle(ctx, stem)
	if err == nil {
		ref, err := r.provider.LookupByID(ctx, id)
		return ref, StrategyTitle, err
	}
	if !errors.Is(err, core.ErrNotFound) {
		return ResourceReference{}, StrategyTitle, err
	}

	return ResourceReference{}, StrategyNone, notFound(candidate)
}

// CandidateFilename extracts the decoded last path segment of a locator,
// dropping any scheme, host, query and fragment.
//
// Examples:
//   - "https://example.com/uploads/2024/My%20Song.wav?ver=2" -> "My Song.wav"
//   - "folder/track.mp3#t=10" -> "track.mp3"
//   - "My%2520Song.wav" -> "My Song.wav"
func CandidateFilename(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.EscapedPath()
	} else {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	// Decode repeatedly to undo double encoding, bounded to avoid loops.
	for i := 0; i < 3 && strings.Contains(p, "%"); i++ {
		decoded, err := url.PathUnescape(p)
		if err != nil || decoded == p {
			break
		}
		p = decoded
	}

	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}

	base := path.Base(p)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func notFound(detail string) error {
	return core.NewStreamError(core.KindNotFound, "resolve", errors.Join(core.ErrNotFound, errors.New(detail)))
}
