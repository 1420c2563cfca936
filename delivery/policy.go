package delivery

import (
	"net/http"
	"strings"

	"audiostream/core"
	"audiostream/media"
)

// Request is the shape of an incoming request as far as the policy cares.
type Request struct {
	Method      string // GET or HEAD
	Range       string // Raw Range header; empty when absent
	IfNoneMatch string // Raw If-None-Match header; empty when absent
	DirectURL   string // URL of the file on static hosting; empty disables redirects
}

// Rules are the configurable limits the policy enforces.
type Rules struct {
	EnableStreaming   bool
	AllowedExtensions []string
	MaxFileSize       int64 // Bytes; 0 means unlimited
	RedirectThreshold int64 // Bytes; 0 disables redirects
}

// RulesFromConfig extracts the policy rules from the service configuration.
func RulesFromConfig(cfg *core.Config) Rules {
	return Rules{
		EnableStreaming:   cfg.EnableStreaming,
		AllowedExtensions: cfg.AllowedExtensions,
		MaxFileSize:       cfg.MaxFileSize(),
		RedirectThreshold: cfg.RedirectThreshold(),
	}
}

// Policy is the delivery policy. Decide does no I/O.
type Policy struct {
	rules   Rules
	allowed map[string]bool
}

// NewPolicy creates a Policy enforcing rules.
func NewPolicy(rules Rules) *Policy {
	allowed := make(map[string]bool, len(rules.AllowedExtensions))
	for _, ext := range rules.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Policy{rules: rules, allowed: allowed}
}

// Decide picks the response for ref. Checks run in order and the first
// that applies wins:
//  1. streaming disabled -> Forbidden(streaming_disabled)
//  2. non-audio MIME or extension off the allow-list -> RejectBadFormat
//  3. larger than the maximum size -> Forbidden(size_exceeded)
//  4. If-None-Match matches the ETag -> NotModified
//  5. small, directly servable GET without Range -> Redirect
//  6. HEAD -> StreamFull, head only
//  7. the Range header decides between StreamFull, StreamRange,
//     RejectRange and RejectBadFormat(malformed_range)
func (p *Policy) Decide(ref media.ResourceReference, req Request) Decision {
	if d, ok := p.Admit(ref); !ok {
		return d
	}

	if req.IfNoneMatch != "" && etagMatches(req.IfNoneMatch, ref.ETag()) {
		return NotModified()
	}

	head := req.Method == http.MethodHead
	if !head && req.Range == "" && req.DirectURL != "" &&
		ref.Size < p.rules.RedirectThreshold && core.IsDirectlyServable(ref.MIMEType) {
		return Redirect(req.DirectURL)
	}

	if head {
		return StreamFull(ref.Size, true)
	}

	result := core.ParseRange(req.Range, ref.Size)
	switch result.Outcome {
	case core.RangeFull:
		return StreamFull(ref.Size, false)
	case core.RangeSatisfiable:
		return StreamRange(result.Range, ref.Size)
	case core.RangeUnsatisfiable:
		return RejectRange(ref.Size)
	default:
		return RejectBadFormat(ReasonMalformedRange)
	}
}

// Admit runs the checks that apply to every delivery mode, the chunk
// endpoint included. When ok is false the returned decision is the
// rejection to send.
func (p *Policy) Admit(ref media.ResourceReference) (Decision, bool) {
	if !p.rules.EnableStreaming {
		return Forbidden(ReasonStreamingDisabled), false
	}
	if !core.IsAudioMIME(ref.MIMEType) || !p.allowed[ref.Extension()] {
		return RejectBadFormat(ReasonUnsupportedFormat), false
	}
	if p.rules.MaxFileSize > 0 && ref.Size > p.rules.MaxFileSize {
		return Forbidden(ReasonSizeExceeded), false
	}
	return Decision{}, true
}

// Rules returns the rules the policy was built with.
func (p *Policy) Rules() Rules {
	return p.rules
}

// etagMatches implements the weak comparison of If-None-Match against etag.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
