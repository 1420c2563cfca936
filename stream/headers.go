package stream

import (
	"net/http"
	"strconv"

	"audiostream/media"
)

const cacheControl = "public, max-age=86400"

// setCacheHeaders writes the validators and caching policy for ref.
func setCacheHeaders(h http.Header, ref media.ResourceReference) {
	h.Set("ETag", ref.ETag())
	if !ref.ModTime.IsZero() {
		h.Set("Last-Modified", ref.LastModified())
	}
	h.Set("Cache-Control", cacheControl)
}

// setContentHeaders writes the headers every successful body response
// carries.
func setContentHeaders(h http.Header, ref media.ResourceReference, length int64) {
	h.Set("Content-Type", ref.MIMEType)
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Accept-Ranges", "bytes")
	h.Set("X-Content-Type-Options", "nosniff")
	setCacheHeaders(h, ref)
}

// writeReason writes a short plain-text diagnostic body.
func writeReason(sink ResponseSink, status int, reason string) {
	h := sink.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Length", strconv.Itoa(len(reason)))
	sink.WriteHeader(status)
	_, _ = sink.Write([]byte(reason))
}
