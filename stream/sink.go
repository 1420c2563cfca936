package stream

import (
	"errors"
	"net/http"
	"time"
)

// ResponseSink receives the status, headers and body of a response.
// http.ResponseWriter satisfies it through HTTPSink.
type ResponseSink interface {
	Header() http.Header
	WriteHeader(status int)
	Write(p []byte) (int, error)
	// Flush pushes buffered bytes to the client.
	Flush() error
}

// HTTPSink adapts an http.ResponseWriter to ResponseSink.
type HTTPSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewHTTPSink wraps w and lifts any server write deadline, since playback
// of a large file may legitimately outlast it.
func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	return &HTTPSink{w: w, rc: rc}
}

func (s *HTTPSink) Header() http.Header {
	return s.w.Header()
}

func (s *HTTPSink) WriteHeader(status int) {
	s.w.WriteHeader(status)
}

func (s *HTTPSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush implements ResponseSink. Writers that cannot flush are treated as
// flushed.
func (s *HTTPSink) Flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
