package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"audiostream/core"
	"audiostream/delivery"
	"audiostream/eventlog"
	"audiostream/media"
	"audiostream/stream"
)

// CacheHeader reports whether a chunk came from the cache.
const CacheHeader = "X-Audio-Cache"

// handleChunk serves GET /chunk?file_id=&chunk= (also mounted at the root
// path). Chunks are fixed-size slices of the file, always answered with
// 206 and a Content-Range.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	fileID := q.Get("file_id")
	if fileID == "" {
		http.NotFound(w, r)
		return
	}

	release, ok := s.begin(w, eventlog.TypeChunk)
	if !ok {
		return
	}
	defer release()

	ev := newEvent(r, eventlog.TypeChunk, start)
	finish := func(status int, msg string) {
		ev.Status = status
		ev.Message = msg
		ev.Duration = time.Since(start)
		s.Events.Record(ev)
	}

	index, err := strconv.Atoi(q.Get("chunk"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid_chunk")
		finish(http.StatusBadRequest, "invalid chunk index")
		return
	}
	ev.Chunk = &index

	ref, err := s.Resolver.Resolve(r.Context(), fileID)
	if err != nil {
		res := s.Engine.Stream(r.Context(), ref, delivery.FromError(err), stream.NewHTTPSink(w))
		finish(res.Status, err.Error())
		return
	}
	ev.ResourceID = ref.ID
	ev.FileSize = ref.Size

	if d, ok := s.Policy.Admit(ref); !ok {
		res := s.Engine.Stream(r.Context(), ref, d, stream.NewHTTPSink(w))
		finish(res.Status, d.Kind.String()+": "+d.Reason)
		return
	}

	chunk, err := s.Chunks.Get(r.Context(), ref, index, s.Config.ChunkSize())
	if err != nil {
		s.chunkFailed(w, r, ref, err, finish)
		return
	}

	ev.CacheStatus = eventlog.CacheMiss
	if chunk.FromCache {
		ev.CacheStatus = eventlog.CacheHit
	}
	rng := chunk.Range
	ev.Range = &rng

	h := w.Header()
	h.Set("Content-Type", chunk.MIMEType)
	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	h.Set("Content-Range", rng.ContentRange(chunk.Size))
	h.Set("Accept-Ranges", "bytes")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Cache-Control", "no-cache")
	h.Set(CacheHeader, string(ev.CacheStatus))
	w.WriteHeader(http.StatusPartialContent)

	n, err := w.Write(chunk.Data)
	ev.BytesSent = int64(n)
	if err != nil {
		finish(StatusClientClosed, "client disconnected")
		return
	}
	finish(http.StatusPartialContent, "chunk "+strconv.Itoa(index))
}

// chunkFailed answers a chunk read error: 416 past the end, silence for a
// departed client, 500 otherwise.
func (s *Server) chunkFailed(w http.ResponseWriter, r *http.Request, ref media.ResourceReference, err error, finish func(int, string)) {
	switch core.KindOf(err) {
	case core.KindUnsatisfiableRange:
		res := s.Engine.Stream(r.Context(), ref, delivery.RejectRange(ref.Size), stream.NewHTTPSink(w))
		finish(res.Status, err.Error())
	case core.KindClientAbort:
		finish(StatusClientClosed, "client disconnected")
	default:
		s.Logger.Error("chunk read failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int64("resource_id", ref.ID),
			zap.Error(err))
		res := s.Engine.Stream(r.Context(), ref, delivery.Failed(), stream.NewHTTPSink(w))
		finish(res.Status, err.Error())
	}
}
