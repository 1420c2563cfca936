package server

import (
	"net/http"
	"os"
	"path"

	"audiostream/core"
)

// handleMedia serves files under the media root directly. It is the
// target of redirects when PUBLIC_BASE_URL points back at this server.
// http.ServeContent handles Range and conditional requests itself.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if name == "" || !s.Config.IsExtensionAllowed(core.Extension(name)) {
		http.NotFound(w, r)
		return
	}

	full, err := s.Files.Contain(name)
	if err != nil {
		http.Error(w, "invalid_path", http.StatusForbidden)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, path.Base(name), info.ModTime(), f)
}
