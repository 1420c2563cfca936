package core

import (
	"path/filepath"
	"strings"
)

// DefaultMIMEType is used when neither the extension table nor content
// sniffing identifies a file.
const DefaultMIMEType = "application/octet-stream"

// DefaultAllowedExtensions lists the audio extensions served out of the box.
var DefaultAllowedExtensions = []string{"mp3", "wav", "ogg", "m4a", "flac"}

var mimeByExtension = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
}

// directMIMETypes are the types small enough files may be redirected to
// static hosting for. Browsers play these natively from a plain GET.
var directMIMETypes = map[string]bool{
	"audio/mpeg":     true,
	"audio/mp3":      true,
	"audio/wav":      true,
	"audio/wave":     true,
	"audio/x-wav":    true,
	"audio/vnd.wave": true,
}

// Extension returns the lowercase extension of name without the leading dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// MIMEForExtension returns the audio MIME type for an extension, or "" if the
// extension is not in the table. A leading dot and case are ignored.
func MIMEForExtension(ext string) string {
	return mimeByExtension[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// IsAudioMIME reports whether a MIME type belongs to the audio family.
// Parameters such as "; charset=" are ignored.
func IsAudioMIME(mimeType string) bool {
	return strings.HasPrefix(baseMIME(mimeType), "audio/")
}

// IsDirectlyServable reports whether a MIME type may be redirected to the
// direct file URL instead of streamed.
func IsDirectlyServable(mimeType string) bool {
	return directMIMETypes[baseMIME(mimeType)]
}

func baseMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
