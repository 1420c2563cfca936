package media

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"audiostream/core"
)

// AudioInfo holds stream properties recorded in the catalog.
type AudioInfo struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// ErrProbeUnsupported is returned for formats without a decoder.
var ErrProbeUnsupported = errors.New("no decoder for format")

// Probe reads the header of an audio file to find its duration, sample rate
// and channel count. Only mp3, wav and ogg are decoded; other formats return
// ErrProbeUnsupported and are indexed without these fields.
func Probe(path string) (AudioInfo, error) {
	switch core.Extension(path) {
	case "mp3":
		return probeMP3(path)
	case "wav":
		return probeWAV(path)
	case "ogg":
		return probeOgg(path)
	default:
		return AudioInfo{}, ErrProbeUnsupported
	}
}

func probeMP3(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return AudioInfo{}, fmt.Errorf("mp3 header: %w", err)
	}

	// go-mp3 always decodes to 16-bit stereo, so one frame is 4 bytes.
	info := AudioInfo{SampleRate: dec.SampleRate(), Channels: 2}
	if length := dec.Length(); length > 0 && info.SampleRate > 0 {
		frames := length / 4
		info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}

func probeWAV(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return AudioInfo{}, fmt.Errorf("wav header: invalid file")
	}

	info := AudioInfo{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	if d, err := dec.Duration(); err == nil {
		info.Duration = d
	}
	return info, nil
}

func probeOgg(path string) (AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer f.Close()

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		return AudioInfo{}, fmt.Errorf("ogg header: %w", err)
	}

	info := AudioInfo{SampleRate: r.SampleRate(), Channels: r.Channels()}
	if length := r.Length(); length > 0 && info.SampleRate > 0 {
		info.Duration = time.Duration(length) * time.Second / time.Duration(info.SampleRate)
	}
	return info, nil
}

// DetectMIME returns the MIME type for a file: the extension table first,
// then content sniffing, then application/octet-stream.
func DetectMIME(path string) string {
	if m := core.MIMEForExtension(core.Extension(path)); m != "" {
		return m
	}
	if m, err := mimetype.DetectFile(path); err == nil && core.IsAudioMIME(m.String()) {
		return m.String()
	}
	return core.DefaultMIMEType
}
