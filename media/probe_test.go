package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV writes a silent 16-bit PCM file of the given length.
func writeTestWAV(t *testing.T, path string, sampleRate, channels int, d time.Duration) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := int(d.Seconds() * float64(sampleRate))
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("wav write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("wav close: %v", err)
	}
}

func TestProbeWAV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, p, 8000, 2, 2*time.Second)

	info, err := Probe(p)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.SampleRate != 8000 || info.Channels != 2 {
		t.Errorf("Probe() = %+v", info)
	}
	if info.Duration < 1900*time.Millisecond || info.Duration > 2100*time.Millisecond {
		t.Errorf("Duration = %v, want ~2s", info.Duration)
	}
}

func TestProbeRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "noise.wav")
	if err := os.WriteFile(p, []byte("not a wav file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(p); err == nil {
		t.Error("Probe() on garbage wav returned nil error")
	}

	flac := filepath.Join(dir, "a.flac")
	if err := os.WriteFile(flac, []byte("fLaC"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(flac); !errors.Is(err, ErrProbeUnsupported) {
		t.Errorf("Probe(flac) error = %v, want ErrProbeUnsupported", err)
	}
}

func TestDetectMIME(t *testing.T) {
	dir := t.TempDir()

	wavPath := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, wavPath, 8000, 1, 100*time.Millisecond)
	if got := DetectMIME(wavPath); got != "audio/wav" {
		t.Errorf("DetectMIME(wav) = %q", got)
	}

	// Unknown extension with WAV content falls back to sniffing.
	sniffed := filepath.Join(dir, "tone.bin")
	data, err := os.ReadFile(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sniffed, data, 0644); err != nil {
		t.Fatal(err)
	}
	if got := DetectMIME(sniffed); got == "application/octet-stream" {
		t.Errorf("DetectMIME(sniffed wav) = %q, want an audio type", got)
	}

	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := DetectMIME(text); got != "application/octet-stream" {
		t.Errorf("DetectMIME(text) = %q", got)
	}
}
