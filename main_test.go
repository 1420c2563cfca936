package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kardianos/service"

	"audiostream/core"
	"audiostream/logging"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testAppConfig(t *testing.T) *core.Config {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.mp3"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}
	return &core.Config{
		MediaRoot:           root,
		PublicBaseURL:       "http://localhost/media/",
		AllowedExtensions:   []string{"mp3"},
		EnableStreaming:     true,
		MaxFileSizeMB:       10,
		RedirectThresholdMB: 1,
		BufferSizeKB:        8,
		ChunkSizeMB:         1,
		ChunkCacheTTL:       time.Minute,
		ChunkCacheEntries:   8,
		LogRetentionEntries: 100,
		LogRetentionDays:    30,
		DatabasePath:        filepath.Join(t.TempDir(), "data", "app.db"),
		Host:                "127.0.0.1",
		Port:                0,
		ShutdownTimeout:     2 * time.Second,
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, core.VersionString()) {
		t.Errorf("output = %q", out)
	}
}

func TestMigrateCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")

	out, err := runCmd(t, "migrate", "up", "--db", path)
	if err != nil {
		t.Fatalf("migrate up error = %v", err)
	}
	if !strings.Contains(out, "(clean)") {
		t.Errorf("migrate up output = %q", out)
	}

	out, err = runCmd(t, "migrate", "down", "--db", path, "--steps", "0")
	if err != nil {
		t.Fatalf("migrate down error = %v", err)
	}
	if !strings.HasPrefix(out, "schema version 0 of") {
		t.Errorf("migrate down output = %q", out)
	}
}

func TestValidateCommandFails(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "")
	_, err := runCmd(t, "validate", "--env", filepath.Join(t.TempDir(), ".env"))
	if err == nil {
		t.Fatal("validate succeeded without MEDIA_ROOT")
	}
	if got := exitCode(err); got != core.ExitCodeValidation {
		t.Errorf("exitCode() = %d, want %d", got, core.ExitCodeValidation)
	}
}

func TestServeRequiresConfig(t *testing.T) {
	t.Setenv("MEDIA_ROOT", "")
	_, err := runCmd(t, "serve")
	if got := exitCode(err); got != core.ExitCodeConfig {
		t.Errorf("exitCode(%v) = %d, want %d", err, got, core.ExitCodeConfig)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), core.ExitCodeError},
		{core.ErrMissingConfig("MEDIA_ROOT"), core.ExitCodeConfig},
		{&exitError{code: 7, err: errors.New("x")}, 7},
		{fmt.Errorf("run: %w", &exitError{code: core.ExitCodeSIGTERM, err: errors.New("stopped")}), core.ExitCodeSIGTERM},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}

	if !isSignalExit(&exitError{code: core.ExitCodeSIGINT, err: errors.New("stopped by interrupt")}) {
		t.Error("SIGINT exit not recognised")
	}
	if isSignalExit(errors.New("boom")) || isSignalExit(nil) {
		t.Error("plain error treated as signal exit")
	}
}

func TestServiceConfig(t *testing.T) {
	cfg := serviceConfig("/srv/audio")
	if cfg.Name != "audiostream" || cfg.WorkingDirectory != "/srv/audio" {
		t.Errorf("config = %+v", cfg)
	}
	if strings.Join(cfg.Arguments, " ") != "service run" {
		t.Errorf("Arguments = %v", cfg.Arguments)
	}
	if statusText(service.StatusRunning) != "service is running" {
		t.Error("statusText(StatusRunning)")
	}
}

func TestAppServesAndShutsDown(t *testing.T) {
	cfg := testAppConfig(t)
	app, err := newApp(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	result, err := app.index(t.Context())
	if err != nil {
		t.Fatalf("index() error = %v", err)
	}
	if result.Upserted != 1 {
		t.Errorf("Upserted = %d, want 1", result.Upserted)
	}

	h := app.server.Handler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/play/a.mp3", nil)
	req.Header.Set("Range", "bytes=0-1023")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusPartialContent || rec.Body.Len() != 1024 {
		t.Fatalf("play: status %d, %d bytes", rec.Code, rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"audiostream_requests_total", "audiostream_active_streams", "audiostream_log_queue_pending"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	done := make(chan error, 1)
	go func() { done <- app.Run() }()
	app.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after Stop")
	}
}
