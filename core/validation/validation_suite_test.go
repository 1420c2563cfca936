package validation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audiostream/core"
	"audiostream/db"
)

func validConfig(t *testing.T) *core.Config {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "track.mp3"), []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}
	return &core.Config{
		MediaRoot:           root,
		PublicBaseURL:       "http://localhost:8080/media/",
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
		Port:                8080,
		DatabasePath:        filepath.Join(t.TempDir(), "data", "audiostream.db"),
	}
}

func TestStepStatusString(t *testing.T) {
	tests := map[StepStatus]string{
		StepPending:    "pending",
		StepPassed:     "passed",
		StepFailed:     "failed",
		StepWarning:    "warning",
		StepSkipped:    "skipped",
		StepStatus(99): "unknown",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("StepStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestValidateSuccess(t *testing.T) {
	var out bytes.Buffer
	suite := NewValidationSuite().WithOutput(&out).WithEnvPath(filepath.Join(t.TempDir(), ".env"))

	result := suite.Validate(validConfig(t))

	if !result.Success {
		t.Fatalf("Validate() failed: %s (%v)", result.Summary(), result.GetErrors())
	}
	if result.TotalSteps != 6 {
		t.Errorf("TotalSteps = %d, want 6", result.TotalSteps)
	}
	// Missing .env is a warning and no catalog is a skip.
	if result.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1", result.Warnings)
	}
	if !strings.Contains(out.String(), "Validation Passed") {
		t.Errorf("output missing summary:\n%s", out.String())
	}
}

func TestValidateInvalidConfigSkipsDependents(t *testing.T) {
	cfg := validConfig(t)
	cfg.BufferSizeKB = 1

	result := NewValidationSuite().WithShowProgress(false).Validate(cfg)

	if result.Success {
		t.Fatal("Validate() succeeded with invalid buffer size")
	}
	if result.FailedSteps != 1 {
		t.Errorf("FailedSteps = %d, want 1", result.FailedSteps)
	}
	for _, step := range result.Steps[2:] {
		if step.Status != StepSkipped {
			t.Errorf("step %q status = %s, want skipped", step.Name, step.Status)
		}
	}
	if _, ok := core.IsConfigError(result.GetFirstError()); !ok {
		t.Errorf("GetFirstError() = %v, want a ConfigError", result.GetFirstError())
	}
}

func TestValidateFailFast(t *testing.T) {
	cfg := validConfig(t)
	cfg.MediaRoot = filepath.Join(t.TempDir(), "missing")
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

	result := NewValidationSuite().WithShowProgress(false).WithFailFast(true).Validate(cfg)

	if result.Success {
		t.Fatal("Validate() succeeded with missing media root")
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Name != "Media Root" || last.Status != StepFailed {
		t.Errorf("last step = %+v, want failed Media Root", last)
	}
}

func TestCheckMediaRoot(t *testing.T) {
	cfg := validConfig(t)
	if res := CheckMediaRoot(cfg); res.Status != StepPassed {
		t.Errorf("populated root: status = %s (%v)", res.Status, res.Error)
	}

	cfg.MediaRoot = t.TempDir()
	if res := CheckMediaRoot(cfg); res.Status != StepWarning {
		t.Errorf("empty root: status = %s, want warning", res.Status)
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0644)
	cfg.MediaRoot = file
	if res := CheckMediaRoot(cfg); res.Status != StepFailed {
		t.Errorf("file as root: status = %s, want failed", res.Status)
	}
}

func TestCheckCatalog(t *testing.T) {
	if res := CheckCatalog(""); res.Status != StepSkipped {
		t.Errorf("no catalog: status = %s, want skipped", res.Status)
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	os.WriteFile(path, []byte("tracks:\n  - file: a.mp3\n    title: A\n"), 0644)
	if res := CheckCatalog(path); res.Status != StepPassed {
		t.Errorf("valid catalog: status = %s (%v)", res.Status, res.Error)
	}

	os.WriteFile(path, []byte("tracks: [\n"), 0644)
	if res := CheckCatalog(path); res.Status != StepFailed {
		t.Errorf("broken catalog: status = %s, want failed", res.Status)
	}
}

func TestCheckMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.db")

	if res := CheckMigrations(path); res.Status != StepPassed {
		t.Errorf("missing db: status = %s (%v)", res.Status, res.Error)
	}

	if err := db.MigrateUpFromPath(path); err != nil {
		t.Fatal(err)
	}
	if res := CheckMigrations(path); res.Status != StepPassed {
		t.Errorf("migrated db: status = %s (%v)", res.Status, res.Error)
	}

	if err := db.MigrateDownFromPath(path, 1); err != nil {
		t.Fatal(err)
	}
	if res := CheckMigrations(path); res.Status != StepWarning {
		t.Errorf("rolled back db: status = %s, want warning", res.Status)
	}
}

func TestCheckDatabaseDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "x.db")
	res := CheckDatabaseDir(path)
	if res.Status != StepPassed && res.Status != StepWarning {
		t.Fatalf("status = %s (%v)", res.Status, res.Error)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestDiskSpace(t *testing.T) {
	dir := t.TempDir()
	info, err := GetDiskSpace(filepath.Join(dir, "not", "there"))
	if err != nil {
		t.Fatalf("GetDiskSpace() error = %v", err)
	}
	if info.Path != dir || info.Total <= 0 {
		t.Errorf("info = %+v", info)
	}

	err = CheckDiskSpace(dir, 1<<62)
	if _, ok := err.(*DiskSpaceError); !ok {
		t.Errorf("CheckDiskSpace(huge) error = %v, want *DiskSpaceError", err)
	}
}

func TestSummary(t *testing.T) {
	r := SuiteResult{TotalSteps: 3, PassedSteps: 1, FailedSteps: 1, Warnings: 1}
	s := r.Summary()
	for _, want := range []string{"Validation Failed", "1/3 checks passed", "1 failed", "1 warnings"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary() = %q, missing %q", s, want)
		}
	}
}
