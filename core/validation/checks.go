package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"audiostream/core"
	"audiostream/db"
	"audiostream/media"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status  StepStatus
	Message string
	Error   error
}

func passed(format string, args ...interface{}) CheckResult {
	return CheckResult{Status: StepPassed, Message: fmt.Sprintf(format, args...)}
}

func warning(err error, format string, args ...interface{}) CheckResult {
	return CheckResult{Status: StepWarning, Message: fmt.Sprintf(format, args...), Error: err}
}

func failed(err error, format string, args ...interface{}) CheckResult {
	return CheckResult{Status: StepFailed, Message: fmt.Sprintf(format, args...), Error: err}
}

// CheckEnvFile looks for the .env file. A missing file is only a warning
// since the environment may be set some other way.
func CheckEnvFile(path string) CheckResult {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return warning(nil, "%s not found, using process environment", path)
	case err != nil:
		return failed(err, "cannot read %s", path)
	case info.IsDir():
		return failed(fmt.Errorf("%s is a directory", path), "invalid env file")
	}
	return passed("%s found", path)
}

// CheckConfig runs the configuration value checks.
func CheckConfig(cfg *core.Config) CheckResult {
	if err := cfg.Validate(); err != nil {
		return failed(err, "configuration invalid")
	}
	return passed("listening on %s", cfg.Addr())
}

// CheckMediaRoot verifies the media root is a readable directory and
// counts the files on the allow-list beneath it.
func CheckMediaRoot(cfg *core.Config) CheckResult {
	info, err := os.Stat(cfg.MediaRoot)
	if err != nil {
		return failed(core.ErrMediaRootMissing(cfg.MediaRoot, err.Error()), "media root unavailable")
	}
	if !info.IsDir() {
		return failed(core.ErrMediaRootMissing(cfg.MediaRoot, "not a directory"), "media root unavailable")
	}

	count := 0
	err = filepath.WalkDir(cfg.MediaRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && cfg.IsExtensionAllowed(core.Extension(p)) {
			count++
		}
		return nil
	})
	if err != nil {
		return failed(err, "cannot scan %s", cfg.MediaRoot)
	}
	if count == 0 {
		return warning(nil, "no audio files under %s", cfg.MediaRoot)
	}
	return passed("%d audio files under %s", count, cfg.MediaRoot)
}

// CheckCatalog parses the optional YAML catalog.
func CheckCatalog(path string) CheckResult {
	if path == "" {
		return CheckResult{Status: StepSkipped, Message: "no catalog configured"}
	}
	md, err := media.LoadCatalog(path)
	if err != nil {
		return failed(err, "catalog unreadable")
	}
	return passed("%d catalog entries", len(md))
}

// CheckDatabaseDir verifies the database directory can be created and
// written to, and warns when disk space is low.
func CheckDatabaseDir(dbPath string) CheckResult {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return failed(err, "cannot create %s", dir)
	}

	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return failed(err, "%s is not writable", dir)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	if err := CheckDiskSpace(dir, MinFreeDiskBytes); err != nil {
		return warning(err, "low disk space")
	}
	return passed("%s writable", dir)
}

// CheckMigrations compares the applied schema version with the newest
// embedded migration. A database that does not exist yet passes; serve
// creates it.
func CheckMigrations(dbPath string) CheckResult {
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return failed(err, "embedded migrations unreadable")
	}
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return passed("new database, will migrate to version %d", latest)
	}

	version, dirty, err := db.MigrationVersionFromPath(dbPath)
	switch {
	case err != nil:
		return failed(err, "cannot read schema version")
	case dirty:
		return failed(fmt.Errorf("schema version %d is dirty", version), "fix with migrate down then up")
	case version < latest:
		return warning(nil, "schema at version %d of %d, will migrate on start", version, latest)
	}
	return passed("schema at version %d", version)
}
