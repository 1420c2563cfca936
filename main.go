// Command audiostream serves audio files over HTTP with byte-range
// support, a chunk endpoint and a persisted stream log.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"audiostream/core"
)

func main() {
	// A missing .env is fine; the environment may be set by the service
	// manager or the shell.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		if !core.IsSignalExit(code) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(code)
	}
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	if _, ok := core.IsConfigError(err); ok {
		return core.ExitCodeConfig
	}
	return core.ExitCodeError
}

// isSignalExit reports whether err only records that a signal stopped the
// process.
func isSignalExit(err error) bool {
	return err != nil && core.IsSignalExit(exitCode(err))
}
