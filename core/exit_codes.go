package core

import (
	"os"
	"syscall"
)

// Exit codes for the application.
// Signal-based exits follow the Unix convention of 128 + signal number.
const (
	ExitCodeSuccess    = 0
	ExitCodeError      = 1
	ExitCodeConfig     = 2 // Configuration could not be loaded or validated
	ExitCodeValidation = 3 // Startup validation suite failed
	ExitCodeSIGINT     = 130
	ExitCodeSIGTERM    = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeValidation:
		return "startup validation failed"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// IsSignalExit reports whether code is one of the signal exit codes.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}

// SignalExitCode maps a shutdown signal to its exit code. Any other value,
// including nil, maps to ExitCodeSuccess.
func SignalExitCode(sig os.Signal) int {
	switch sig {
	case os.Interrupt:
		return ExitCodeSIGINT
	case syscall.SIGTERM:
		return ExitCodeSIGTERM
	default:
		return ExitCodeSuccess
	}
}
