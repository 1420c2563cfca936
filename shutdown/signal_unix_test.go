//go:build !windows

package shutdown

import (
	"syscall"
	"testing"
	"time"
)

func TestManagerSignals(t *testing.T) {
	m := NewManager(nil, time.Second)
	exited := make(chan int, 1)
	m.exit = func(code int) { exited <- code }
	m.Listen()
	defer m.Shutdown()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Skipf("cannot signal self: %v", err)
	}
	select {
	case <-m.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
	if sig := m.Signal(); sig != syscall.SIGTERM {
		t.Errorf("Signal() = %v, want SIGTERM", sig)
	}

	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("exit code = %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("second signal did not force exit")
	}
}
