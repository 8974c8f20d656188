package control

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
)

// ExecRestarter restarts the process by re-execing the current binary
// with the same arguments and environment. This is the service
// equivalent of a full page reload: the process image is replaced, the
// PID survives, and durable state is read back on boot.
type ExecRestarter struct{}

func (ExecRestarter) Restart(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	slog.Warn("recovery: re-executing process", "exe", exe)
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}

// ExitRestarter terminates the process with a non-zero code and leaves
// the actual restart to a supervisor (systemd, container runtime).
type ExitRestarter struct {
	Code int
}

func (r ExitRestarter) Restart(ctx context.Context) error {
	code := r.Code
	if code == 0 {
		code = 1
	}
	slog.Warn("recovery: exiting for supervisor restart", "code", code)
	os.Exit(code)
	return nil
}
