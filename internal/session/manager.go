package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/jmylchreest/gotify-dunst/internal/proc"
)

// ErrSessionUnavailable is returned when no session bus could be reused or
// started.
var ErrSessionUnavailable = errors.New("dbus session unavailable")

// ProcessChecker reports whether a process with the given PID is running.
type ProcessChecker func(ctx context.Context, pid int) bool

// ProcessAlive probes the process table.
func ProcessAlive(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && exists
}

// Manager reuses or provisions the shared session bus.
type Manager struct {
	path   string
	launch []string
	runner proc.Runner
	alive  ProcessChecker
	logger *slog.Logger
}

// NewManager creates a Manager that records the session at path and starts
// new buses with the launch argv.
func NewManager(path string, launch []string, runner proc.Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	return &Manager{
		path:   path,
		launch: launch,
		runner: runner,
		alive:  ProcessAlive,
		logger: logger,
	}
}

// SetProcessChecker replaces the liveness probe.
func (m *Manager) SetProcessChecker(fn ProcessChecker) {
	m.alive = fn
}

// Path returns the record file location.
func (m *Manager) Path() string {
	return m.path
}

// Ensure returns a live session handle, reusing the recorded one when its
// daemon is still running and launching a new bus otherwise.
func (m *Manager) Ensure(ctx context.Context) (Handle, error) {
	if h, ok := ReadRecord(m.path); ok {
		if m.alive(ctx, h.PID) {
			m.logger.Debug("reusing dbus session", "address", h.Address, "pid", h.PID)
			return h, nil
		}
		m.logger.Info("recorded dbus session is gone", "pid", h.PID)
	}

	h, err := m.provision(ctx)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	if err := WriteRecord(m.path, h); err != nil {
		// The bus is usable even if the next run has to start another one
		m.logger.Warn("failed to record dbus session", "path", m.path, "error", err)
	}

	m.logger.Info("started dbus session", "address", h.Address, "pid", h.PID)
	return h, nil
}

func (m *Manager) provision(ctx context.Context) (Handle, error) {
	if len(m.launch) == 0 {
		return Handle{}, errors.New("no launch command configured")
	}

	res, err := m.runner.Run(ctx, nil, m.launch[0], m.launch[1:]...)
	if err != nil {
		if stderr := res.StderrString(); stderr != "" {
			return Handle{}, fmt.Errorf("%w (%s)", err, stderr)
		}
		return Handle{}, err
	}

	return ParseLaunchOutput(res.Stdout)
}
