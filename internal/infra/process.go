// Package infra implements infrastructure concerns (OS process control,
// discovery probes, encrypted storage, configuration).
package infra

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/focuslock/sessiond/internal/domain"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes real system commands with a fixed timeout
// per call. OS utilities occasionally hang; a bounded call keeps the
// enforcement loop moving.
type RealCommandRunner struct {
	Timeout time.Duration
}

// NewCommandRunner returns a runner with the default 5s per-call timeout.
func NewCommandRunner() *RealCommandRunner {
	return &RealCommandRunner{Timeout: 5 * time.Second}
}

// Run executes a command and waits for it to complete.
func (r *RealCommandRunner) Run(name string, args ...string) error {
	ctx, cancel := r.callContext()
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run()
}

// Output executes a command and returns its stdout.
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	ctx, cancel := r.callContext()
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

func (r *RealCommandRunner) callContext() (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// AppControllerImpl implements domain.AppController using gopsutil for
// process access and shell utilities for launch/visibility.
type AppControllerImpl struct {
	runner CommandRunner
}

// NewAppController creates a controller backed by real OS commands.
func NewAppController() *AppControllerImpl {
	return &AppControllerImpl{runner: NewCommandRunner()}
}

// NewAppControllerWithRunner creates a controller with an injected
// command runner (for testing).
func NewAppControllerWithRunner(runner CommandRunner) *AppControllerImpl {
	return &AppControllerImpl{runner: runner}
}

// RunningProcessNames returns the names of all running processes.
func (c *AppControllerImpl) RunningProcessNames() ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		names = append(names, name)
	}
	return names, nil
}

// TerminateByName kills every process whose name matches (SIGKILL).
// Matching is case-insensitive on the exact name. This is kill-by-name,
// not kill-by-PID: a relaunch between find and kill is caught next tick.
func (c *AppControllerImpl) TerminateByName(name string) (int, error) {
	pids, err := c.findByName(name)
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, nil
	}

	killed := 0
	var lastErr error
	for _, pid := range pids {
		p, err := process.NewProcess(pid)
		if err != nil {
			lastErr = err
			continue
		}
		if err := p.Kill(); err != nil {
			lastErr = err
			continue
		}
		killed++
	}

	if killed == 0 && lastErr != nil {
		return 0, fmt.Errorf("failed to terminate %q: %w", name, lastErr)
	}
	return killed, nil
}

// LaunchByName starts an application by its display name.
func (c *AppControllerImpl) LaunchByName(name string) error {
	if err := c.runner.Run("open", "-a", name); err != nil {
		return fmt.Errorf("failed to launch %q: %w", name, err)
	}
	return nil
}

// SetVisible shows or hides an application's windows via System Events.
func (c *AppControllerImpl) SetVisible(name string, visible bool) error {
	script := fmt.Sprintf(
		"tell application \"System Events\" to set visible of process %q to %v",
		name, visible)
	if err := c.runner.Run("osascript", "-e", script); err != nil {
		return fmt.Errorf("failed to set visibility of %q: %w", name, err)
	}
	return nil
}

// IsRunning checks whether any process matches the name.
func (c *AppControllerImpl) IsRunning(name string) (bool, error) {
	pids, err := c.findByName(name)
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

func (c *AppControllerImpl) findByName(name string) ([]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var found []int32
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(pname, name) {
			found = append(found, p.Pid)
		}
	}
	return found, nil
}

// SystemClock implements domain.Clock with wall-clock time.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Ensure implementations satisfy their interfaces.
var (
	_ domain.AppController = (*AppControllerImpl)(nil)
	_ domain.Clock         = SystemClock{}
)
