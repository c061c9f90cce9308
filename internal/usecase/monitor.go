// Package usecase contains application business logic.
package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
	"github.com/focuslock/sessiond/internal/sysapp"
)

// MonitorOptions tunes the enforcement loop.
type MonitorOptions struct {
	PollInterval   time.Duration // How often to run an enforcement tick
	ProbeThreshold int           // Accept the first probe yielding this many apps
	ProbeTimeout   time.Duration // Per-probe deadline
	FallbackApps   []string      // Returned when every probe fails
}

// DefaultMonitorOptions returns the standard 2-second enforcement loop.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		PollInterval:   2 * time.Second,
		ProbeThreshold: 5,
		ProbeTimeout:   5 * time.Second,
	}
}

// AppMonitor enforces a single-allowed-app policy during a focus
// session. It polls the OS for running applications and terminates
// everything that is neither the allowed app nor OS infrastructure.
// All OS failures are logged and swallowed: a missed kill this tick is
// caught on the next one.
type AppMonitor struct {
	opts       MonitorOptions
	probes     []domain.ProbeStrategy
	controller domain.AppController
	logger     *zap.Logger

	mu          sync.Mutex
	allowedApp  string
	monitoring  bool
	blockedSeen map[string]struct{}
	cancel      context.CancelFunc
	done        chan struct{}

	tickInFlight bool
}

// NewAppMonitor creates a monitor. Probes are tried in order each tick.
func NewAppMonitor(
	opts MonitorOptions,
	probes []domain.ProbeStrategy,
	controller domain.AppController,
	logger *zap.Logger,
) *AppMonitor {
	return &AppMonitor{
		opts:        opts,
		probes:      probes,
		controller:  controller,
		logger:      logger,
		blockedSeen: make(map[string]struct{}),
	}
}

// StartMonitoring begins enforcing allowedApp. If a session is already
// running, the allowed app is swapped without spawning a second loop.
func (m *AppMonitor) StartMonitoring(allowedApp string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitoring {
		if m.allowedApp != allowedApp {
			m.logger.Info("switching allowed application",
				zap.String("from", m.allowedApp),
				zap.String("to", allowedApp))
			m.allowedApp = allowedApp
		}
		return
	}

	m.allowedApp = allowedApp
	m.monitoring = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	m.logger.Info("monitoring started", zap.String("allowed", allowedApp))
	go m.run(ctx, m.done)
}

// StopMonitoring ends the enforcement loop. Blocked apps are not
// relaunched; call RestoreBlockedApps for that.
func (m *AppMonitor) StopMonitoring() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = false
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("monitoring stopped")
}

// IsMonitoring reports whether an enforcement loop is active.
func (m *AppMonitor) IsMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring
}

// Snapshot returns the current monitor state.
func (m *AppMonitor) Snapshot() domain.MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	blocked := make([]string, 0, len(m.blockedSeen))
	for name := range m.blockedSeen {
		blocked = append(blocked, name)
	}
	sort.Strings(blocked)

	return domain.MonitorSnapshot{
		AllowedApp:  m.allowedApp,
		Monitoring:  m.monitoring,
		BlockedSeen: blocked,
	}
}

func (m *AppMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Enforce immediately, then on the interval.
	m.MonitorAndBlock(ctx)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.MonitorAndBlock(ctx)
		}
	}
}

// MonitorAndBlock runs one enforcement tick: enumerate running apps and
// terminate everything that is neither a system app nor the allowed
// app. A tick arriving while the previous one is still in flight is
// skipped rather than overlapped.
func (m *AppMonitor) MonitorAndBlock(ctx context.Context) {
	m.mu.Lock()
	if m.tickInFlight {
		m.mu.Unlock()
		m.logger.Debug("previous tick still in flight, skipping")
		return
	}
	m.tickInFlight = true
	allowed := m.allowedApp
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.tickInFlight = false
		m.mu.Unlock()
	}()

	apps := m.GetRunningApplications(ctx)
	for _, app := range apps {
		if app == allowed || sysapp.IsSystemApp(app) {
			continue
		}

		killed, err := m.controller.TerminateByName(app)
		if err != nil {
			m.logger.Warn("failed to terminate application",
				zap.String("app", app),
				zap.Error(err))
			continue
		}
		if killed > 0 {
			m.logger.Info("blocked application",
				zap.String("app", app),
				zap.Int("processes", killed))
		}

		m.mu.Lock()
		m.blockedSeen[app] = struct{}{}
		m.mu.Unlock()
	}
}

// GetRunningApplications discovers running GUI applications through the
// probe cascade. The first probe yielding at least ProbeThreshold names
// wins; otherwise the largest result so far is used; if every probe
// fails, the hardcoded fallback list is returned. Probe failures are
// logged and swallowed - discovery degrades, it never errors.
func (m *AppMonitor) GetRunningApplications(ctx context.Context) []string {
	var best []string

	for _, probe := range m.probes {
		probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
		names, err := probe.Probe(probeCtx)
		cancel()

		if err != nil {
			m.logger.Warn("probe failed",
				zap.String("probe", probe.Name()),
				zap.Error(err))
			continue
		}

		filtered := sysapp.Filter(names)
		if len(filtered) >= m.opts.ProbeThreshold {
			m.logger.Debug("probe succeeded",
				zap.String("probe", probe.Name()),
				zap.Int("apps", len(filtered)))
			return filtered
		}
		if len(filtered) > len(best) {
			best = filtered
		}
	}

	if len(best) > 0 {
		return best
	}

	m.logger.Warn("all probes failed, using fallback application list")
	return sysapp.Filter(m.opts.FallbackApps)
}

// RestoreBlockedApps relaunches every application recorded as blocked
// during the session, one attempt per distinct name, continuing past
// individual failures. Returns the number of successful relaunches.
func (m *AppMonitor) RestoreBlockedApps() int {
	m.mu.Lock()
	names := make([]string, 0, len(m.blockedSeen))
	for name := range m.blockedSeen {
		names = append(names, name)
	}
	m.blockedSeen = make(map[string]struct{})
	m.mu.Unlock()

	sort.Strings(names)

	restored := 0
	for _, name := range names {
		if err := m.controller.LaunchByName(name); err != nil {
			m.logger.Warn("failed to relaunch application",
				zap.String("app", name),
				zap.Error(err))
			continue
		}
		restored++
	}

	if len(names) > 0 {
		m.logger.Info("restored blocked applications",
			zap.Int("restored", restored),
			zap.Int("attempted", len(names)))
	}
	return restored
}

// IsAppRunning checks whether the named app has a live process. A probe
// error is reported as not running but logged, so "unknown" is never
// silently conflated with a confirmed negative.
func (m *AppMonitor) IsAppRunning(name string) bool {
	running, err := m.controller.IsRunning(name)
	if err != nil {
		m.logger.Warn("liveness check failed",
			zap.String("app", name),
			zap.Error(err))
		return false
	}
	return running
}

// LaunchApp starts the named application if it is not already running.
func (m *AppMonitor) LaunchApp(name string) error {
	if m.IsAppRunning(name) {
		return nil
	}
	return m.controller.LaunchByName(name)
}
