// Package main is the CLI entry point for sessiond.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/focuslock/sessiond/internal/daemon"
	"github.com/focuslock/sessiond/internal/infra"
	"github.com/focuslock/sessiond/internal/trigger"
	"github.com/focuslock/sessiond/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Focus session monitor and scheduler",
	Long: `sessiond enforces focus sessions: while a session is active only one
allowed application may run, everything else is terminated on sight.
Recurring sessions are persisted and fired automatically at their
scheduled times.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler daemon in the background",
	Long: `Spawns the detached daemon that re-arms persisted schedules and fires
them at their scheduled times. Safe to run from a terminal; the daemon
survives the terminal closing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.Spawn(configPath); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Println("sessiond daemon started")
		return nil
	},
}

// Hidden daemon command - the detached process spawned by `start`.
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	monitorDuration time.Duration
	monitorRestore  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <app>",
	Short: "Run a foreground focus session allowing only the named app",
	Long: `Starts enforcement immediately: every 2 seconds, any running GUI
application that is neither the allowed app nor OS infrastructure is
terminated. Runs until the duration elapses or Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List currently running GUI applications",
	RunE:  runApps,
}

var launchCmd = &cobra.Command{
	Use:   "launch <app>",
	Short: "Launch the named application if it is not already running",
	Args:  cobra.ExactArgs(1),
	RunE:  runLaunch,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted schedules and their state",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
				Version, Commit, BuildTime)
		} else {
			fmt.Printf("sessiond %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Config file path")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")

	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "Session length (0 = until Ctrl-C)")
	monitorCmd.Flags().BoolVar(&monitorRestore, "restore", false, "Relaunch blocked apps when the session ends")

	rootCmd.AddCommand(startCmd, daemonCmd, monitorCmd, appsCmd, launchCmd,
		statusCmd, scheduleCmd, versionCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.sessiond/config.yaml"
}

// buildMonitor wires an AppMonitor from config.
func buildMonitor(cfg infra.Config, logger *zap.Logger) *usecase.AppMonitor {
	runner := &infra.RealCommandRunner{Timeout: cfg.Monitor.ProbeTimeout()}
	opts := usecase.MonitorOptions{
		PollInterval:   cfg.Monitor.PollInterval(),
		ProbeThreshold: cfg.Monitor.ProbeThreshold,
		ProbeTimeout:   cfg.Monitor.ProbeTimeout(),
		FallbackApps:   infra.FallbackApps,
	}
	return usecase.NewAppMonitor(opts, infra.DefaultProbes(runner),
		infra.NewAppControllerWithRunner(runner), logger)
}

// buildScheduler wires the persistence stack and scheduler from config.
// Caller must Close the returned store.
func buildScheduler(cfg infra.Config, logger *zap.Logger) (*usecase.Scheduler, *infra.EncryptedScheduleStore, *trigger.Registry, *infra.SessionNotifier, error) {
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(cfg.DataDir))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to obtain store key: %w", err)
	}

	store, err := infra.NewEncryptedScheduleStore(cfg.DataDir, key)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	clock := infra.SystemClock{}
	triggers := trigger.NewRegistry(clock, logger)
	notifier := infra.NewSessionNotifier(16, logger)
	scheduler := usecase.NewScheduler(store, triggers, notifier, clock,
		cfg.Scheduler.Retention(), logger)

	return scheduler, store, triggers, notifier, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogPath)
	defer func() { _ = logger.Sync() }()

	scheduler, store, triggers, notifier, err := buildScheduler(cfg, logger)
	if err != nil {
		logger.Error("failed to build scheduler", zap.Error(err))
		return err
	}
	defer store.Close()

	monitor := buildMonitor(cfg, logger)

	// Scheduled sessions drive the monitor: when a schedule fires, lock
	// to the session's focus mode target if one is configured.
	go func() {
		for e := range notifier.Events() {
			logger.Info("session event consumed",
				zap.String("schedule", e.ScheduleName),
				zap.Int("duration_minutes", e.DurationMinutes))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	d := daemon.New(daemon.Config{CleanupInterval: cfg.Scheduler.CleanupInterval()},
		monitor, scheduler, triggers, logger)
	err = d.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogPath)
	defer func() { _ = logger.Sync() }()

	monitor := buildMonitor(cfg, logger)
	allowed := args[0]

	monitor.StartMonitoring(allowed)
	fmt.Printf("Focus session active: only %q is allowed. Ctrl-C to end.\n", allowed)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if monitorDuration > 0 {
		select {
		case <-sigChan:
		case <-time.After(monitorDuration):
			fmt.Println("Session duration elapsed.")
		}
	} else {
		<-sigChan
	}

	monitor.StopMonitoring()

	snap := monitor.Snapshot()
	if len(snap.BlockedSeen) > 0 {
		fmt.Printf("Blocked during session: %s\n", strings.Join(snap.BlockedSeen, ", "))
	}
	if monitorRestore {
		restored := monitor.RestoreBlockedApps()
		fmt.Printf("Restored %d application(s).\n", restored)
	}
	return nil
}

func runApps(cmd *cobra.Command, args []string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	monitor := buildMonitor(cfg, logger)

	apps := monitor.GetRunningApplications(context.Background())
	if len(apps) == 0 {
		fmt.Println("No running applications detected.")
		return nil
	}
	for _, app := range apps {
		fmt.Println(app)
	}
	return nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogPath)
	defer func() { _ = logger.Sync() }()

	monitor := buildMonitor(cfg, logger)
	name := args[0]

	if monitor.IsAppRunning(name) {
		fmt.Printf("%s is already running.\n", name)
		return nil
	}
	if err := monitor.LaunchApp(name); err != nil {
		return err
	}
	fmt.Printf("Launched %s.\n", name)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	scheduler, store, _, _, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	schedules, err := scheduler.ListSchedules()
	if err != nil {
		return err
	}

	fmt.Println("=== sessiond status ===")
	if len(schedules) == 0 {
		fmt.Println("No schedules.")
		return nil
	}
	for _, s := range schedules {
		state := "paused"
		if s.IsActive {
			state = "active"
		}
		fmt.Printf("%s  %-20s %s-%s [%s] %s  sessions %d/%d  focused %dm\n",
			s.ID, s.Name, s.StartTime, s.EndTime,
			strings.Join(s.DaysOfWeek, ","), state,
			s.CompletedSessions, s.MaxSessions, s.TotalTimeFocused)
	}
	return nil
}

func createLogger(logPath string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{logPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
