// Package main is the CLI entry point for frictiond.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/frictionlabs/frictiond/internal/config"
	"github.com/frictionlabs/frictiond/internal/daemon"
	"github.com/frictionlabs/frictiond/internal/domain"
	"github.com/frictionlabs/frictiond/internal/infra"
	"github.com/frictionlabs/frictiond/internal/shield"
	"github.com/frictionlabs/frictiond/internal/usecase"
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

var rootCmd = &cobra.Command{
	Use:   "frictiond",
	Short: "Friction engine for compulsive phone and app use",
	Long: `frictiond escalates friction as guarded apps are used, enforces a
daily usage budget with a deliberately slow emergency unlock, and runs
focus sessions that punish app-switching.

All verdicts live in a shared state file so shield surfaces in other
processes render the same decision this CLI reports.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor daemon",
	Long: `Starts the background monitor that consumes usage events and rolls
budget and friction state over at local midnight. Idempotent: if a
live monitor is already registered, nothing is spawned.`,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show friction, budget and session state",
	RunE:  runStatus,
}

var eventCmd = &cobra.Command{
	Use:   "event <type>",
	Short: "Report a usage event",
	Long: `Drops a usage event into the spool for the monitor to consume.

Types:
  usage --minutes N        guarded-app minutes to accumulate
  threshold_<N>            usage threshold N was crossed
  budget_exceeded          the external accounting source spent the budget
  text_threshold_reached   the prosocial texting allowance ran out`,
	Args: cobra.ExactArgs(1),
	RunE: runEvent,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run a focus session in the foreground",
	Long: `Runs a focus session until it completes, is ended, or is abandoned.

While the session runs, commands on stdin drive it:
  pause / resume   pause and resume the timer
  leave / back     record backgrounding the focus surface and returning
  done             end the session early, counting it as completed
  quit             end the session early, counting it as abandoned`,
	RunE: runSession,
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Request an emergency budget unlock",
	Long: `Walks the three-step emergency unlock: type the commitment phrase,
sit through the mandatory wait, confirm. Interrupting at any point
discards all progress; the wait cannot be served in the background.`,
	RunE: runUnlock,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show focus session statistics",
	RunE:  runStats,
}

// Hidden shield command - queried by shield surface processes.
var shieldCmd = &cobra.Command{
	Use:    "shield",
	Hidden: true,
	RunE:   runShield,
}

var shieldDismissCmd = &cobra.Command{
	Use:  "dismiss",
	RunE: runShieldDismiss,
}

// Hidden monitor command - used for self-exec when spawning the daemon.
var monitorCmd = &cobra.Command{
	Use:    "monitor",
	Hidden: true,
	RunE:   runMonitor,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath      string
	eventMinutes    int
	sessionTask     string
	sessionDuration int
	jsonOutput      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	eventCmd.Flags().IntVar(&eventMinutes, "minutes", 0, "Minutes of usage (for the usage event)")
	sessionCmd.Flags().StringVar(&sessionTask, "task", "", "What the session is for")
	sessionCmd.Flags().IntVar(&sessionDuration, "duration", 0, "Planned duration in minutes")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	shieldCmd.AddCommand(shieldDismissCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(shieldCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	store := infra.NewFileStateStore(cfg.StateFilePath())

	// Already running?
	if pid, ok, err := store.GetInt(domain.KeyMonitorPID); err == nil && ok && pm.IsRunning(int(pid)) {
		fmt.Printf("frictiond monitor is already running (pid %d)\n", pid)
		return nil
	}

	if err := daemon.StartDetached(configPath); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	// Give the monitor a moment to register
	time.Sleep(500 * time.Millisecond)

	fmt.Println("frictiond monitor started")
	fmt.Printf("Daily budget: %d minutes, thresholds at %v minutes\n",
		cfg.Budget.DailyLimitMinutes, cfg.Friction.ThresholdMinutes)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	pm := infra.NewProcessManager()
	store := infra.NewFileStateStore(cfg.StateFilePath())
	state := domain.State{Store: store}
	budget := usecase.NewBudgetEnforcer(store, budgetConfig(cfg), logger)

	fmt.Println("\n=== frictiond Status ===")

	if pid, ok, err := store.GetInt(domain.KeyMonitorPID); err == nil && ok && pm.IsRunning(int(pid)) {
		fmt.Printf("Monitor: running (pid %d)\n", pid)
		if beat, ok, err := store.GetInt(domain.KeyMonitorHeartbeat); err == nil && ok {
			fmt.Printf("Last heartbeat: %s ago\n",
				time.Since(time.Unix(beat, 0)).Round(time.Second))
		}
	} else {
		fmt.Println("Monitor: NOT RUNNING")
		fmt.Println("Run 'frictiond start' to launch it.")
	}

	snap, err := budget.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to read budget state: %w", err)
	}
	fmt.Printf("\nBudget (%s): %d/%d minutes used\n",
		snap.BudgetDateKey, snap.UsedMinutesToday, snap.DailyLimitMinutes)
	if snap.IsLocked {
		fmt.Printf("Budget lock: LOCKED since %s\n", snap.LockedAt.Format(time.Kitchen))
	} else {
		fmt.Println("Budget lock: open")
	}
	if snap.EmergencyUnlockActive {
		fmt.Printf("Emergency unlock: active until %s\n",
			snap.EmergencyUnlockExpiresAt.Format(time.Kitchen))
	}
	fmt.Printf("Emergency unlocks used: %d/%d\n",
		snap.EmergencyUnlocksUsedToday, snap.MaxUnlocksPerDay)

	level, err := state.FrictionLevel()
	if err != nil {
		return fmt.Errorf("failed to read friction level: %w", err)
	}
	fmt.Printf("\nFriction level: %d\n", level)

	if active, err := state.FocusSessionActive(); err == nil && active {
		fmt.Println("Focus session: ACTIVE")
	}

	if enabled, err := state.ProsocialEnabled(); err == nil && enabled {
		if reached, err := state.ProsocialTextThresholdReached(); err == nil && reached {
			fmt.Printf("Prosocial: text allowance (%d min) used up\n", cfg.Prosocial.TextThresholdMinutes)
		} else {
			fmt.Printf("Prosocial: enabled, %d min of texting before friction\n", cfg.Prosocial.TextThresholdMinutes)
		}
	}

	resolver := shield.NewResolver(store, logger)
	fmt.Printf("Shield surface: %s\n", resolver.Resolve().Kind)

	fmt.Println("========================")
	return nil
}

func runEvent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ev := daemon.SpoolEvent{Type: args[0], Minutes: eventMinutes}
	if err := ev.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// Whole-file write then rename, so the monitor only ever sees
	// complete events.
	tmp, err := os.CreateTemp(cfg.Storage.SpoolDir, ".ev-*")
	if err != nil {
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()

	final := filepath.Join(cfg.Storage.SpoolDir, uuid.NewString()+".json")
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return err
	}

	fmt.Printf("Event %s spooled\n", ev.Type)
	return nil
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sessionTask == "" {
		return fmt.Errorf("--task is required")
	}
	if sessionDuration == 0 {
		sessionDuration = cfg.Session.DefaultDurationMinutes
	}

	logger := zap.NewNop()
	store := infra.NewFileStateStore(cfg.StateFilePath())
	ledger, err := infra.NewBoltLedger(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	controller := usecase.NewSessionController(store, ledger, logger)
	session, err := controller.StartSession(sessionTask, sessionDuration)
	if err != nil {
		return err
	}
	fmt.Printf("Focus session started: %q for %d minutes\n",
		session.Task, session.PlannedDurationMinutes)
	fmt.Println("Commands: pause, resume, leave, back, done, quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := controller.Tick(); err != nil {
				return err
			}
			status, current := controller.Status()
			if status == domain.SessionIdle {
				// Timer ran out; the controller already finished it.
				fmt.Println("\nSession complete. Well done.")
				return nil
			}
			if current != nil && current.ElapsedSeconds%60 == 0 && current.Status == domain.SessionActive {
				fmt.Printf("%d/%d minutes\n",
					current.ElapsedSeconds/60, current.PlannedDurationMinutes)
			}

		case <-sigChan:
			finished, err := controller.EndSession(false)
			if err != nil {
				return err
			}
			fmt.Printf("\nSession abandoned after %d seconds.\n", finished.ElapsedSeconds)
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			done, err := handleSessionCommand(controller, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if done {
				return nil
			}
		}
	}
}

// handleSessionCommand applies one stdin command to the running session.
// Returns true when the session is over.
func handleSessionCommand(controller *usecase.SessionController, line string) (bool, error) {
	switch line {
	case "pause":
		if err := controller.PauseSession(); err != nil {
			return false, err
		}
		fmt.Println("Paused.")
	case "resume":
		if err := controller.ResumeSession(); err != nil {
			return false, err
		}
		fmt.Println("Resumed.")
	case "leave":
		if err := controller.RecordAppLeft(); err != nil {
			return false, err
		}
		fmt.Println("Away from the session surface.")
	case "back":
		consequence, err := controller.RecordAppReturned()
		if err != nil {
			return false, err
		}
		switch consequence {
		case domain.ConsequenceUrgeResisted:
			fmt.Println("Welcome back. Urge resisted.")
		case domain.ConsequenceSoftWarning:
			fmt.Println("That was a long one. Next time the session is forfeit.")
		case domain.ConsequenceAbandon:
			fmt.Println("Session abandoned: away too long, too often.")
			return true, nil
		default:
			fmt.Println("Welcome back.")
		}
	case "done":
		finished, err := controller.EndSession(true)
		if err != nil {
			return false, err
		}
		fmt.Printf("Session ended early as completed after %d seconds.\n", finished.ElapsedSeconds)
		return true, nil
	case "quit":
		finished, err := controller.EndSession(false)
		if err != nil {
			return false, err
		}
		fmt.Printf("Session abandoned after %d seconds.\n", finished.ElapsedSeconds)
		return true, nil
	case "":
		// ignore blank lines
	default:
		fmt.Printf("unknown command %q\n", line)
	}
	return false, nil
}

func runUnlock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	store := infra.NewFileStateStore(cfg.StateFilePath())
	budget := usecase.NewBudgetEnforcer(store, budgetConfig(cfg), logger)

	locked, err := budget.Evaluate()
	if err != nil {
		return err
	}
	if !locked {
		fmt.Println("The budget lock is not engaged; nothing to unlock.")
		return nil
	}

	keyProvider := infra.NewFileKeyProvider(cfg.Storage.DataDir)
	key, err := infra.EnsureKey(keyProvider)
	if err != nil {
		return fmt.Errorf("failed to load secrets key: %w", err)
	}
	secrets, err := infra.NewEncryptedSecretStore(cfg.Storage.DataDir, key)
	if err != nil {
		return fmt.Errorf("failed to open secrets store: %w", err)
	}
	defer secrets.Close()
	if err := infra.SeedUnlockPhrase(secrets, cfg.Budget.UnlockPhrase); err != nil {
		return err
	}

	flow := usecase.NewUnlockFlow(secrets, budget, cfg.UnlockWait(), logger)

	// Interrupting the flow at any point forfeits all progress.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Type the commitment phrase exactly to continue:")
	reader := bufio.NewReader(os.Stdin)
	phrase, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	if !flow.SubmitPhrase(phrase) {
		return fmt.Errorf("that is not the phrase")
	}

	if err := flow.StartWait(); err != nil {
		return err
	}
	fmt.Printf("Phrase accepted. Now wait %d seconds. Interrupting starts over.\n",
		flow.WaitRemainingSeconds())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for flow.WaitRemainingSeconds() > 0 {
		select {
		case <-ticker.C:
			flow.Advance(time.Second)
			remaining := flow.WaitRemainingSeconds()
			if remaining > 0 && remaining%30 == 0 {
				fmt.Printf("%d seconds left...\n", remaining)
			}
		case <-sigChan:
			flow.Leave()
			fmt.Println("\nUnlock flow abandoned. All progress discarded.")
			return nil
		}
	}

	result, err := flow.ConfirmUnlock()
	if err != nil {
		return err
	}
	if !result.Granted {
		fmt.Println("No emergency unlocks left today. Try again tomorrow.")
		return nil
	}
	fmt.Printf("Unlocked until %s. %d emergency unlocks left today.\n",
		result.ExpiresAt.Format(time.Kitchen), result.RemainingToday)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ledger, err := infra.NewBoltLedger(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	summary, err := ledger.Summary()
	if err != nil {
		return err
	}

	fmt.Println("\n=== Focus Stats ===")
	fmt.Printf("XP: %d\n", summary.TotalXP)
	fmt.Printf("Streak: %d days\n", summary.StreakDays)
	fmt.Printf("Sessions completed: %d\n", summary.SessionsCompleted)
	fmt.Printf("Sessions abandoned: %d\n", summary.SessionsAbandoned)
	if len(summary.Badges) > 0 {
		fmt.Println("Badges:")
		for _, b := range summary.Badges {
			fmt.Printf("  - %s\n", b)
		}
	}
	fmt.Println("===================")
	return nil
}

// runShield prints the resolved surface as JSON for shield processes.
func runShield(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := infra.NewFileStateStore(cfg.StateFilePath())
	resolver := shield.NewResolver(store, zap.NewNop())
	surface := resolver.Resolve()

	out := struct {
		Kind          string `json:"kind"`
		FrictionLevel int    `json:"friction_level,omitempty"`
		Degraded      bool   `json:"degraded,omitempty"`
	}{surface.Kind.String(), surface.FrictionLevel, surface.Degraded}

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runShieldDismiss(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := infra.NewFileStateStore(cfg.StateFilePath())
	resolver := shield.NewResolver(store, zap.NewNop())
	if err := resolver.Dismiss(); err != nil {
		return err
	}
	fmt.Println("Friction surface dismissed.")
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	store := infra.NewFileStateStore(cfg.StateFilePath())
	friction := usecase.NewFrictionEngine(store, cfg.Friction.ThresholdMinutes, logger)
	budget := usecase.NewBudgetEnforcer(store, budgetConfig(cfg), logger)

	monitorCfg := daemon.DefaultMonitorConfig(cfg.Storage.SpoolDir)
	monitorCfg.ProsocialEnabled = cfg.Prosocial.Enabled
	if pi, err := cfg.PollInterval(); err == nil {
		monitorCfg.PollInterval = pi
	}
	if hb, err := cfg.HeartbeatInterval(); err == nil {
		monitorCfg.HeartbeatInterval = hb
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	monitor := daemon.NewMonitor(monitorCfg, store, friction, budget, pm, logger)
	return monitor.Run(ctx)
}

func budgetConfig(cfg *config.Config) usecase.BudgetConfig {
	return usecase.BudgetConfig{
		DailyLimitMinutes: cfg.Budget.DailyLimitMinutes,
		MaxUnlocksPerDay:  cfg.Budget.MaxUnlocksPerDay,
		UnlockWindow:      cfg.UnlockWindow(),
	}
}

func createLogger(cfg *config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{cfg.LogPath()}
	zapCfg.ErrorOutputPaths = []string{cfg.LogPath()}
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("frictiond %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
