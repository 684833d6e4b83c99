// Package daemon implements the monitor daemon that consumes usage
// events and keeps the shared state current across day boundaries.
package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/frictionlabs/frictiond/internal/domain"
	"github.com/frictionlabs/frictiond/internal/usecase"
)

// MonitorConfig holds monitor daemon configuration.
type MonitorConfig struct {
	SpoolDir          string
	PollInterval      time.Duration // How often to re-scan the spool for events fsnotify missed
	HeartbeatInterval time.Duration // How often to refresh the liveness heartbeat
	RolloverInterval  time.Duration // How often to check for a day boundary
	ProsocialEnabled  bool
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig(spoolDir string) MonitorConfig {
	return MonitorConfig{
		SpoolDir:          spoolDir,
		PollInterval:      time.Second,
		HeartbeatInterval: 30 * time.Second,
		RolloverInterval:  time.Minute,
	}
}

// Monitor is the long-running event daemon. It watches the spool
// directory for dropped usage events, dispatches them to the friction
// engine and budget enforcer, and performs the daily rollover that
// resets friction levels and budget counters at local midnight.
type Monitor struct {
	config   MonitorConfig
	state    domain.State
	friction *usecase.FrictionEngine
	budget   *usecase.BudgetEnforcer
	pm       domain.ProcessManager
	logger   *zap.Logger
	now      func() time.Time
}

// NewMonitor creates a monitor daemon.
func NewMonitor(
	config MonitorConfig,
	store domain.StateStore,
	friction *usecase.FrictionEngine,
	budget *usecase.BudgetEnforcer,
	pm domain.ProcessManager,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:   config,
		state:    domain.State{Store: store},
		friction: friction,
		budget:   budget,
		pm:       pm,
		logger:   logger,
		now:      time.Now,
	}
}

// Run starts the monitor loop. This blocks until context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.register(); err != nil {
		m.logger.Error("failed to register monitor", zap.Error(err))
		return err
	}

	m.logger.Info("monitor daemon started",
		zap.Int("pid", m.pm.GetCurrentPID()),
		zap.String("spool_dir", m.config.SpoolDir))

	// Catch up on rollover and anything spooled while we were down.
	m.runRollover()
	m.drainSpool()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(m.config.SpoolDir); err != nil {
		return err
	}

	pollTicker := time.NewTicker(m.config.PollInterval)
	heartbeatTicker := time.NewTicker(m.config.HeartbeatInterval)
	rolloverTicker := time.NewTicker(m.config.RolloverInterval)
	defer func() {
		pollTicker.Stop()
		heartbeatTicker.Stop()
		rolloverTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor daemon stopping")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writers create a temp file then rename it in, so the
			// finished file shows up as Create.
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				m.consumeSpoolFile(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("spool watch error", zap.Error(err))

		// fsnotify can drop events under load; a periodic re-scan
		// keeps the spool from silently backing up.
		case <-pollTicker.C:
			m.drainSpool()

		case <-heartbeatTicker.C:
			if err := m.heartbeat(); err != nil {
				m.logger.Warn("failed to update heartbeat", zap.Error(err))
			}

		case <-rolloverTicker.C:
			m.runRollover()
		}
	}
}

// register publishes our PID and first heartbeat to the shared store so
// other processes can tell whether a monitor is alive.
func (m *Monitor) register() error {
	if err := m.state.Store.SetInt(domain.KeyMonitorPID, int64(m.pm.GetCurrentPID())); err != nil {
		return err
	}
	if m.config.ProsocialEnabled {
		if err := m.state.Store.SetBool(domain.KeyProsocialEnabled, true); err != nil {
			return err
		}
	}
	return m.heartbeat()
}

func (m *Monitor) heartbeat() error {
	return m.state.Store.SetInt(domain.KeyMonitorHeartbeat, m.now().Unix())
}

// drainSpool processes every event file already sitting in the spool.
func (m *Monitor) drainSpool() {
	entries, err := os.ReadDir(m.config.SpoolDir)
	if err != nil {
		m.logger.Error("failed to read spool directory", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m.consumeSpoolFile(filepath.Join(m.config.SpoolDir, entry.Name()))
	}
}

// consumeSpoolFile dispatches one event file and removes it. Only files
// ending in ".json" are events: writers stage temp files under other
// names in the same directory before renaming them in, and touching one
// of those mid-flight would race the writer's rename. Unparsable event
// files are renamed aside rather than deleted so they can be inspected;
// the ".bad" name falls outside the suffix so they are never retried.
func (m *Monitor) consumeSpoolFile(path string) {
	if !strings.HasSuffix(path, spoolSuffix) {
		return
	}

	ev, err := ParseSpoolFile(path)
	if err != nil {
		m.logger.Warn("discarding bad spool file", zap.String("path", path), zap.Error(err))
		if renameErr := os.Rename(path, path+".bad"); renameErr != nil && !os.IsNotExist(renameErr) {
			m.logger.Warn("failed to set aside bad spool file", zap.Error(renameErr))
		}
		return
	}

	if err := m.dispatch(ev); err != nil {
		// Keep the file; dispatch failures are store-level and a later
		// drain can retry once the store is healthy again.
		m.logger.Error("failed to dispatch event",
			zap.String("type", ev.Type), zap.Error(err))
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove consumed spool file", zap.Error(err))
	}
}

func (m *Monitor) dispatch(ev SpoolEvent) error {
	m.logger.Debug("dispatching event",
		zap.String("type", ev.Type), zap.Int("minutes", ev.Minutes))

	switch {
	case ev.Type == EventUsage:
		return m.budget.AddUsage(ev.Minutes)

	case ev.Type == domain.EventBudgetExceeded:
		return m.budget.RecordBudgetExceeded()

	case ev.Type == domain.EventTextThresholdReached:
		if !m.config.ProsocialEnabled {
			m.logger.Debug("prosocial disabled, ignoring text threshold event")
			return nil
		}
		return m.state.Store.SetBool(domain.KeyProsocialTextThresholdReached, true)

	default:
		level, err := usecase.ParseThresholdLevel(ev.Type)
		if err != nil {
			return err
		}
		return m.friction.OnUsageThresholdReached(level)
	}
}

// runRollover lets the budget enforcer notice a new local day and, when
// the day changed, resets the friction interval alongside it.
func (m *Monitor) runRollover() {
	before, err := m.state.BudgetDateKey()
	if err != nil {
		m.logger.Error("rollover: failed to read date key", zap.Error(err))
		return
	}

	today := domain.DateKey(m.now())
	if before == today {
		return
	}

	m.logger.Info("day boundary crossed",
		zap.String("from", before), zap.String("to", today))

	if err := m.budget.ResetDaily(today); err != nil {
		m.logger.Error("rollover: budget reset failed", zap.Error(err))
		return
	}
	if err := m.friction.OnIntervalEnd(); err != nil {
		m.logger.Error("rollover: friction reset failed", zap.Error(err))
	}
	if err := m.state.Store.Delete(domain.KeyProsocialTextThresholdReached); err != nil {
		m.logger.Warn("rollover: failed to clear prosocial flag", zap.Error(err))
	}
}
