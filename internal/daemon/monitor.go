// Package daemon runs the productivity monitor: its shared run-state and
// periodic workers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
	"github.com/eliteGoblin/focusd/prod_mon/internal/usecase"
)

var (
	// ErrJoinTimeout is returned by Shutdown when workers did not stop in time.
	ErrJoinTimeout = errors.New("workers did not stop before the join timeout")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("monitor already started")
)

const (
	workerPresence    = "presence"
	workerAggregation = "aggregation"
	workerSnapshot    = "snapshot"
	workerUpdate      = "update"

	clickDebugEvery = 50
	heartbeatEvery  = 5 // minutes
)

// Updater is the part of the self-updater the monitor drives.
type Updater interface {
	Check(ctx context.Context) (domain.UpdateManifest, bool, error)
	Apply(ctx context.Context) domain.UpdateResult
}

// MonitorConfig holds monitor settings.
type MonitorConfig struct {
	Version   string
	Debug     bool
	Threshold int
	Targets   []string

	PresenceInterval    time.Duration
	AggregationInterval time.Duration
	SnapshotInterval    time.Duration
	UpdateTickInterval  time.Duration // how often the update worker wakes up
	UpdateCheckInterval time.Duration // minimum time between update attempts
	RestartDelay        time.Duration
	ShutdownTimeout     time.Duration

	// ExecPath and RelaunchArgs start the replacement process after an update.
	ExecPath     string
	RelaunchArgs []string
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Threshold:           usecase.DefaultThreshold,
		PresenceInterval:    usecase.DefaultPresenceInterval,
		AggregationInterval: 30 * time.Second,
		SnapshotInterval:    600 * time.Second,
		UpdateTickInterval:  time.Hour,
		UpdateCheckInterval: 24 * time.Hour,
		RestartDelay:        30 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		RelaunchArgs:        []string{"run"},
	}
}

// MonitorDeps are the collaborators of a Monitor. Updater, Relauncher,
// Capturer and Input are optional.
type MonitorDeps struct {
	Transport  domain.Transport
	Ledger     *usecase.ActivityLedger
	Aggregator *usecase.ProductivityAggregator
	Presence   *usecase.PresenceMonitor
	Updater    Updater
	Relauncher domain.Relauncher
	Capturer   domain.ScreenCapturer
	Input      domain.InputSource
}

// Monitor owns the run-state shared by the input listener and the four
// periodic workers.
type Monitor struct {
	config MonitorConfig
	deps   MonitorDeps
	clock  quartz.Clock
	logger *zap.Logger

	sessionID  string
	scheduler  *Scheduler
	running    *atomic.Bool
	monitoring *atomic.Bool
	started    *atomic.Bool

	// workCtx is detached from shutdown so in-flight network calls finish.
	workCtx context.Context
	group   errgroup.Group
	stop    chan struct{}

	stopRequested chan struct{}
	requestOnce   sync.Once
	shutdownOnce  sync.Once
	shutdownErr   error

	mu               sync.Mutex
	lastUpdateCheck  time.Time
	lastReportedHour int
	lastHeartbeat    string
	panicReported    map[string]bool
	workers          []string
}

// NewMonitor creates a monitor. Call Start or Run to begin.
func NewMonitor(config MonitorConfig, deps MonitorDeps, clock quartz.Clock, logger *zap.Logger) *Monitor {
	return &Monitor{
		config:           config,
		deps:             deps,
		clock:            clock,
		logger:           logger,
		sessionID:        uuid.NewString(),
		scheduler:        NewScheduler(clock, logger),
		running:          atomic.NewBool(false),
		monitoring:       atomic.NewBool(false),
		started:          atomic.NewBool(false),
		workCtx:          context.Background(),
		stop:             make(chan struct{}),
		stopRequested:    make(chan struct{}),
		lastReportedHour: -1,
		panicReported:    make(map[string]bool),
	}
}

// SessionID identifies this monitoring session in reports.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

// Running reports whether the monitor is running.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// MonitoringActive reports whether a target program is currently running.
func (m *Monitor) MonitoringActive() bool {
	return m.monitoring.Load()
}

// Scheduler returns the monitor's scheduler.
func (m *Monitor) Scheduler() *Scheduler {
	return m.scheduler
}

// Workers returns the names of the started periodic workers. The update
// worker only exists when an updater is wired.
func (m *Monitor) Workers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.workers...)
}

// StopRequested is closed when the monitor asks to be stopped, for example
// after handing off to an updated process.
func (m *Monitor) StopRequested() <-chan struct{} {
	return m.stopRequested
}

func (m *Monitor) requestStop() {
	m.requestOnce.Do(func() { close(m.stopRequested) })
}

func (m *Monitor) validate() error {
	var errs []error
	if m.deps.Transport == nil {
		errs = append(errs, errors.New("transport is required"))
	}
	if m.deps.Ledger == nil {
		errs = append(errs, errors.New("ledger is required"))
	}
	if m.deps.Aggregator == nil {
		errs = append(errs, errors.New("aggregator is required"))
	}
	if m.deps.Presence == nil {
		errs = append(errs, errors.New("presence monitor is required"))
	}
	intervals := map[string]time.Duration{
		workerPresence:     m.config.PresenceInterval,
		workerAggregation:  m.config.AggregationInterval,
		workerSnapshot:     m.config.SnapshotInterval,
		workerUpdate:       m.config.UpdateTickInterval,
		"update check":     m.config.UpdateCheckInterval,
		"restart delay":    m.config.RestartDelay,
		"shutdown timeout": m.config.ShutdownTimeout,
	}
	for name, d := range intervals {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s interval must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// Start validates the collaborators, runs the startup checks, starts the
// input listener and launches the workers. It does not block.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.validate(); err != nil {
		if m.deps.Transport != nil {
			m.deps.Transport.Send(ctx, domain.ChannelConsole, "ERROR: "+err.Error(), "")
		}
		return fmt.Errorf("invalid monitor setup: %w", err)
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	m.workCtx = context.WithoutCancel(ctx)
	m.running.Store(true)

	m.logger.Info("monitor starting",
		zap.String("session", m.sessionID),
		zap.String("version", m.config.Version),
		zap.Bool("debug", m.config.Debug))
	m.console(usecase.StartupMessage(m.clock.Now(), m.config.Version, m.config.Debug))

	// Startup check only reports. lastUpdateCheck stays zero so the first
	// update tick applies.
	if m.deps.Updater != nil {
		m.debugLog("checking for updates at startup")
		if _, available, err := m.deps.Updater.Check(m.workCtx); err == nil && available {
			m.console("Update available")
		}
	}

	m.presenceTick(m.workCtx)

	if m.deps.Input != nil {
		if err := m.deps.Input.Start(m.HandleClick); err != nil {
			m.logger.Error("input listener failed to start", zap.Error(err))
			m.console(fmt.Sprintf("Input listener error: %v", err))
		} else {
			m.debugLog("input listener started")
		}
	}

	m.startWorker(workerPresence, m.config.PresenceInterval, m.presenceTick)
	m.startWorker(workerAggregation, m.config.AggregationInterval, m.aggregationTick)
	m.startWorker(workerSnapshot, m.config.SnapshotInterval, m.snapshotTick)
	if m.deps.Updater != nil {
		m.startWorker(workerUpdate, m.config.UpdateTickInterval, m.updateTick)
	}

	m.logger.Info("all workers started", zap.Strings("workers", m.Workers()))
	m.debugLog("all workers started")
	return nil
}

// Run starts the monitor and blocks until ctx is done or a stop is
// requested, then shuts down.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		m.logger.Info("received shutdown signal")
	case <-m.stopRequested:
		m.logger.Info("stop requested")
	}

	return m.Shutdown()
}

// startWorker runs tick every interval until shutdown. tick returns false
// to end its worker.
func (m *Monitor) startWorker(name string, interval time.Duration, tick func(context.Context) bool) {
	m.mu.Lock()
	m.workers = append(m.workers, name)
	m.mu.Unlock()

	ticker := m.clock.NewTicker(interval, "monitor", name)
	m.group.Go(func() error {
		defer ticker.Stop()
		m.debugLog("worker started: " + name)
		for {
			select {
			case <-m.stop:
				return nil
			case <-ticker.C:
				if !m.running.Load() {
					return nil
				}
				if !m.guard(name, tick) {
					m.logger.Info("worker finished", zap.String("worker", name))
					return nil
				}
			}
		}
	})
}

// guard runs one tick inside a recover boundary. A panic is logged, reported
// once per worker, and the worker keeps going.
func (m *Monitor) guard(name string, tick func(context.Context) bool) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			cont = true
			m.logger.Error("worker panic recovered",
				zap.String("worker", name),
				zap.Any("panic", r),
				zap.Stack("stack"))

			m.mu.Lock()
			first := !m.panicReported[name]
			m.panicReported[name] = true
			m.mu.Unlock()
			if first {
				m.console(fmt.Sprintf("Worker %s error: %v", name, r))
			}
		}
	}()
	return tick(m.workCtx)
}

// HandleClick records a pressed click while a target program is running.
func (m *Monitor) HandleClick(in domain.ClickInput) {
	if !in.Pressed || !m.running.Load() || !m.monitoring.Load() {
		return
	}
	ev := m.deps.Ledger.Record(in.Position, in.Button)
	if m.config.Debug && ev.Sequence%clickDebugEvery == 0 {
		m.debugLog(fmt.Sprintf("%d clicks total", ev.Sequence))
	}
}

func (m *Monitor) presenceTick(ctx context.Context) bool {
	tr := m.deps.Presence.Check(ctx)
	m.monitoring.Store(tr.Running)
	if tr.Changed {
		if tr.Running {
			m.console("Monitoring ACTIVE")
		} else {
			m.console("Target program closed, monitoring PAUSED")
		}
	}
	return true
}

// aggregationTick classifies the previous full minute. Running it more than
// once per minute is harmless: AnalyzeMinute ignores a repeated key.
func (m *Monitor) aggregationTick(ctx context.Context) bool {
	now := m.clock.Now()
	prev := domain.PreviousMinute(now)
	key := domain.MinuteKey(prev)
	clicks := m.deps.Ledger.Query(prev, prev.Add(time.Minute))

	m.deps.Aggregator.AnalyzeMinute(key, len(clicks))
	m.deps.Aggregator.CleanupOldData()

	m.mu.Lock()
	sendReport := now.Minute() == 0 && now.Hour() != m.lastReportedHour
	if sendReport {
		m.lastReportedHour = now.Hour()
	}
	heartbeat := m.config.Debug && now.Minute()%heartbeatEvery == 0 && m.lastHeartbeat != domain.MinuteKey(now)
	if heartbeat {
		m.lastHeartbeat = domain.MinuteKey(now)
	}
	m.mu.Unlock()

	if sendReport {
		m.SendReport(ctx)
	}
	if heartbeat {
		m.debugLog(fmt.Sprintf("Heartbeat - clicks: %d, active: %t",
			m.deps.Ledger.TotalClicks(), m.monitoring.Load()))
	}
	return true
}

// SendReport sends the productivity report to the data channel.
func (m *Monitor) SendReport(ctx context.Context) {
	report := m.deps.Aggregator.Report()
	text := usecase.ProductivityReport(report, m.SessionStats(), usecase.ReportOptions{
		Threshold: m.config.Threshold,
		Targets:   m.config.Targets,
		Version:   m.config.Version,
		Debug:     m.config.Debug,
	})
	if !m.deps.Transport.Send(ctx, domain.ChannelData, text, "") {
		m.logger.Debug("report not delivered")
	}
	m.debugLog(fmt.Sprintf("Report sent - %d productive minutes", report.TotalProductiveMinutes))
}

func (m *Monitor) snapshotTick(ctx context.Context) bool {
	if !m.monitoring.Load() {
		return true
	}

	var path string
	if m.deps.Capturer != nil {
		p, err := m.deps.Capturer.Capture(ctx)
		if err != nil {
			m.logger.Warn("capture failed", zap.Error(err))
			m.console(fmt.Sprintf("Capture error: %v", err))
			return true
		}
		path = p
	}

	caption := usecase.ActivitySummary(m.deps.Aggregator.Report(), m.SessionStats(), m.monitoring.Load())
	m.deps.Transport.Send(ctx, domain.ChannelScreenshots, caption, path)
	return true
}

// updateTick applies an update when UpdateCheckInterval has passed since
// the last attempt. After a successful update it schedules the relaunch and
// ends the worker.
func (m *Monitor) updateTick(ctx context.Context) bool {
	now := m.clock.Now()

	m.mu.Lock()
	due := m.lastUpdateCheck.IsZero() || now.Sub(m.lastUpdateCheck) >= m.config.UpdateCheckInterval
	if due {
		m.lastUpdateCheck = now
	}
	m.mu.Unlock()
	if !due {
		return true
	}

	m.debugLog("automatic update check")
	result := m.deps.Updater.Apply(ctx)
	m.logger.Info("update attempt finished",
		zap.String("stage", string(result.Stage)),
		zap.Bool("applied", result.Applied),
		zap.Bool("rolled_back", result.RolledBack),
		zap.Error(result.Err))
	if !result.Applied {
		return true
	}

	m.scheduleRestart()
	return false
}

func (m *Monitor) scheduleRestart() {
	_, ok := m.scheduler.Schedule("restart", m.config.RestartDelay, func() {
		m.console("Applying update, restarting")
		if m.deps.Relauncher != nil && m.config.ExecPath != "" {
			if err := m.deps.Relauncher.Relaunch(m.config.ExecPath, m.config.RelaunchArgs...); err != nil {
				m.logger.Error("relaunch failed", zap.Error(err))
				m.console(fmt.Sprintf("Restart error: %v", err))
			}
		}
		m.requestStop()
	})
	if !ok {
		m.logger.Warn("restart not scheduled, monitor is shutting down")
	}
}

// Shutdown stops the input listener, cancels scheduled tasks, waits up to
// ShutdownTimeout for the workers and sends the final summary. Calling it
// more than once is a no-op.
func (m *Monitor) Shutdown() error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.shutdown()
	})
	return m.shutdownErr
}

func (m *Monitor) shutdown() error {
	wasRunning := m.running.Swap(false)
	if !m.started.Load() || !wasRunning {
		return nil
	}
	close(m.stop)

	if m.deps.Input != nil {
		if err := m.deps.Input.Stop(); err != nil {
			m.logger.Warn("failed to stop input listener", zap.Error(err))
		} else {
			m.debugLog("input listener stopped")
		}
	}

	if n := m.scheduler.CancelAll(); n > 0 {
		m.logger.Info("cancelled scheduled tasks", zap.Int("count", n))
	}

	var joinErr error
	done := make(chan struct{})
	go func() {
		_ = m.group.Wait()
		close(done)
	}()
	timer := m.clock.NewTimer(m.config.ShutdownTimeout, "monitor", "join")
	select {
	case <-done:
		timer.Stop()
	case <-timer.C:
		joinErr = ErrJoinTimeout
		m.logger.Warn("workers still running after join timeout",
			zap.Duration("timeout", m.config.ShutdownTimeout))
	}

	report := m.deps.Aggregator.Report()
	m.console(usecase.FinalSummary(m.clock.Now(), report, m.SessionStats()))
	m.logger.Info("monitor stopped", zap.String("session", m.sessionID))
	return joinErr
}

// SessionStats returns statistics of the current session.
func (m *Monitor) SessionStats() domain.SessionStats {
	return domain.SessionStats{
		SessionID:   m.sessionID,
		Duration:    m.deps.Ledger.SessionDuration(),
		TotalClicks: m.deps.Ledger.TotalClicks(),
		LedgerSize:  m.deps.Ledger.Len(),
	}
}

func (m *Monitor) console(msg string) {
	if !m.deps.Transport.Send(m.workCtx, domain.ChannelConsole, msg, "") {
		m.logger.Debug("console message not delivered", zap.String("msg", msg))
	}
}

// debugLog echoes diagnostics to the console channel in debug mode.
func (m *Monitor) debugLog(msg string) {
	m.logger.Debug(msg)
	if m.config.Debug {
		m.console("DEBUG: " + msg)
	}
}
