package main

import (
	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/config"
	"github.com/eliteGoblin/focusd/prod_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
	"github.com/eliteGoblin/focusd/prod_mon/internal/infra"
	"github.com/eliteGoblin/focusd/prod_mon/internal/usecase"
)

// buildMonitor wires the monitor from a validated configuration.
// No screen capturer or input source is built in, so snapshots are text
// only and click counting stays idle until one is provided.
func buildMonitor(cfg config.Config, execPath string, clock quartz.Clock, logger *zap.Logger) *daemon.Monitor {
	transport := infra.NewWebhookTransport(map[domain.Channel]string{
		domain.ChannelConsole:     cfg.Webhooks.Console,
		domain.ChannelData:        cfg.Webhooks.Data,
		domain.ChannelScreenshots: cfg.Webhooks.Screenshots,
	}, logger.Named("transport"))

	ledger := usecase.NewActivityLedger(cfg.LedgerCapacity, clock)
	aggregator := usecase.NewProductivityAggregator(usecase.AggregatorConfig{
		Threshold: cfg.Threshold,
		Retention: cfg.Retention.Duration,
		Debug:     cfg.Debug,
	}, clock, transport, logger.Named("aggregator"))
	presence := usecase.NewPresenceMonitor(infra.NewProcessLister(), transport, cfg.Targets,
		enumerationPolicy(cfg.EnumerationErrorPolicy), logger.Named("presence"))

	deps := daemon.MonitorDeps{
		Transport:  transport,
		Ledger:     ledger,
		Aggregator: aggregator,
		Presence:   presence,
		Relauncher: infra.NewExecRelauncher(logger.Named("relaunch")),
	}
	if cfg.Update.Enabled {
		remote := infra.NewHTTPRemote(cfg.Update.VersionURL, cfg.Update.PayloadURL)
		backup := infra.NewBackupSlot(cfg.Paths.Backup, logger.Named("backup"))
		deps.Updater = infra.NewUpdater(execPath, Version, remote, remote, backup, transport, clock, logger.Named("updater"))
	}

	return daemon.NewMonitor(monitorConfig(cfg, execPath), deps, clock, logger.Named("monitor"))
}

func monitorConfig(cfg config.Config, execPath string) daemon.MonitorConfig {
	mc := daemon.DefaultMonitorConfig()
	mc.Version = Version
	mc.Debug = cfg.Debug
	mc.Threshold = cfg.Threshold
	mc.Targets = cfg.Targets
	mc.PresenceInterval = cfg.Intervals.Presence.Duration
	mc.AggregationInterval = cfg.AggregationInterval()
	mc.SnapshotInterval = cfg.Intervals.Snapshot.Duration
	mc.UpdateTickInterval = cfg.Intervals.UpdateTick.Duration
	mc.UpdateCheckInterval = cfg.Intervals.UpdateCheck.Duration
	mc.RestartDelay = cfg.Intervals.RestartDelay.Duration
	mc.ShutdownTimeout = cfg.Intervals.ShutdownTimeout.Duration
	mc.ExecPath = execPath
	mc.RelaunchArgs = []string{"run", "--config", configPath}
	if debugFlag {
		mc.RelaunchArgs = append(mc.RelaunchArgs, "--debug")
	}
	return mc
}

func enumerationPolicy(name string) usecase.EnumerationErrorPolicy {
	if name == config.PolicyAssumeStopped {
		return usecase.AssumeStopped
	}
	return usecase.AssumeRunning
}

func capabilityInfo(cfg config.Config) usecase.CapabilityInfo {
	return usecase.CapabilityInfo{
		Version:           Version,
		Debug:             cfg.Debug,
		Threshold:         cfg.Threshold,
		Targets:           cfg.Targets,
		SnapshotInterval:  cfg.Intervals.Snapshot.Duration,
		UpdateInterval:    cfg.Intervals.UpdateCheck.Duration,
		SnapshotsEnabled:  false,
		InputSourceWired:  false,
		AutoUpdateEnabled: cfg.Update.Enabled,
	}
}
