// Package main is the CLI entry point for prodmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/coder/quartz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/config"
	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
	"github.com/eliteGoblin/focusd/prod_mon/internal/infra"
	"github.com/eliteGoblin/focusd/prod_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "1.0.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prodmon",
	Short: "Productivity monitor - measures active minutes in a target program",
	Long: `prodmon counts mouse clicks while a target program is running and
classifies each minute as productive when it reaches the click threshold.
Hourly reports and status messages are posted to the configured webhooks.

Running without a subcommand is the same as 'prodmon run'.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runMonitor,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor in the foreground",
	Long: `Starts the monitor and blocks until SIGINT or SIGTERM.
Only one monitor runs per user; a second instance waits for the lock
up to intervals.lock_wait and then exits.`,
	RunE: runMonitor,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start prodmon at login",
	Long:  `Installs a LaunchAgent (` + infra.LaunchAgentLabel + `) that runs 'prodmon run' at login.`,
	RunE:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop starting prodmon at login",
	RunE:  runUninstall,
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Show what the monitor will do with the current configuration",
	RunE:  runCapabilities,
}

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Compare the running version with the published one",
	Long:  `Fetches the published version and reports whether an update is available. Nothing is installed.`,
	RunE:  runCheckUpdate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	debugFlag  bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to the TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug mode (verbose console channel, faster aggregation)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(checkUpdateCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	return cfg, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration (%s): %w", configPath, err)
	}

	logger, closeLog, err := infra.NewLogger(infra.LogConfig{Path: cfg.Paths.Log, Debug: cfg.Debug})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer closeLog()

	execPath, err := executablePath()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A relaunched process waits here until the previous one exits.
	lock := infra.NewInstanceLock(cfg.Paths.Lock)
	lockCtx, cancelLock := context.WithTimeout(ctx, cfg.Intervals.LockWait.Duration)
	err = lock.Acquire(lockCtx)
	cancelLock()
	if err != nil {
		logger.Warn("instance lock not acquired", zap.String("lock", lock.Path()), zap.Error(err))
		return err
	}
	defer func() { _ = lock.Release() }()

	logger.Info("prodmon starting",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("config", configPath),
		zap.String("exec", execPath))

	return buildMonitor(cfg, execPath, quartz.NewReal(), logger).Run(ctx)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	execPath, err := executablePath()
	if err != nil {
		return err
	}

	registrar := infra.NewLaunchAgentRegistrar(infra.DefaultLaunchAgentDir(), launchAgentLogPath(cfg), zap.NewNop())
	if err := registrar.Install(execPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Installed LaunchAgent %s\n", registrar.PlistPath())
	fmt.Fprintf(cmd.OutOrStdout(), "prodmon will start at login from %s\n", execPath)
	if missing := cfg.MissingWebhooks(); len(missing) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: no webhook configured for %v in %s\n", missing, configPath)
	}
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registrar := infra.NewLaunchAgentRegistrar(infra.DefaultLaunchAgentDir(), launchAgentLogPath(cfg), zap.NewNop())
	if !registrar.IsInstalled() {
		fmt.Fprintln(cmd.OutOrStdout(), "LaunchAgent is not installed")
		return nil
	}
	if err := registrar.Uninstall(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed LaunchAgent %s\n", registrar.PlistPath())
	return nil
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	summary := usecase.Capabilities(capabilityInfo(cfg))
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration problems:\n%v\n", err)
	}

	if cfg.Webhooks.Console != "" {
		transport := infra.NewWebhookTransport(map[domain.Channel]string{
			domain.ChannelConsole: cfg.Webhooks.Console,
		}, zap.NewNop())
		if !transport.Send(cmd.Context(), domain.ChannelConsole, summary, "") {
			fmt.Fprintln(cmd.OutOrStdout(), "Warning: could not post to the console webhook")
		}
	}
	return nil
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Update.VersionURL == "" {
		return errors.New("update.version_url is not configured")
	}
	execPath, err := executablePath()
	if err != nil {
		return err
	}

	remote := infra.NewHTTPRemote(cfg.Update.VersionURL, cfg.Update.PayloadURL)
	updater := infra.NewUpdater(execPath, Version, remote, remote,
		infra.NewBackupSlot(cfg.Paths.Backup, zap.NewNop()), nil, quartz.NewReal(), zap.NewNop())

	manifest, available, err := updater.Check(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current version: %s | Remote: %s\n", manifest.LocalVersion, manifest.RemoteVersion)
	if available {
		fmt.Fprintln(cmd.OutOrStdout(), "Update available")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Up to date")
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("prodmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// executablePath returns the resolved path of the running binary, which is
// also the artifact the updater replaces.
func executablePath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return p, nil
}

func launchAgentLogPath(cfg config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Paths.Log), "launchd.out")
}
