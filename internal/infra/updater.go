package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/coder/quartz"
	"github.com/hashicorp/go-version"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

var (
	// ErrEmptyPayload is returned when the downloaded artifact has no content.
	ErrEmptyPayload = errors.New("downloaded payload is empty")
	// ErrInstallVerify is returned when the installed artifact does not hash
	// to the downloaded content.
	ErrInstallVerify = errors.New("installed artifact does not match download")

	// At most 18 digits per component so every accepted version parses as int64.
	strictVersion = regexp.MustCompile(`^\d{1,18}\.\d{1,18}\.\d{1,18}$`)
)

// IsNewerVersion reports whether remote is strictly greater than local.
// Both must be MAJOR.MINOR.PATCH with components of at most 18 digits;
// anything else is never newer.
func IsNewerVersion(remote, local string) bool {
	if !strictVersion.MatchString(remote) || !strictVersion.MatchString(local) {
		return false
	}
	rv, err := version.NewVersion(remote)
	if err != nil {
		return false
	}
	lv, err := version.NewVersion(local)
	if err != nil {
		return false
	}
	return rv.GreaterThan(lv)
}

// Updater replaces the running artifact with a newer published version.
// Apply walks CHECK, BACKUP, DOWNLOAD, INSTALL and ends in either
// RESTART_SCHEDULE or ROLLBACK. Restarting is left to the caller.
type Updater struct {
	versions       domain.VersionSource
	payload        domain.PayloadSource
	backup         *BackupSlot
	transport      domain.Transport
	artifactPath   string
	currentVersion string
	clock          quartz.Clock
	logger         *zap.Logger

	// replace moves the staged file over the artifact.
	replace func(src, dst string) error
}

// NewUpdater creates an updater for the artifact at artifactPath.
// transport may be nil.
func NewUpdater(
	artifactPath string,
	currentVersion string,
	versions domain.VersionSource,
	payload domain.PayloadSource,
	backup *BackupSlot,
	transport domain.Transport,
	clock quartz.Clock,
	logger *zap.Logger,
) *Updater {
	return &Updater{
		versions:       versions,
		payload:        payload,
		backup:         backup,
		transport:      transport,
		artifactPath:   artifactPath,
		currentVersion: currentVersion,
		clock:          clock,
		logger:         logger,
		replace:        atomic.ReplaceFile,
	}
}

// CurrentVersion returns the version of the running artifact.
func (u *Updater) CurrentVersion() string {
	return u.currentVersion
}

// Check fetches the remote version and reports whether it is newer.
func (u *Updater) Check(ctx context.Context) (domain.UpdateManifest, bool, error) {
	manifest := domain.UpdateManifest{LocalVersion: u.currentVersion}

	remote, err := u.versions.LatestVersion(ctx)
	if err != nil {
		u.logger.Warn("version check failed", zap.Error(err))
		u.notify(ctx, fmt.Sprintf("Version check error: %v", err))
		return manifest, false, fmt.Errorf("failed to check version: %w", err)
	}
	manifest.RemoteVersion = remote

	available := IsNewerVersion(remote, u.currentVersion)
	u.logger.Info("version checked",
		zap.String("current", u.currentVersion),
		zap.String("remote", remote),
		zap.Bool("available", available))
	u.notify(ctx, fmt.Sprintf("Current version: %s | Remote: %s", u.currentVersion, remote))

	return manifest, available, nil
}

// Apply runs one full update attempt.
func (u *Updater) Apply(ctx context.Context) domain.UpdateResult {
	result := domain.UpdateResult{Stage: domain.StageCheck, StartedAt: u.clock.Now()}
	defer func() {
		result.DurationMs = u.clock.Since(result.StartedAt).Milliseconds()
	}()

	manifest, available, err := u.Check(ctx)
	result.Manifest = manifest
	if err != nil {
		result.Err = err
		return result
	}
	if !available {
		return result
	}

	// BACKUP: failure is reported but does not stop the update.
	result.Stage = domain.StageBackup
	if err := u.backup.Save(u.artifactPath); err != nil {
		u.logger.Warn("backup failed, continuing", zap.Error(err))
		u.notify(ctx, fmt.Sprintf("Backup error: %v", err))
	} else {
		result.BackupCreated = true
	}

	result.Stage = domain.StageDownload
	u.notify(ctx, fmt.Sprintf("Downloading version %s", manifest.RemoteVersion))
	staging, stagedHash, err := u.download(ctx)
	if err != nil {
		u.logger.Error("download failed", zap.Error(err))
		u.notify(ctx, fmt.Sprintf("Download error: %v", err))
		result.Err = err
		return result
	}

	result.Stage = domain.StageInstall
	if err := u.install(staging, stagedHash); err != nil {
		_ = os.Remove(staging)
		u.logger.Error("install failed, rolling back", zap.Error(err))
		u.notify(ctx, fmt.Sprintf("Install error: %v", err))
		result.Err = err
		result.Stage = domain.StageRollback
		u.rollback(ctx, &result)
		return result
	}

	result.Stage = domain.StageRestartSchedule
	result.Applied = true
	u.logger.Info("update installed",
		zap.String("from", manifest.LocalVersion),
		zap.String("to", manifest.RemoteVersion))
	u.notify(ctx, fmt.Sprintf("Update installed: %s -> %s, restart scheduled",
		manifest.LocalVersion, manifest.RemoteVersion))
	return result
}

// download streams the payload into a staging file next to the artifact
// and returns its path and hash. On error no staging file is left.
func (u *Updater) download(ctx context.Context) (path, hash string, err error) {
	f, err := os.CreateTemp(filepath.Dir(u.artifactPath), ".prodmon-update-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create staging file: %w", err)
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err = u.payload.Download(ctx, f); err != nil {
		f.Close()
		return "", "", err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return "", "", fmt.Errorf("failed to sync staging file: %w", err)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return "", "", fmt.Errorf("failed to stat staging file: %w", err)
	}
	if info.Size() == 0 {
		err = ErrEmptyPayload
		return "", "", err
	}

	hash, err = computeSHA256(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash staging file: %w", err)
	}
	return path, hash, nil
}

// install moves the staged file over the artifact and verifies the result.
func (u *Updater) install(staging, stagedHash string) error {
	mode := os.FileMode(0o755)
	if info, err := os.Stat(u.artifactPath); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(staging, mode); err != nil {
		return fmt.Errorf("failed to set artifact mode: %w", err)
	}

	if err := u.replace(staging, u.artifactPath); err != nil {
		return fmt.Errorf("failed to replace artifact: %w", err)
	}

	installed, err := computeSHA256(u.artifactPath)
	if err != nil {
		return fmt.Errorf("failed to hash installed artifact: %w", err)
	}
	if installed != stagedHash {
		return ErrInstallVerify
	}
	return nil
}

// rollback restores the backup taken in this attempt. A failed rollback is
// reported only.
func (u *Updater) rollback(ctx context.Context, result *domain.UpdateResult) {
	if !result.BackupCreated {
		result.RollbackFailed = true
		u.logger.Error("rollback impossible, no backup from this attempt")
		u.notify(ctx, "Rollback error: no backup available")
		return
	}

	if err := u.backup.Restore(u.artifactPath); err != nil {
		result.RollbackFailed = true
		u.logger.Error("rollback failed", zap.Error(err))
		u.notify(ctx, fmt.Sprintf("Rollback error: %v", err))
		return
	}

	result.RolledBack = true
	u.logger.Info("rolled back to previous artifact")
	u.notify(ctx, fmt.Sprintf("Rolled back to version %s", u.currentVersion))
}

func (u *Updater) notify(ctx context.Context, msg string) {
	if u.transport != nil {
		u.transport.Send(ctx, domain.ChannelConsole, msg, "")
	}
}
