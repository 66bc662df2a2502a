package infra

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// ErrNoBackup is returned when restoring from an empty slot.
var ErrNoBackup = errors.New("backup slot is empty")

// BackupSlot is a single-slot copy of the previously deployed artifact.
// Each Save overwrites the previous content.
type BackupSlot struct {
	path   string
	logger *zap.Logger
}

// NewBackupSlot creates a backup slot stored at path.
func NewBackupSlot(path string, logger *zap.Logger) *BackupSlot {
	return &BackupSlot{path: path, logger: logger}
}

// Path returns the slot file location.
func (b *BackupSlot) Path() string {
	return b.path
}

// Exists reports whether the slot holds a backup.
func (b *BackupSlot) Exists() bool {
	info, err := os.Stat(b.path)
	return err == nil && info.Mode().IsRegular()
}

// Save copies src and its permission bits into the slot. The slot file is
// written atomically, so a failed save leaves the previous backup intact.
func (b *BackupSlot) Save(src string) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	if err := copyFile(src, b.path); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	// The slot keeps the source permissions so Restore can put them back.
	if err := os.Chmod(b.path, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set backup mode: %w", err)
	}

	b.logger.Info("backup saved", zap.String("source", src), zap.String("slot", b.path))
	return nil
}

// Restore copies the slot content and permission bits over dst.
func (b *BackupSlot) Restore(dst string) error {
	info, err := os.Stat(b.path)
	if err != nil || !info.Mode().IsRegular() {
		return ErrNoBackup
	}
	if err := copyFile(b.path, dst); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set restored mode: %w", err)
	}

	b.logger.Info("backup restored", zap.String("slot", b.path), zap.String("target", dst))
	return nil
}

// Checksum returns the SHA-256 of the slot content.
func (b *BackupSlot) Checksum() (string, error) {
	return computeSHA256(b.path)
}

// computeSHA256 calculates SHA256 hash of a file
func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies src to dst through a temp file in dst's directory
// followed by a rename, so readers never see a partial dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	return atomic.WriteFile(dst, sourceFile)
}
