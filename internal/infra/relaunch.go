package infra

import (
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

// ExecRelauncher starts a detached copy of the program. The child gets its
// own session and no controlling terminal, so it outlives the parent.
type ExecRelauncher struct {
	logger *zap.Logger
}

// NewExecRelauncher creates a relauncher.
func NewExecRelauncher(logger *zap.Logger) *ExecRelauncher {
	return &ExecRelauncher{logger: logger}
}

// Relaunch starts execPath with args and returns once the child is running.
func (r *ExecRelauncher) Relaunch(execPath string, args ...string) error {
	if _, err := os.Stat(execPath); err != nil {
		return fmt.Errorf("relaunch target unavailable: %w", err)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = "/"
	cmd.Env = os.Environ()
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", execPath, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		r.logger.Warn("failed to release child process", zap.Int("pid", pid), zap.Error(err))
	}

	r.logger.Info("relaunched", zap.String("path", execPath), zap.Int("pid", pid))
	return nil
}

// Ensure ExecRelauncher implements domain.Relauncher.
var _ domain.Relauncher = (*ExecRelauncher)(nil)
