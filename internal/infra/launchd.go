package infra

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

// LaunchAgentLabel is the launchd label of the login item.
const LaunchAgentLabel = "com.focusd.prodmon"

// LaunchAgent plist template (runs as user)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>`

type plistConfig struct {
	Label          string
	ExecutablePath string
	LogPath        string
}

// LaunchAgentRegistrar implements domain.StartupRegistrar with a user LaunchAgent.
type LaunchAgentRegistrar struct {
	plistDir  string
	plistPath string
	logPath   string
	logger    *zap.Logger

	// launchctl runs launchctl with the given arguments.
	launchctl func(args ...string) error
}

// NewLaunchAgentRegistrar creates a registrar writing into plistDir
// (normally ~/Library/LaunchAgents). logPath receives the agent's stdout/stderr.
func NewLaunchAgentRegistrar(plistDir, logPath string, logger *zap.Logger) *LaunchAgentRegistrar {
	return &LaunchAgentRegistrar{
		plistDir:  plistDir,
		plistPath: filepath.Join(plistDir, LaunchAgentLabel+".plist"),
		logPath:   logPath,
		logger:    logger,
		launchctl: runLaunchctl,
	}
}

// DefaultLaunchAgentDir returns ~/Library/LaunchAgents.
func DefaultLaunchAgentDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents")
}

// generatePlistContent creates plist content for the given exec path.
func (m *LaunchAgentRegistrar) generatePlistContent(execPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchAgentLabel,
		ExecutablePath: execPath,
		LogPath:        m.logPath,
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}

	return buf.Bytes(), nil
}

// Install writes and loads the LaunchAgent. Reinstalling replaces it.
func (m *LaunchAgentRegistrar) Install(execPath string) error {
	if err := os.MkdirAll(m.plistDir, 0o755); err != nil {
		return err
	}

	content, err := m.generatePlistContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate plist content: %w", err)
	}

	if m.IsInstalled() {
		_ = m.launchctl("unload", m.plistPath)
	}
	if err := atomic.WriteFile(m.plistPath, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write plist: %w", err)
	}
	_ = os.Chmod(m.plistPath, 0o644)

	if err := m.launchctl("load", m.plistPath); err != nil {
		return fmt.Errorf("failed to load launch agent: %w", err)
	}
	m.logger.Info("launch agent installed", zap.String("plist", m.plistPath))
	return nil
}

// Uninstall unloads and removes the LaunchAgent.
func (m *LaunchAgentRegistrar) Uninstall() error {
	// Unload first (ignore errors if not loaded)
	_ = m.launchctl("unload", m.plistPath)

	if err := os.Remove(m.plistPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.logger.Info("launch agent removed", zap.String("plist", m.plistPath))
	return nil
}

// IsInstalled checks if plist is installed.
func (m *LaunchAgentRegistrar) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// PlistPath returns the plist file path.
func (m *LaunchAgentRegistrar) PlistPath() string {
	return m.plistPath
}

func runLaunchctl(args ...string) error {
	out, err := exec.Command("launchctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl %v: %w: %s", args, err, bytes.TrimSpace(out))
	}
	return nil
}

// Ensure LaunchAgentRegistrar implements domain.StartupRegistrar.
var _ domain.StartupRegistrar = (*LaunchAgentRegistrar)(nil)
