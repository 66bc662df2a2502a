package domain

import (
	"context"
	"io"
)

// ProcessLister enumerates running processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessLister interface {
	// RunningProcessNames returns the names of all running processes.
	RunningProcessNames(ctx context.Context) ([]string, error)
}

// Transport delivers status messages and files to a named channel.
type Transport interface {
	// Send posts text and/or a file. filePath may be empty. When set, the
	// file is deleted after the attempt whether or not it succeeded.
	Send(ctx context.Context, channel Channel, text, filePath string) bool
}

// ScreenCapturer produces a screenshot file.
// No implementation ships with prodmon; callers treat a nil capturer as
// "text only".
type ScreenCapturer interface {
	// Capture writes a screenshot to a temporary file and returns its path.
	Capture(ctx context.Context) (string, error)
}

// InputSource delivers click events from the host input system.
// No implementation ships with prodmon.
type InputSource interface {
	// Start begins delivering events to handler on the source's own goroutine.
	Start(handler func(ClickInput)) error

	// Stop stops event delivery. Start/Stop pairs are not reusable.
	Stop() error
}

// VersionSource reports the latest published version.
type VersionSource interface {
	// LatestVersion returns the remote MAJOR.MINOR.PATCH string.
	LatestVersion(ctx context.Context) (string, error)
}

// PayloadSource downloads the replacement artifact.
type PayloadSource interface {
	// Download streams the full artifact content into w.
	Download(ctx context.Context, w io.Writer) error
}

// StartupRegistrar registers prodmon to start at login.
type StartupRegistrar interface {
	// Install registers execPath to run at login.
	Install(execPath string) error

	// Uninstall removes the registration.
	Uninstall() error

	// IsInstalled checks if a registration exists.
	IsInstalled() bool
}

// Relauncher starts a fresh, detached instance of the program.
type Relauncher interface {
	Relaunch(execPath string, args ...string) error
}
