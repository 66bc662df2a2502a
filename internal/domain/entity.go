// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Channel names a destination on the message transport.
type Channel string

const (
	ChannelConsole     Channel = "console"
	ChannelData        Channel = "data"
	ChannelScreenshots Channel = "screenshots"
)

// Position is a screen coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ClickInput is a raw event delivered by an InputSource.
type ClickInput struct {
	Position Position
	Button   string
	Pressed  bool // false for button release
}

// ClickEvent is a recorded click. Immutable once recorded.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"click_number"`
	Position  Position  `json:"position"`
	Button    string    `json:"button"`
}

// HourStat is one entry of the hourly rollup.
type HourStat struct {
	Hour    int `json:"hour"`
	Minutes int `json:"minutes"`
}

// Report is a point-in-time snapshot of productivity.
type Report struct {
	GeneratedAt            time.Time  `json:"generated_at"`
	CurrentHour            int        `json:"current_hour"`
	CurrentHourMinutes     int        `json:"current_hour_minutes"`
	ProductivityPercentage float64    `json:"productivity_percentage"`
	AvgLast3Hours          float64    `json:"avg_last_3_hours"`
	TotalProductiveMinutes int        `json:"total_productive_minutes"`
	HourlyBreakdown        []HourStat `json:"hourly_breakdown"`
}

// SessionStats describes the current monitoring session.
type SessionStats struct {
	SessionID   string
	Duration    time.Duration
	TotalClicks int64
	LedgerSize  int
}

// PresenceState tracks whether a target program is running.
type PresenceState struct {
	Running      bool
	EverDetected bool
}

// UpdateStage is a state of the self-update state machine.
type UpdateStage string

const (
	StageCheck           UpdateStage = "CHECK"
	StageBackup          UpdateStage = "BACKUP"
	StageDownload        UpdateStage = "DOWNLOAD"
	StageInstall         UpdateStage = "INSTALL"
	StageRestartSchedule UpdateStage = "RESTART_SCHEDULE"
	StageRollback        UpdateStage = "ROLLBACK"
)

// UpdateManifest pairs the running version with the advertised one.
type UpdateManifest struct {
	LocalVersion  string
	RemoteVersion string
}

// UpdateResult captures what happened during a single update attempt.
type UpdateResult struct {
	Stage          UpdateStage // last stage reached
	Manifest       UpdateManifest
	Applied        bool // new artifact installed, restart required
	RolledBack     bool
	RollbackFailed bool
	BackupCreated  bool
	Err            error
	StartedAt      time.Time
	DurationMs     int64
}
