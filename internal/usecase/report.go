package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

const (
	chartHours = 8
	barWidth   = 20
)

// ReportOptions carries the settings echoed in the hourly report.
type ReportOptions struct {
	Threshold int
	Targets   []string
	Version   string
	Debug     bool
}

// ProductivityReport renders the hourly report sent to the data channel.
func ProductivityReport(r domain.Report, stats domain.SessionStats, opts ReportOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Productivity report - %s**\n\n", r.GeneratedAt.Format("15:04"))

	fmt.Fprintf(&b, "**Current hour (%dh):**\n", r.CurrentHour)
	fmt.Fprintf(&b, "├ Productive minutes: %d/60\n", r.CurrentHourMinutes)
	fmt.Fprintf(&b, "└ Percentage: %.1f%%\n\n", r.ProductivityPercentage)

	b.WriteString("**Session:**\n")
	fmt.Fprintf(&b, "├ Duration: %.1fh\n", stats.Duration.Hours())
	fmt.Fprintf(&b, "├ Average last 3 hours: %.1f min/h\n", r.AvgLast3Hours)
	fmt.Fprintf(&b, "├ Total: %d productive minutes\n", r.TotalProductiveMinutes)
	fmt.Fprintf(&b, "└ Total clicks: %d\n\n", stats.TotalClicks)

	b.WriteString("**Configuration:**\n")
	fmt.Fprintf(&b, "├ Threshold: %d clicks/minute\n", opts.Threshold)
	fmt.Fprintf(&b, "├ Programs: %s\n", targetList(opts.Targets))
	fmt.Fprintf(&b, "└ Version: %s", opts.Version)

	if opts.Debug {
		b.WriteString("\n\n**Debug:**\n")
		fmt.Fprintf(&b, "├ Ledger size: %d entries\n", stats.LedgerSize)
		fmt.Fprintf(&b, "└ Session: %s", stats.SessionID)
	}

	fmt.Fprintf(&b, "\n\n**Hourly activity (last %d hours):**", chartHours)
	b.WriteString(HourlyChart(r.HourlyBreakdown))

	return b.String()
}

// HourlyChart renders one bar per hour for the highest chartHours hours
// of the breakdown, which is sorted by hour of day.
func HourlyChart(breakdown []domain.HourStat) string {
	if len(breakdown) == 0 {
		return "\n(no data yet)"
	}
	recent := breakdown
	if len(recent) > chartHours {
		recent = recent[len(recent)-chartHours:]
	}

	var b strings.Builder
	for _, h := range recent {
		pct := round1(float64(h.Minutes) / 60 * 100)
		filled := int(math.Min(pct/5, barWidth))
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		fmt.Fprintf(&b, "\n%02dh: %02d/60 min (%4.1f%%) %s", h.Hour, h.Minutes, pct, bar)
	}
	return b.String()
}

// ActivitySummary is the one-line caption attached to snapshots.
func ActivitySummary(r domain.Report, stats domain.SessionStats, monitoring bool) string {
	status := "inactive"
	if monitoring {
		status = "active"
	}
	return fmt.Sprintf("Session: %.1fh | Clicks: %d | Hour: %d/60 min (%.1f%%) | Total: %d min | Status: %s",
		stats.Duration.Hours(), stats.TotalClicks,
		r.CurrentHourMinutes, r.ProductivityPercentage,
		r.TotalProductiveMinutes, status)
}

// FinalSummary is sent once when the monitor shuts down.
func FinalSummary(at time.Time, r domain.Report, stats domain.SessionStats) string {
	return fmt.Sprintf("Session ended %s - %d clicks total, %d productive minutes, duration: %.1fh",
		at.Format("15:04"), stats.TotalClicks, r.TotalProductiveMinutes, stats.Duration.Hours())
}

// StartupMessage announces a new session on the console channel.
func StartupMessage(at time.Time, version string, debug bool) string {
	msg := fmt.Sprintf("Monitor started v%s", version)
	if debug {
		msg += " [debug]"
	}
	return msg + " - " + at.Format("15:04")
}

// CapabilityInfo describes what a running monitor would do.
type CapabilityInfo struct {
	Version           string
	Debug             bool
	Threshold         int
	Targets           []string
	SnapshotInterval  time.Duration
	UpdateInterval    time.Duration
	SnapshotsEnabled  bool
	InputSourceWired  bool
	AutoUpdateEnabled bool
}

// Capabilities renders the capability summary for the console channel.
func Capabilities(c CapabilityInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**prodmon v%s**\n\n", c.Version)

	b.WriteString("**Features:**\n")
	fmt.Fprintf(&b, "%s Program presence for %s\n", mark(true), targetList(c.Targets))
	fmt.Fprintf(&b, "%s Click counting and productivity\n", mark(c.InputSourceWired))
	fmt.Fprintf(&b, "%s Periodic snapshots\n", mark(c.SnapshotsEnabled))
	b.WriteString("[x] Hourly reports\n")
	fmt.Fprintf(&b, "%s Automatic updates\n\n", mark(c.AutoUpdateEnabled))

	b.WriteString("**Configuration:**\n")
	fmt.Fprintf(&b, "• Debug mode: %s\n", onOff(c.Debug))
	fmt.Fprintf(&b, "• Threshold: %d clicks/minute\n", c.Threshold)
	fmt.Fprintf(&b, "• Snapshots every: %d minutes\n", int(c.SnapshotInterval/time.Minute))
	fmt.Fprintf(&b, "• Update check: %dh", int(c.UpdateInterval/time.Hour))
	return b.String()
}

func targetList(targets []string) string {
	if len(targets) == 0 {
		return "(any)"
	}
	return strings.Join(targets, ", ")
}

func mark(ok bool) string {
	if ok {
		return "[x]"
	}
	return "[ ]"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
