package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

const (
	// DefaultThreshold is the minimum clicks for a productive minute.
	DefaultThreshold = 2
	// DefaultRetention bounds how long productive minutes are kept.
	DefaultRetention = 24 * time.Hour

	trailingHours = 3
)

// AggregatorConfig holds aggregator settings.
type AggregatorConfig struct {
	Threshold int           // clicks per minute, inclusive
	Retention time.Duration // ProductiveMinuteSet retention window
	Debug     bool          // echo each classification to the console channel
}

// DefaultAggregatorConfig returns default aggregator configuration.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Threshold: DefaultThreshold,
		Retention: DefaultRetention,
	}
}

// ProductivityAggregator classifies minutes and rolls them up by hour.
// A single lock guards all state so reports never see a partial update.
type ProductivityAggregator struct {
	config    AggregatorConfig
	clock     quartz.Clock
	transport domain.Transport
	logger    *zap.Logger

	mu           sync.RWMutex
	productive   map[string]int // MinuteKey -> clicks
	hourly       map[int]int    // hour of day -> productive minutes
	lastAnalyzed string
}

// NewProductivityAggregator creates an aggregator. transport may be nil
// when diagnostics are off.
func NewProductivityAggregator(
	config AggregatorConfig,
	clock quartz.Clock,
	transport domain.Transport,
	logger *zap.Logger,
) *ProductivityAggregator {
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	return &ProductivityAggregator{
		config:     config,
		clock:      clock,
		transport:  transport,
		logger:     logger,
		productive: make(map[string]int),
		hourly:     make(map[int]int),
	}
}

// Threshold returns the configured clicks-per-minute threshold.
func (a *ProductivityAggregator) Threshold() int {
	return a.config.Threshold
}

// AnalyzeMinute classifies one minute bucket.
// Returns false without side effects if key was the last key analyzed.
// Classification is never revised once made.
func (a *ProductivityAggregator) AnalyzeMinute(key string, count int) bool {
	a.mu.Lock()
	if key == a.lastAnalyzed {
		a.mu.Unlock()
		return false
	}
	a.lastAnalyzed = key

	productive := count >= a.config.Threshold
	if productive {
		a.productive[key] = count
		if hour, err := domain.HourOfKey(key); err == nil {
			a.hourly[hour]++
		} else {
			a.logger.Debug("minute key has no hour, rollup skipped", zap.String("key", key))
		}
	}
	a.mu.Unlock()

	a.logger.Debug("minute analyzed",
		zap.String("minute", key),
		zap.Int("clicks", count),
		zap.Bool("productive", productive))

	if a.config.Debug && a.transport != nil {
		status := "not productive"
		if productive {
			status = "PRODUCTIVE"
		}
		a.transport.Send(context.Background(), domain.ChannelConsole,
			fmt.Sprintf("DEBUG: %s - %d clicks - %s", key, count, status), "")
	}

	return productive
}

// CleanupOldData removes productive minutes older than the retention window
// and returns how many were removed. HourlyStats are not touched.
func (a *ProductivityAggregator) CleanupOldData() int {
	cutoff := domain.MinuteKey(a.clock.Now().Add(-a.config.Retention))

	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for key := range a.productive {
		if key < cutoff {
			delete(a.productive, key)
			removed++
		}
	}
	if removed > 0 {
		a.logger.Debug("pruned productive minutes",
			zap.Int("removed", removed),
			zap.String("cutoff", cutoff))
	}
	return removed
}

// Report returns a snapshot of the current productivity figures.
// It is a pure read.
func (a *ProductivityAggregator) Report() domain.Report {
	now := a.clock.Now()
	currentHour := now.Hour()

	a.mu.RLock()
	defer a.mu.RUnlock()

	current := a.hourly[currentHour]

	// Hours with no entry are skipped, not averaged in as zero.
	var recentSum, recentCount int
	for i := 1; i <= trailingHours; i++ {
		hour := ((currentHour-i)%24 + 24) % 24
		if minutes, ok := a.hourly[hour]; ok {
			recentSum += minutes
			recentCount++
		}
	}
	var avg float64
	if recentCount > 0 {
		avg = round1(float64(recentSum) / float64(recentCount))
	}

	var pct float64
	if current > 0 {
		pct = round1(float64(current) / 60 * 100)
	}

	total := 0
	breakdown := make([]domain.HourStat, 0, len(a.hourly))
	for hour, minutes := range a.hourly {
		total += minutes
		breakdown = append(breakdown, domain.HourStat{Hour: hour, Minutes: minutes})
	}
	sort.Slice(breakdown, func(i, j int) bool { return breakdown[i].Hour < breakdown[j].Hour })

	return domain.Report{
		GeneratedAt:            now,
		CurrentHour:            currentHour,
		CurrentHourMinutes:     current,
		ProductivityPercentage: pct,
		AvgLast3Hours:          avg,
		TotalProductiveMinutes: total,
		HourlyBreakdown:        breakdown,
	}
}

// ProductiveMinutes returns a copy of the productive minute set.
func (a *ProductivityAggregator) ProductiveMinutes() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]int, len(a.productive))
	for k, v := range a.productive {
		out[k] = v
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
