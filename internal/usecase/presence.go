package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

// DefaultPresenceInterval is how often target programs are polled.
const DefaultPresenceInterval = 10 * time.Second

// EnumerationErrorPolicy decides presence when processes cannot be listed.
type EnumerationErrorPolicy int

const (
	// AssumeRunning fails open: an enumeration error reports the target as
	// running, so aggregation keeps going through transient errors.
	AssumeRunning EnumerationErrorPolicy = iota
	// AssumeStopped fails closed.
	AssumeStopped
)

func (p EnumerationErrorPolicy) String() string {
	switch p {
	case AssumeRunning:
		return "assume-running"
	case AssumeStopped:
		return "assume-stopped"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Transition is the outcome of one presence check.
type Transition struct {
	Running  bool
	Changed  bool   // state differs from the previous check
	Target   string // matched target, empty when none matched
	FailOpen bool   // Running came from the error policy, not a match
	Err      error
}

// PresenceMonitor tracks whether any target program is running.
// Only state changes are significant; steady polls are not reported.
type PresenceMonitor struct {
	lister    domain.ProcessLister
	transport domain.Transport
	targets   []string
	policy    EnumerationErrorPolicy
	logger    *zap.Logger

	mu          sync.Mutex
	state       domain.PresenceState
	transitions int // Stopped -> Running transitions
}

// NewPresenceMonitor creates a monitor for the given target program names.
// An empty target list means every check reports Running.
func NewPresenceMonitor(
	lister domain.ProcessLister,
	transport domain.Transport,
	targets []string,
	policy EnumerationErrorPolicy,
	logger *zap.Logger,
) *PresenceMonitor {
	lowered := make([]string, 0, len(targets))
	for _, t := range targets {
		if t = strings.TrimSpace(t); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &PresenceMonitor{
		lister:    lister,
		transport: transport,
		targets:   lowered,
		policy:    policy,
		logger:    logger,
	}
}

// Check polls the process list once and updates the state.
func (m *PresenceMonitor) Check(ctx context.Context) Transition {
	tr := m.evaluate(ctx)

	m.mu.Lock()
	tr.Changed = tr.Running != m.state.Running
	if tr.Changed && tr.Running {
		m.transitions++
	}
	m.state.Running = tr.Running
	firstDetection := tr.Target != "" && !m.state.EverDetected
	if firstDetection {
		m.state.EverDetected = true
	}
	m.mu.Unlock()

	if firstDetection {
		m.logger.Info("target program detected", zap.String("target", tr.Target))
		if m.transport != nil {
			m.transport.Send(ctx, domain.ChannelConsole, "Program detected: "+tr.Target, "")
		}
	}
	if tr.Changed {
		m.logger.Info("presence changed",
			zap.Bool("running", tr.Running),
			zap.Bool("fail_open", tr.FailOpen))
	}
	return tr
}

func (m *PresenceMonitor) evaluate(ctx context.Context) Transition {
	if len(m.targets) == 0 {
		return Transition{Running: true}
	}

	names, err := m.lister.RunningProcessNames(ctx)
	if err != nil {
		running := m.policy == AssumeRunning
		m.logger.Warn("process enumeration failed",
			zap.Error(err),
			zap.Stringer("policy", m.policy))
		return Transition{Running: running, FailOpen: running, Err: err}
	}

	for _, target := range m.targets {
		if matchesAny(target, names) {
			return Transition{Running: true, Target: target}
		}
	}
	return Transition{Running: false}
}

// matchesAny reports whether target and any process name contain one
// another, ignoring case. Executable names differ across platforms
// ("Foo.exe", "foo", "Foo Helper"), hence the loose rule.
func matchesAny(target string, names []string) bool {
	t := strings.ToLower(target)
	for _, name := range names {
		n := strings.ToLower(name)
		if n == "" {
			continue
		}
		if strings.Contains(n, t) || strings.Contains(t, n) {
			return true
		}
	}
	return false
}

// State returns the current presence state.
func (m *PresenceMonitor) State() domain.PresenceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transitions returns how many times presence went from Stopped to Running.
func (m *PresenceMonitor) Transitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitions
}

// Targets returns the configured target names.
func (m *PresenceMonitor) Targets() []string {
	return append([]string(nil), m.targets...)
}
