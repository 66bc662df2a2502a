package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
	"github.com/eliteGoblin/focusd/prod_mon/internal/usecase"
)

var testEpoch = time.Date(2030, time.June, 3, 10, 0, 30, 0, time.UTC)

type sentMessage struct {
	channel  domain.Channel
	text     string
	filePath string
}

// mockTransport records every message it is asked to send
type mockTransport struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockTransport) Send(_ context.Context, channel domain.Channel, text, filePath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{channel: channel, text: text, filePath: filePath})
	return true
}

func (m *mockTransport) on(channel domain.Channel) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, s := range m.sent {
		if s.channel == channel {
			out = append(out, s)
		}
	}
	return out
}

// count returns how many messages on channel start with prefix
func (m *mockTransport) count(channel domain.Channel, prefix string) int {
	n := 0
	for _, s := range m.on(channel) {
		if strings.HasPrefix(s.text, prefix) {
			n++
		}
	}
	return n
}

// switchableLister reports the target as running while running is true
type switchableLister struct {
	mu      sync.Mutex
	running bool
}

func (l *switchableLister) set(running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = running
}

func (l *switchableLister) RunningProcessNames(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return []string{"launchd", "TeklaStructures.exe"}, nil
	}
	return []string{"launchd"}, nil
}

// fakeUpdater returns a canned result from Apply
type fakeUpdater struct {
	mu        sync.Mutex
	available bool
	result    domain.UpdateResult
	checks    int
	applies   int
}

func (f *fakeUpdater) Check(context.Context) (domain.UpdateManifest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return domain.UpdateManifest{LocalVersion: "1.0.0", RemoteVersion: "1.1.0"}, f.available, nil
}

func (f *fakeUpdater) Apply(context.Context) domain.UpdateResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies++
	return f.result
}

func (f *fakeUpdater) counts() (checks, applies int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.applies
}

// fakeRelauncher records relaunch requests
type fakeRelauncher struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeRelauncher) Relaunch(execPath string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{execPath}, args...))
	return f.err
}

func (f *fakeRelauncher) relaunches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// fakeCapturer hands out a fixed path or an error
type fakeCapturer struct {
	path string
	err  error
}

func (f *fakeCapturer) Capture(context.Context) (string, error) {
	return f.path, f.err
}

// fakeInput keeps the handler so tests can inject clicks
type fakeInput struct {
	mu       sync.Mutex
	handler  func(domain.ClickInput)
	startErr error
	stopped  bool
}

func (f *fakeInput) Start(handler func(domain.ClickInput)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.handler = handler
	return nil
}

func (f *fakeInput) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeInput) click(in domain.ClickInput) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(in)
	}
}

var errCapture = errors.New("screen locked")

var (
	_ domain.Transport      = (*mockTransport)(nil)
	_ domain.ProcessLister  = (*switchableLister)(nil)
	_ Updater               = (*fakeUpdater)(nil)
	_ domain.Relauncher     = (*fakeRelauncher)(nil)
	_ domain.ScreenCapturer = (*fakeCapturer)(nil)
	_ domain.InputSource    = (*fakeInput)(nil)
)

type monitorFixture struct {
	clock     *quartz.Mock
	transport *mockTransport
	lister    *switchableLister
	ledger    *usecase.ActivityLedger
	agg       *usecase.ProductivityAggregator
	deps      MonitorDeps
	config    MonitorConfig
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(testEpoch)

	transport := &mockTransport{}
	lister := &switchableLister{running: true}
	ledger := usecase.NewActivityLedger(usecase.DefaultLedgerCapacity, clock)
	agg := usecase.NewProductivityAggregator(usecase.DefaultAggregatorConfig(), clock, transport, zap.NewNop())
	presence := usecase.NewPresenceMonitor(lister, transport, []string{"TeklaStructures.exe"}, usecase.AssumeRunning, zap.NewNop())

	config := DefaultMonitorConfig()
	config.Version = "1.0.0"
	config.Targets = []string{"TeklaStructures.exe"}
	config.ExecPath = "/opt/prodmon/prodmon"

	return &monitorFixture{
		clock:     clock,
		transport: transport,
		lister:    lister,
		ledger:    ledger,
		agg:       agg,
		config:    config,
		deps: MonitorDeps{
			Transport:  transport,
			Ledger:     ledger,
			Aggregator: agg,
			Presence:   presence,
		},
	}
}

func (f *monitorFixture) monitor() *Monitor {
	return NewMonitor(f.config, f.deps, f.clock, zap.NewNop())
}

// activate marks a monitor as started and monitoring without launching workers
func activate(t *testing.T, m *Monitor) {
	t.Helper()
	m.running.Store(true)
	require.True(t, m.presenceTick(context.Background()))
	require.True(t, m.MonitoringActive())
}

func (m *Monitor) setLastUpdateCheck(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdateCheck = t
}
