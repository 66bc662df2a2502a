package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

type sentMessage struct {
	channel  domain.Channel
	text     string
	filePath string
}

// mockTransport records every message it is asked to send
type mockTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	ok   bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{ok: true}
}

func (m *mockTransport) Send(_ context.Context, channel domain.Channel, text, filePath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{channel: channel, text: text, filePath: filePath})
	return m.ok
}

func (m *mockTransport) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// mockProcessLister replays a scripted sequence of enumeration results
type mockProcessLister struct {
	mu    sync.Mutex
	steps [][]string
	errs  []error
	calls int
}

var errEnumeration = errors.New("enumeration failed")

func (m *mockProcessLister) RunningProcessNames(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.steps) {
		return m.steps[i], nil
	}
	return nil, nil
}

var (
	_ domain.Transport     = (*mockTransport)(nil)
	_ domain.ProcessLister = (*mockProcessLister)(nil)
)
