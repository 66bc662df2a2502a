package infra

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

// fakeRemote is a test double for domain.VersionSource and domain.PayloadSource
type fakeRemote struct {
	version     string
	versionErr  error
	payload     []byte
	downloadErr error
	// partial bytes are written before downloadErr is returned
	partial   []byte
	downloads int
}

func (f *fakeRemote) LatestVersion(context.Context) (string, error) {
	return f.version, f.versionErr
}

func (f *fakeRemote) Download(_ context.Context, w io.Writer) error {
	f.downloads++
	if f.downloadErr != nil {
		_, _ = w.Write(f.partial)
		return f.downloadErr
	}
	_, err := w.Write(f.payload)
	return err
}

var errNetwork = errors.New("connection reset")

// recordingTransport collects console messages
type recordingTransport struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingTransport) Send(_ context.Context, _ domain.Channel, text, _ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return true
}

func (r *recordingTransport) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

var (
	_ domain.VersionSource = (*fakeRemote)(nil)
	_ domain.PayloadSource = (*fakeRemote)(nil)
	_ domain.Transport     = (*recordingTransport)(nil)
)
