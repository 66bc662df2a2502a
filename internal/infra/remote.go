package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

const (
	// DefaultVersionTimeout bounds the remote version fetch.
	DefaultVersionTimeout = 10 * time.Second
	// DefaultDownloadTimeout bounds the payload download.
	DefaultDownloadTimeout = 30 * time.Second

	maxVersionBody = 1024
	remoteAgent    = "prodmon-updater"
)

// HTTPRemote fetches the published version and payload over HTTP.
// It implements both domain.VersionSource and domain.PayloadSource.
type HTTPRemote struct {
	client          *http.Client
	versionURL      string
	payloadURL      string
	versionTimeout  time.Duration
	downloadTimeout time.Duration
}

// NewHTTPRemote creates a remote for the given endpoints.
func NewHTTPRemote(versionURL, payloadURL string) *HTTPRemote {
	return &HTTPRemote{
		client:          &http.Client{},
		versionURL:      versionURL,
		payloadURL:      payloadURL,
		versionTimeout:  DefaultVersionTimeout,
		downloadTimeout: DefaultDownloadTimeout,
	}
}

// LatestVersion returns the trimmed body of the version endpoint.
func (r *HTTPRemote) LatestVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.versionTimeout)
	defer cancel()

	resp, err := r.get(ctx, r.versionURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch version: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVersionBody))
	if err != nil {
		return "", fmt.Errorf("failed to read version: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Download streams the payload endpoint into w.
func (r *HTTPRemote) Download(ctx context.Context, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, r.downloadTimeout)
	defer cancel()

	resp, err := r.get(ctx, r.payloadURL)
	if err != nil {
		return fmt.Errorf("failed to download payload: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

func (r *HTTPRemote) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", remoteAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("remote returned status %d", resp.StatusCode)
	}
	return resp, nil
}

var (
	_ domain.VersionSource = (*HTTPRemote)(nil)
	_ domain.PayloadSource = (*HTTPRemote)(nil)
)
