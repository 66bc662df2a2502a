package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/prod_mon/internal/domain"
)

const (
	// DefaultWebhookTimeout bounds a single webhook post.
	DefaultWebhookTimeout = 10 * time.Second

	webhookUserAgent = "prodmon"
)

// ErrMissingWebhook is returned when a channel has no webhook URL configured.
var ErrMissingWebhook = errors.New("no webhook configured for channel")

// WebhookTransport implements domain.Transport by posting multipart forms
// to one webhook URL per channel.
type WebhookTransport struct {
	urls    map[domain.Channel]string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewWebhookTransport creates a transport for the given channel URLs.
func NewWebhookTransport(urls map[domain.Channel]string, logger *zap.Logger) *WebhookTransport {
	copied := make(map[domain.Channel]string, len(urls))
	for ch, u := range urls {
		copied[ch] = u
	}
	return &WebhookTransport{
		urls:    copied,
		client:  &http.Client{},
		timeout: DefaultWebhookTimeout,
		logger:  logger,
	}
}

// Send posts text and an optional file to the channel's webhook.
// A 200 or 204 response is success. Failures are logged and dropped.
// filePath is removed after the attempt on every path.
func (w *WebhookTransport) Send(ctx context.Context, channel domain.Channel, text, filePath string) bool {
	if filePath != "" {
		defer w.removeFile(filePath)
	}

	if err := w.post(ctx, channel, text, filePath); err != nil {
		w.logger.Debug("webhook send failed",
			zap.String("channel", string(channel)),
			zap.Error(err))
		return false
	}
	return true
}

func (w *WebhookTransport) post(ctx context.Context, channel domain.Channel, text, filePath string) error {
	url, ok := w.urls[channel]
	if !ok || url == "" {
		return fmt.Errorf("%w: %s", ErrMissingWebhook, channel)
	}

	body, contentType, err := buildMultipart(text, filePath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildMultipart encodes a "content" field and an optional "file" part.
func buildMultipart(text, filePath string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if text != "" {
		if err := mw.WriteField("content", text); err != nil {
			return nil, "", fmt.Errorf("failed to write content field: %w", err)
		}
	}

	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open attachment: %w", err)
		}
		defer f.Close()

		part, err := mw.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("failed to copy attachment: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (w *WebhookTransport) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Debug("failed to remove attachment", zap.String("path", path), zap.Error(err))
	}
}

// Ensure WebhookTransport implements domain.Transport.
var _ domain.Transport = (*WebhookTransport)(nil)
