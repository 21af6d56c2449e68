// Package download fetches raw source files over HTTP and persists them
// atomically, so an aborted transfer never leaves a half-written source on
// disk.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Client downloads files to local paths.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a download client with the given per-request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchIfMissing downloads url to dest unless dest already exists.
func (c *Client) FetchIfMissing(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		c.logger.Info("source already downloaded", "path", dest)
		return nil
	}
	return c.Fetch(ctx, url, dest)
}

// Fetch downloads url into dest via a temporary file in the same directory,
// renamed into place only after the full body is written.
func (c *Client) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move %s into place: %w", dest, err)
	}

	c.logger.Info("source downloaded", "url", url, "path", dest)
	return nil
}
