package pipeline

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/tecchey18-jpg/downloading-website/internal/config"
	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// Fetcher retrieves rendition bytes over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher with the configured timeouts.
func NewFetcher(cfg config.FetcherConfig) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ConnectTimeout,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.FetchTimeout,
		},
		userAgent: cfg.UserAgent,
	}
}

// Open issues a GET for a rendition URL and returns the response with
// its body left open. Non-2xx statuses and transport failures map to
// UpstreamUnavailable; context expiry maps to Cancelled.
func (f *Fetcher) Open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstreamUnavailable, "building request", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.WrapError(models.ErrCancelled, "fetch cancelled", ctx.Err())
		}
		return nil, models.WrapError(models.ErrUpstreamUnavailable, "fetching rendition", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, models.NewError(models.ErrUpstreamUnavailable,
			fmt.Sprintf("upstream returned %s", resp.Status))
	}

	return resp, nil
}

// FetchToFile downloads a rendition fully into path.
func (f *Fetcher) FetchToFile(ctx context.Context, url, path string) error {
	resp, err := f.Open(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	file, err := os.Create(path)
	if err != nil {
		return models.WrapError(models.ErrUpstreamUnavailable, "creating workspace file", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		if ctx.Err() != nil {
			return models.WrapError(models.ErrCancelled, "fetch cancelled", ctx.Err())
		}
		return models.WrapError(models.ErrUpstreamUnavailable, "reading rendition body", err)
	}

	if err := file.Close(); err != nil {
		return models.WrapError(models.ErrUpstreamUnavailable, "flushing workspace file", err)
	}
	return nil
}
