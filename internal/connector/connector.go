// Package connector resolves platform-specific input (URLs, handles)
// into normalized media descriptors. Each platform is one opaque
// implementation of the Connector interface; the rest of the system
// never special-cases a platform.
package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// ContentType narrows what a connector should resolve for an input.
type ContentType string

// Content types
const (
	ContentAny      ContentType = ""
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentPost     ContentType = "post"
	ContentProfile  ContentType = "profile"
	ContentPlaylist ContentType = "playlist"
)

// Connector resolves one input into one or more media descriptors.
// Resolution failures are returned as classified errors and are never
// retried by the caller.
type Connector interface {
	Platform() string
	Resolve(ctx context.Context, input string, contentType ContentType) ([]*models.MediaDescriptor, error)
}

// Registry maps platform names to connectors.
type Registry struct {
	byName map[string]Connector
}

// NewRegistry creates a registry from the given connectors.
func NewRegistry(connectors ...Connector) *Registry {
	byName := make(map[string]Connector, len(connectors))
	for _, c := range connectors {
		byName[c.Platform()] = c
	}
	return &Registry{byName: byName}
}

// Get returns the connector for a platform.
func (r *Registry) Get(platform string) (Connector, error) {
	c, ok := r.byName[platform]
	if !ok {
		return nil, models.NewError(models.ErrUnsupported, fmt.Sprintf("unsupported platform %q", platform))
	}
	return c, nil
}

// Platforms lists the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// maxPageBytes bounds how much of an upstream page a connector reads.
const maxPageBytes = 8 << 20

// fetchPage GETs a platform page and returns its body and status code.
// Transport failures map to UpstreamError; status handling is left to
// the caller since platforms disagree on what a 404 means.
func fetchPage(ctx context.Context, client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, models.WrapError(models.ErrCancelled, "resolution cancelled", ctx.Err())
		}
		return nil, 0, models.WrapError(models.ErrUpstreamError, "contacting platform", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, resp.StatusCode, models.WrapError(models.ErrUpstreamError, "reading platform response", err)
	}
	return body, resp.StatusCode, nil
}

func browserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}
