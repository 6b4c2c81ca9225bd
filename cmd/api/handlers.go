package main

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tecchey18-jpg/downloading-website/internal/cache"
	"github.com/tecchey18-jpg/downloading-website/internal/connector"
	"github.com/tecchey18-jpg/downloading-website/internal/metrics"
	"github.com/tecchey18-jpg/downloading-website/internal/pipeline"
	"github.com/tecchey18-jpg/downloading-website/internal/selector"
	"github.com/tecchey18-jpg/downloading-website/internal/tracing"
	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

const defaultQuality = "1080p"

// API wires the resolver, the descriptor store and the delivery
// pipeline behind the HTTP boundary.
type API struct {
	registry *connector.Registry
	store    *cache.Store
	pipeline *pipeline.Pipeline
	batch    *pipeline.BatchCoordinator
	logger   zerolog.Logger
}

type resolveRequest struct {
	URL         string `json:"url" binding:"required"`
	Platform    string `json:"platform"`
	ContentType string `json:"content_type"`
}

// Resolve endpoint: normalize a platform link into descriptors and hand
// back a short-lived reference for later delivery calls.
func (api *API) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	platform := req.Platform
	if platform == "" {
		platform = detectPlatform(req.URL)
	}

	span, ctx := tracing.StartSpan(c.Request.Context(), "resolve")
	descs, err := api.resolveInput(ctx, platform, req.URL, connector.ContentType(req.ContentType))
	tracing.FinishWithError(span, err)
	metrics.RecordResolve(platform, resolveStatus(err))
	if err != nil {
		api.respondError(c, err)
		return
	}

	ref, err := api.store.Put(ctx, descs)
	if err != nil {
		// The descriptors are still usable without a reference.
		api.logger.Warn().Err(err).Msg("failed to store descriptor reference")
	}

	c.JSON(http.StatusOK, gin.H{
		"ref":         ref,
		"platform":    platform,
		"descriptors": descs,
	})
}

type deliverRequest struct {
	URL          string `form:"url" json:"url"`
	Ref          string `form:"ref" json:"ref"`
	Platform     string `form:"platform" json:"platform"`
	Index        int    `form:"index" json:"index"`
	Quality      string `form:"quality" json:"quality"`
	ContentType  string `form:"content_type" json:"content_type"`
	RequireAudio *bool  `form:"require_audio" json:"require_audio"`
}

// requireAudio defaults to true when the request leaves it unset.
func (r *deliverRequest) requireAudio() bool {
	return r.RequireAudio == nil || *r.RequireAudio
}

// Deliver endpoint: stream one artifact for a previously resolved
// reference, or resolve a URL and deliver in one call.
func (api *API) deliver(c *gin.Context) {
	var req deliverRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	desc, err := api.lookupDescriptor(c.Request.Context(), &req)
	if err != nil {
		api.respondError(c, err)
		return
	}

	quality := req.Quality
	if quality == "" {
		quality = defaultQuality
	}

	plan := selector.Select(desc, quality, req.requireAudio() && needsAudio(desc.Kind))
	sink := &httpSink{c: c}

	span, ctx := tracing.StartSpan(c.Request.Context(), "deliver")
	err = api.pipeline.Deliver(ctx, desc, plan, sink)
	tracing.FinishWithError(span, err)
	if err != nil {
		if sink.started {
			// Headers are gone; all we can do is cut the stream.
			api.logger.Error().Err(err).Msg("delivery failed mid-stream")
			c.Abort()
			return
		}
		api.respondError(c, err)
	}
}

type batchRequest struct {
	URL          string `json:"url"`
	Ref          string `json:"ref"`
	Platform     string `json:"platform"`
	ContentType  string `json:"content_type"`
	Quality      string `json:"quality"`
	RequireAudio *bool  `json:"require_audio"`
}

func (r *batchRequest) requireAudio() bool {
	return r.RequireAudio == nil || *r.RequireAudio
}

type manifestEntry struct {
	Index       int    `json:"index"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// Batch endpoint: deliver every descriptor of a reference (or of a
// fresh resolve) as one zip archive with a manifest describing each
// item's outcome.
func (api *API) deliverBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	descs, err := api.lookupDescriptors(c.Request.Context(), req.Ref, req.Platform, req.URL, req.ContentType)
	if err != nil {
		api.respondError(c, err)
		return
	}

	quality := req.Quality
	if quality == "" {
		quality = defaultQuality
	}

	dir, err := os.MkdirTemp("", "batch-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to allocate batch directory"})
		return
	}
	defer os.RemoveAll(dir)

	span, ctx := tracing.StartSpan(c.Request.Context(), "deliver_batch")
	results := api.batch.Deliver(ctx, descs, quality, req.requireAudio(), dir)
	tracing.FinishWithError(span, firstError(results))

	if !anyArtifact(results) {
		api.respondError(c, firstError(results))
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="download-batch.zip"`)
	c.Status(http.StatusOK)

	if err := writeBatchZip(c.Writer, results); err != nil {
		api.logger.Error().Err(err).Msg("batch archive failed mid-stream")
		c.Abort()
	}
}

// Health endpoint.
func (api *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"platforms": api.registry.Platforms(),
	})
}

func (api *API) resolveInput(ctx context.Context, platform, url string, contentType connector.ContentType) ([]*models.MediaDescriptor, error) {
	if platform == "" {
		return nil, models.NewError(models.ErrUnsupported, "could not detect a supported platform from the input")
	}
	conn, err := api.registry.Get(platform)
	if err != nil {
		return nil, err
	}
	return conn.Resolve(ctx, url, contentType)
}

// lookupDescriptor finds the single descriptor a deliver call targets,
// from a stored reference or an inline URL.
func (api *API) lookupDescriptor(ctx context.Context, req *deliverRequest) (*models.MediaDescriptor, error) {
	descs, err := api.lookupDescriptors(ctx, req.Ref, req.Platform, req.URL, req.ContentType)
	if err != nil {
		return nil, err
	}
	if req.Index < 0 || req.Index >= len(descs) {
		return nil, models.NewError(models.ErrNotFound,
			fmt.Sprintf("index %d out of range, reference holds %d items", req.Index, len(descs)))
	}
	return descs[req.Index], nil
}

func (api *API) lookupDescriptors(ctx context.Context, ref, platform, url, contentType string) ([]*models.MediaDescriptor, error) {
	switch {
	case ref != "":
		descs, err := api.store.Get(ctx, ref)
		if err != nil {
			return nil, models.WrapError(models.ErrUpstreamError, "loading descriptor reference", err)
		}
		if descs == nil {
			return nil, models.NewError(models.ErrNotFound, "unknown or expired reference")
		}
		return descs, nil
	case url != "":
		if platform == "" {
			platform = detectPlatform(url)
		}
		return api.resolveInput(ctx, platform, url, connector.ContentType(contentType))
	default:
		return nil, models.NewError(models.ErrUnsupported, "either ref or url is required")
	}
}

func (api *API) respondError(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery produced no artifact"})
		return
	}
	kind := models.KindOf(err)
	c.JSON(kind.HTTPStatus(), gin.H{
		"error": models.DetailOf(err),
		"kind":  string(kind),
	})
}

// httpSink streams one artifact as the HTTP response body, emitting the
// download headers just before the first byte.
type httpSink struct {
	c       *gin.Context
	started bool
}

func (s *httpSink) Start(filename, contentType string, size int64) (io.WriteCloser, error) {
	s.started = true
	s.c.Header("Content-Type", contentType)
	s.c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if size >= 0 {
		s.c.Header("Content-Length", fmt.Sprintf("%d", size))
	}
	s.c.Status(http.StatusOK)
	return responseWriter{s.c.Writer}, nil
}

type responseWriter struct{ w gin.ResponseWriter }

func (r responseWriter) Write(p []byte) (int, error) { return r.w.Write(p) }
func (r responseWriter) Close() error                { return nil }

func writeBatchZip(w io.Writer, results []pipeline.BatchResult) error {
	zw := zip.NewWriter(w)

	manifest := make([]manifestEntry, len(results))
	for i, res := range results {
		manifest[i].Index = res.Index
		if res.Err != nil {
			manifest[i].Error = models.DetailOf(res.Err)
			manifest[i].ErrorKind = string(models.KindOf(res.Err))
			continue
		}
		manifest[i].Filename = filepath.Base(res.Artifact.Path)
		manifest[i].ContentType = res.Artifact.ContentType
		manifest[i].Size = res.Artifact.Size
	}

	mw, err := zw.Create("manifest.json")
	if err != nil {
		return err
	}
	if err := json.NewEncoder(mw).Encode(manifest); err != nil {
		return err
	}

	for _, res := range results {
		if res.Artifact == nil {
			continue
		}
		if err := addZipEntry(zw, res.Artifact.Path); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addZipEntry(zw *zip.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, file)
	return err
}

func needsAudio(kind models.Kind) bool {
	return kind != models.KindImage && kind != models.KindGIF
}

func detectPlatform(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"),
		strings.Contains(lower, "youtube-nocookie.com"):
		return "youtube"
	case strings.Contains(lower, "instagram.com"), strings.HasPrefix(lower, "@"):
		return "instagram"
	case strings.Contains(lower, "facebook.com"), strings.Contains(lower, "fb.watch"):
		return "facebook"
	default:
		return ""
	}
}

func resolveStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return string(models.KindOf(err))
}

func firstError(results []pipeline.BatchResult) error {
	for _, res := range results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func anyArtifact(results []pipeline.BatchResult) bool {
	for _, res := range results {
		if res.Artifact != nil {
			return true
		}
	}
	return false
}
