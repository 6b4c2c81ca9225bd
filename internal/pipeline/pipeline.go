// Package pipeline turns a delivery plan into one streamed artifact:
// direct passthrough of a single rendition, or a fetch-both/merge/
// stream sequence confined to a scoped temporary workspace.
package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tecchey18-jpg/downloading-website/internal/merger"
	"github.com/tecchey18-jpg/downloading-website/internal/metrics"
	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// Sink receives one delivered artifact. Start is called exactly once,
// before the first body byte, so HTTP callers can emit headers; the
// returned writer is closed by the pipeline when the body is complete.
// Size is -1 when the artifact length is unknown. Errors from Start are
// returned to the caller unchanged: the sink classifies its own
// failures.
type Sink interface {
	Start(filename, contentType string, size int64) (io.WriteCloser, error)
}

// Pipeline executes delivery plans. All collaborators are injected so
// tests can substitute the merge process and the upstream fetches.
type Pipeline struct {
	fetcher    *Fetcher
	merger     merger.Merger
	workspaces *WorkspaceFactory
	logger     zerolog.Logger
}

// New creates a delivery pipeline.
func New(fetcher *Fetcher, m merger.Merger, workspaces *WorkspaceFactory, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		merger:     m,
		workspaces: workspaces,
		logger:     logger,
	}
}

// Deliver executes plan for desc and streams the artifact into sink.
// For merge plans the workspace is removed on every path, success or
// failure, before Deliver returns.
func (p *Pipeline) Deliver(ctx context.Context, desc *models.MediaDescriptor, plan models.DeliveryPlan, sink Sink) error {
	switch plan.Kind {
	case models.PlanDirect:
		err := p.deliverDirect(ctx, desc, *plan.Rendition, sink)
		metrics.RecordDelivery("direct", statusOf(err))
		return err
	case models.PlanMergeRequired:
		err := p.deliverMerged(ctx, desc, *plan.VideoRendition, *plan.AudioRendition, sink)
		metrics.RecordDelivery("merge", statusOf(err))
		return err
	default:
		metrics.RecordDelivery("unsatisfiable", string(models.ErrNoMatchingFormat))
		return models.NewError(models.ErrNoMatchingFormat, plan.Reason)
	}
}

// deliverDirect relays the rendition body straight through to the sink
// without buffering the payload.
func (p *Pipeline) deliverDirect(ctx context.Context, desc *models.MediaDescriptor, r models.Rendition, sink Sink) error {
	resp, err := p.fetcher.Open(ctx, r.SourceURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = models.ContentTypeFor(desc.Kind, r.Container)
	}

	w, err := sink.Start(desc.Filename(r.Container), contentType, resp.ContentLength)
	if err != nil {
		return err
	}
	defer w.Close()

	n, err := io.Copy(w, resp.Body)
	metrics.AddStreamedBytes(float64(n))
	if err != nil {
		if ctx.Err() != nil {
			return models.WrapError(models.ErrCancelled, "stream cancelled", ctx.Err())
		}
		return models.WrapError(models.ErrUpstreamUnavailable, "relaying rendition body", err)
	}
	return nil
}

// deliverMerged fetches the video and audio renditions concurrently
// into a fresh workspace, merges them, and streams the merged file.
func (p *Pipeline) deliverMerged(ctx context.Context, desc *models.MediaDescriptor, video, audio models.Rendition, sink Sink) (err error) {
	ws, err := p.workspaces.New()
	if err != nil {
		return models.WrapError(models.ErrInternal, "creating workspace", err)
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			p.logger.Error().Err(rmErr).Str("workspace", ws.Dir()).Msg("failed to remove workspace")
		}
	}()

	videoPath := ws.Path("video." + containerExt(video.Container))
	audioPath := ws.Path("audio." + containerExt(audio.Container))
	outputPath := ws.Path("output.mp4")

	if err := p.fetchBoth(ctx, video.SourceURL, videoPath, audio.SourceURL, audioPath); err != nil {
		return err
	}

	start := time.Now()
	if err := p.merger.Merge(ctx, videoPath, audioPath, outputPath); err != nil {
		return err
	}
	metrics.ObserveMergeDuration(time.Since(start).Seconds())

	out, err := os.Open(outputPath)
	if err != nil {
		return models.WrapError(models.ErrInternal, "opening merged output", err)
	}
	defer out.Close()

	size := int64(-1)
	if info, statErr := out.Stat(); statErr == nil {
		size = info.Size()
	}

	w, err := sink.Start(desc.Filename("mp4"), models.ContentTypeFor(desc.Kind, "mp4"), size)
	if err != nil {
		return err
	}
	defer w.Close()

	n, err := io.Copy(w, out)
	metrics.AddStreamedBytes(float64(n))
	if err != nil {
		if ctx.Err() != nil {
			return models.WrapError(models.ErrCancelled, "stream cancelled", ctx.Err())
		}
		return models.WrapError(models.ErrMergeFailed, "streaming merged output", err)
	}
	return nil
}

// fetchBoth downloads the two inputs in parallel. The first failure
// cancels the sibling fetch; the merge never starts with a partial
// input file.
func (p *Pipeline) fetchBoth(ctx context.Context, videoURL, videoPath, audioURL, audioPath string) error {
	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- p.fetcher.FetchToFile(fctx, videoURL, videoPath) }()
	go func() { errc <- p.fetcher.FetchToFile(fctx, audioURL, audioPath) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	if firstErr != nil && ctx.Err() != nil {
		return models.WrapError(models.ErrCancelled, "fetch cancelled", ctx.Err())
	}
	return firstErr
}

func containerExt(container string) string {
	if container == "" {
		return "bin"
	}
	return container
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(models.KindOf(err))
}
