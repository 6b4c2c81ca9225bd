package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tecchey18-jpg/downloading-website/internal/metrics"
	"github.com/tecchey18-jpg/downloading-website/internal/selector"
	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// Artifact is one delivered file produced by a batch item.
type Artifact struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// BatchResult is the outcome of one batch item. Index always matches
// the input position of its descriptor.
type BatchResult struct {
	Index    int
	Artifact *Artifact
	Err      error
}

// BatchCoordinator fans the delivery pipeline out across several
// descriptors with a bounded worker pool. Item failures are
// independent; the result slice is ordered by input position.
type BatchCoordinator struct {
	pipeline *Pipeline
	workers  int
	logger   zerolog.Logger
}

// NewBatchCoordinator creates a coordinator running at most workers
// deliveries concurrently.
func NewBatchCoordinator(p *Pipeline, workers int, logger zerolog.Logger) *BatchCoordinator {
	if workers < 1 {
		workers = 1
	}
	return &BatchCoordinator{pipeline: p, workers: workers, logger: logger}
}

// Deliver runs the pipeline for every descriptor, writing each artifact
// into dir. Items start in input order; cancellation stops scheduling
// new items and cancels in-flight ones, while completed results are
// kept.
func (b *BatchCoordinator) Deliver(ctx context.Context, descs []*models.MediaDescriptor, quality string, requireAudio bool, dir string) []BatchResult {
	results := make([]BatchResult, len(descs))
	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup

	for i, desc := range descs {
		results[i].Index = i

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = models.WrapError(models.ErrCancelled, "batch cancelled", ctx.Err())
			continue
		}

		wg.Add(1)
		go func(idx int, d *models.MediaDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			artifact, err := b.deliverItem(ctx, idx, d, quality, requireAudio, dir)
			results[idx].Artifact = artifact
			results[idx].Err = err
			metrics.RecordBatchItem(statusOf(err))
			if err != nil {
				b.logger.Warn().Err(err).Int("item", idx).Msg("batch item failed")
			}
		}(i, desc)
	}

	wg.Wait()
	return results
}

func (b *BatchCoordinator) deliverItem(ctx context.Context, idx int, desc *models.MediaDescriptor, quality string, requireAudio bool, dir string) (*Artifact, error) {
	// Images and GIFs have no audio stream to require; a mixed profile
	// batch should not fail its picture items.
	needAudio := requireAudio && desc.Kind != models.KindImage && desc.Kind != models.KindGIF
	plan := selector.Select(desc, quality, needAudio)
	sink := &fileSink{dir: dir, prefix: fmt.Sprintf("%03d_", idx)}

	if err := b.pipeline.Deliver(ctx, desc, plan, sink); err != nil {
		sink.discard()
		return nil, err
	}
	return sink.artifact, nil
}

// fileSink writes one artifact into a directory, prefixing the filename
// so concurrent items never collide.
type fileSink struct {
	dir      string
	prefix   string
	artifact *Artifact
}

func (s *fileSink) Start(filename, contentType string, size int64) (io.WriteCloser, error) {
	path := filepath.Join(s.dir, s.prefix+filename)
	file, err := os.Create(path)
	if err != nil {
		return nil, models.WrapError(models.ErrInternal, "creating batch artifact", err)
	}
	s.artifact = &Artifact{
		Path:        path,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}
	return &sizingWriter{file: file, artifact: s.artifact}, nil
}

// discard removes a partially written artifact after a failure.
func (s *fileSink) discard() {
	if s.artifact != nil {
		os.Remove(s.artifact.Path)
		s.artifact = nil
	}
}

// sizingWriter records the real byte count, since upstreams do not
// always announce a length.
type sizingWriter struct {
	file     *os.File
	artifact *Artifact
	written  int64
}

func (w *sizingWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *sizingWriter) Close() error {
	w.artifact.Size = w.written
	return w.file.Close()
}
