package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// memSink captures one delivered artifact in memory.
type memSink struct {
	filename    string
	contentType string
	size        int64
	buf         bytes.Buffer
	started     bool
}

func (s *memSink) Start(filename, contentType string, size int64) (io.WriteCloser, error) {
	s.started = true
	s.filename = filename
	s.contentType = contentType
	s.size = size
	return nopWriteCloser{&s.buf}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// fakeMerger concatenates its inputs, or fails on demand.
type fakeMerger struct {
	err    error
	called bool
}

func (m *fakeMerger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	m.called = true
	if m.err != nil {
		return m.err
	}
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append(video, audio...), 0o600)
}

func newTestPipeline(t *testing.T, srv *httptest.Server, m *fakeMerger) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	fetcher := &Fetcher{client: srv.Client(), userAgent: "test-agent"}
	p := New(fetcher, m, NewWorkspaceFactory(root), zerolog.Nop())
	return p, root
}

func assertWorkspaceClean(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("reading workspace root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace root not cleaned up, %d entries remain", len(entries))
	}
}

func videoDescriptor(title string) *models.MediaDescriptor {
	return &models.MediaDescriptor{Kind: models.KindVideo, Title: title}
}

func TestDeliverDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("combined-bytes"))
	}))
	defer srv.Close()

	p, root := newTestPipeline(t, srv, &fakeMerger{})
	sink := &memSink{}
	plan := models.Direct(models.Rendition{SourceURL: srv.URL + "/r.mp4", Container: "mp4", HasVideo: true, HasAudio: true})

	err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if sink.filename != "clip.mp4" {
		t.Errorf("filename = %q, want clip.mp4", sink.filename)
	}
	if sink.contentType != "video/mp4" {
		t.Errorf("contentType = %q, want the upstream value", sink.contentType)
	}
	if sink.buf.String() != "combined-bytes" {
		t.Errorf("body = %q", sink.buf.String())
	}
	assertWorkspaceClean(t, root)
}

func TestDeliverDirectContentTypeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress the sniffed header so the upstream sends none.
		w.Header()["Content-Type"] = nil
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, srv, &fakeMerger{})
	sink := &memSink{}
	plan := models.Direct(models.Rendition{SourceURL: srv.URL, Container: "webm", HasVideo: true, HasAudio: true})

	if err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if sink.contentType != "video/webm" {
		t.Errorf("contentType = %q, want the container fallback", sink.contentType)
	}
}

func TestDeliverDirectUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, srv, &fakeMerger{})
	sink := &memSink{}
	plan := models.Direct(models.Rendition{SourceURL: srv.URL, Container: "mp4", HasVideo: true, HasAudio: true})

	err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if models.KindOf(err) != models.ErrUpstreamUnavailable {
		t.Errorf("error kind = %v, want upstream_unavailable (err: %v)", models.KindOf(err), err)
	}
	if sink.started {
		t.Error("sink started despite upstream failure")
	}
}

func TestDeliverMerged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video":
			w.Write([]byte("VIDEO|"))
		case "/audio":
			w.Write([]byte("AUDIO"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	m := &fakeMerger{}
	p, root := newTestPipeline(t, srv, m)
	sink := &memSink{}
	plan := models.MergeRequired(
		models.Rendition{SourceURL: srv.URL + "/video", Container: "mp4", HasVideo: true, SortKey: 1080},
		models.Rendition{SourceURL: srv.URL + "/audio", Container: "m4a", HasAudio: true, SortKey: 128},
	)

	err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !m.called {
		t.Error("merger was not invoked")
	}
	if sink.buf.String() != "VIDEO|AUDIO" {
		t.Errorf("merged body = %q", sink.buf.String())
	}
	if sink.filename != "clip.mp4" || sink.contentType != "video/mp4" {
		t.Errorf("artifact = %q %q", sink.filename, sink.contentType)
	}
	if sink.size != int64(len("VIDEO|AUDIO")) {
		t.Errorf("size = %d, want %d", sink.size, len("VIDEO|AUDIO"))
	}
	assertWorkspaceClean(t, root)
}

func TestDeliverMergedMergeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	m := &fakeMerger{err: models.NewError(models.ErrMergeFailed, "stream mapping mismatch")}
	p, root := newTestPipeline(t, srv, m)
	sink := &memSink{}
	plan := models.MergeRequired(
		models.Rendition{SourceURL: srv.URL + "/v", Container: "mp4", HasVideo: true},
		models.Rendition{SourceURL: srv.URL + "/a", Container: "m4a", HasAudio: true},
	)

	err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if models.KindOf(err) != models.ErrMergeFailed {
		t.Errorf("error kind = %v, want merge_failed (err: %v)", models.KindOf(err), err)
	}
	if !strings.Contains(models.DetailOf(err), "stream mapping mismatch") {
		t.Errorf("detail = %q, want the merger output", models.DetailOf(err))
	}
	if sink.started {
		t.Error("sink started despite merge failure")
	}
	assertWorkspaceClean(t, root)
}

func TestDeliverMergedFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	m := &fakeMerger{}
	p, root := newTestPipeline(t, srv, m)
	sink := &memSink{}
	plan := models.MergeRequired(
		models.Rendition{SourceURL: srv.URL + "/video", Container: "mp4", HasVideo: true},
		models.Rendition{SourceURL: srv.URL + "/audio", Container: "m4a", HasAudio: true},
	)

	err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if models.KindOf(err) != models.ErrUpstreamUnavailable {
		t.Errorf("error kind = %v, want upstream_unavailable (err: %v)", models.KindOf(err), err)
	}
	if m.called {
		t.Error("merge started with a partial input")
	}
	if sink.started {
		t.Error("sink started despite fetch failure")
	}
	assertWorkspaceClean(t, root)
}

// failingSink rejects every artifact with its configured error.
type failingSink struct {
	err error
}

func (s *failingSink) Start(filename, contentType string, size int64) (io.WriteCloser, error) {
	return nil, s.err
}

func TestDeliverSinkErrorPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	p, root := newTestPipeline(t, srv, &fakeMerger{})
	sinkErr := models.NewError(models.ErrInternal, "no space left for artifact")
	sink := &failingSink{err: sinkErr}

	// Direct path: the sink's own classification survives untouched.
	plan := models.Direct(models.Rendition{SourceURL: srv.URL, Container: "mp4", HasVideo: true, HasAudio: true})
	err := p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if !errors.Is(err, sinkErr) {
		t.Errorf("direct sink error = %v, want the sink's error unchanged", err)
	}
	if models.KindOf(err) != models.ErrInternal {
		t.Errorf("direct error kind = %v, want internal", models.KindOf(err))
	}

	// Merge path behaves the same, and still cleans the workspace.
	plan = models.MergeRequired(
		models.Rendition{SourceURL: srv.URL + "/v", Container: "mp4", HasVideo: true},
		models.Rendition{SourceURL: srv.URL + "/a", Container: "m4a", HasAudio: true},
	)
	err = p.Deliver(context.Background(), videoDescriptor("clip"), plan, sink)
	if !errors.Is(err, sinkErr) {
		t.Errorf("merge sink error = %v, want the sink's error unchanged", err)
	}
	assertWorkspaceClean(t, root)
}

func TestDeliverCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	p, root := newTestPipeline(t, srv, &fakeMerger{})
	sink := &memSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := models.MergeRequired(
		models.Rendition{SourceURL: srv.URL + "/v", Container: "mp4", HasVideo: true},
		models.Rendition{SourceURL: srv.URL + "/a", Container: "m4a", HasAudio: true},
	)

	err := p.Deliver(ctx, videoDescriptor("clip"), plan, sink)
	if models.KindOf(err) != models.ErrCancelled {
		t.Errorf("error kind = %v, want cancelled (err: %v)", models.KindOf(err), err)
	}
	assertWorkspaceClean(t, root)
}

func TestDeliverUnsatisfiable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p, _ := newTestPipeline(t, srv, &fakeMerger{})
	sink := &memSink{}

	err := p.Deliver(context.Background(), videoDescriptor("clip"), models.Unsatisfiable("no audio available"), sink)
	if models.KindOf(err) != models.ErrNoMatchingFormat {
		t.Errorf("error kind = %v, want no_matching_format (err: %v)", models.KindOf(err), err)
	}
	if models.DetailOf(err) != "no audio available" {
		t.Errorf("detail = %q", models.DetailOf(err))
	}
	if sink.started {
		t.Error("sink started for unsatisfiable plan")
	}
}
