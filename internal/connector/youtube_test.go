package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

const playerFixture = `{
	"playabilityStatus": {"status": "OK"},
	"videoDetails": {
		"videoId": "dQw4w9WgXcQ",
		"title": "Test Video",
		"lengthSeconds": "212",
		"author": "Test Channel",
		"channelId": "UCtest",
		"thumbnail": {"thumbnails": [
			{"url": "http://img.example/small.jpg", "width": 120, "height": 90},
			{"url": "http://img.example/large.jpg", "width": 1280, "height": 720}
		]}
	},
	"streamingData": {
		"formats": [
			{"itag": 18, "url": "http://cdn.example/360.mp4", "mimeType": "video/mp4; codecs=\"avc1\"", "width": 640, "height": 360, "qualityLabel": "360p", "audioQuality": "AUDIO_QUALITY_LOW", "contentLength": "1000000"}
		],
		"adaptiveFormats": [
			{"itag": 137, "url": "http://cdn.example/1080v.mp4", "mimeType": "video/mp4; codecs=\"avc1\"", "width": 1920, "height": 1080, "qualityLabel": "1080p", "contentLength": "5000000"},
			{"itag": 140, "url": "http://cdn.example/audio.m4a", "mimeType": "audio/mp4; codecs=\"mp4a\"", "bitrate": 131072, "averageBitrate": 128000, "contentLength": "3000000"},
			{"itag": 999, "url": "", "mimeType": "video/mp4", "height": 2160, "qualityLabel": "2160p"}
		]
	}
}`

func newTestYouTube(t *testing.T, handler http.HandlerFunc) (*YouTube, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	yt := NewYouTube(srv.Client(), "test-agent")
	yt.baseURL = srv.URL
	return yt, srv
}

func TestYouTubeResolve(t *testing.T) {
	yt, srv := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/youtubei/v1/player" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(playerFixture))
	})
	defer srv.Close()

	descs, err := yt.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ContentAny)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("Resolve() returned %d descriptors, want 1", len(descs))
	}

	desc := descs[0]
	if desc.Title != "Test Video" {
		t.Errorf("title = %q, want %q", desc.Title, "Test Video")
	}
	if desc.DurationSeconds != 212 {
		t.Errorf("duration = %v, want 212", desc.DurationSeconds)
	}
	if desc.ThumbnailURL != "http://img.example/large.jpg" {
		t.Errorf("thumbnail = %q, want the largest", desc.ThumbnailURL)
	}
	// 360p progressive, 1080p video-only, 128k audio-only. The format
	// without a URL is dropped.
	if len(desc.Renditions) != 3 {
		t.Fatalf("got %d renditions, want 3: %+v", len(desc.Renditions), desc.Renditions)
	}

	progressive := desc.Renditions[0]
	if !progressive.HasVideo || !progressive.HasAudio || progressive.SortKey != 360 {
		t.Errorf("progressive rendition = %+v", progressive)
	}
	videoOnly := desc.Renditions[1]
	if !videoOnly.HasVideo || videoOnly.HasAudio || videoOnly.SortKey != 1080 {
		t.Errorf("video-only rendition = %+v", videoOnly)
	}
	audioOnly := desc.Renditions[2]
	if audioOnly.HasVideo || !audioOnly.HasAudio || audioOnly.Container != "m4a" {
		t.Errorf("audio-only rendition = %+v", audioOnly)
	}
	if audioOnly.SortKey != 128 {
		t.Errorf("audio sortKey = %d, want 128", audioOnly.SortKey)
	}
}

func TestYouTubeResolveAudioContent(t *testing.T) {
	yt, srv := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playerFixture))
	})
	defer srv.Close()

	descs, err := yt.Resolve(context.Background(), "dQw4w9WgXcQ", ContentAudio)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	desc := descs[0]
	if desc.Kind != models.KindAudio {
		t.Errorf("kind = %q, want %q", desc.Kind, models.KindAudio)
	}
	for _, r := range desc.Renditions {
		if r.HasVideo {
			t.Errorf("audio descriptor carries video rendition %+v", r)
		}
	}
}

func TestYouTubePlayability(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantKind models.ErrorKind
	}{
		{
			name:     "login required",
			response: `{"playabilityStatus": {"status": "LOGIN_REQUIRED", "reason": "Sign in to confirm your age"}}`,
			wantKind: models.ErrPrivateOrRestricted,
		},
		{
			name:     "unplayable",
			response: `{"playabilityStatus": {"status": "UNPLAYABLE", "reason": "Video unavailable in your country"}}`,
			wantKind: models.ErrPrivateOrRestricted,
		},
		{
			name:     "error",
			response: `{"playabilityStatus": {"status": "ERROR", "reason": "Video unavailable"}}`,
			wantKind: models.ErrNotFound,
		},
		{
			name:     "unknown status",
			response: `{"playabilityStatus": {"status": "LIVE_STREAM_OFFLINE"}}`,
			wantKind: models.ErrUpstreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yt, srv := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			})
			defer srv.Close()

			_, err := yt.Resolve(context.Background(), "dQw4w9WgXcQ", ContentAny)
			if models.KindOf(err) != tt.wantKind {
				t.Errorf("Resolve() error kind = %v, want %v (err: %v)", models.KindOf(err), tt.wantKind, err)
			}
		})
	}
}

func TestYouTubePlaylistUnsupported(t *testing.T) {
	yt := NewYouTube(http.DefaultClient, "test-agent")
	_, err := yt.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PLabc", ContentAny)
	if models.KindOf(err) != models.ErrUnsupported {
		t.Errorf("playlist error kind = %v, want unsupported", models.KindOf(err))
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=shared&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"not a url", ""},
	}

	for _, tt := range tests {
		if got := extractVideoID(tt.input); got != tt.want {
			t.Errorf("extractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
