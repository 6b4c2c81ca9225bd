package selector

import (
	"reflect"
	"testing"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

func videoDescriptor() *models.MediaDescriptor {
	return &models.MediaDescriptor{
		Kind:  models.KindVideo,
		Title: "clip",
		Renditions: []models.Rendition{
			{SourceURL: "combined-720", Container: "mp4", HasVideo: true, HasAudio: true, QualityLabel: "720p", SortKey: 720},
			{SourceURL: "video-1080", Container: "mp4", HasVideo: true, QualityLabel: "1080p", SortKey: 1080},
			{SourceURL: "audio-128", Container: "m4a", HasAudio: true, QualityLabel: "128kbps", SortKey: 128},
		},
	}
}

func TestSelectMergeWhenNoCombinedAtQuality(t *testing.T) {
	plan := Select(videoDescriptor(), "1080p", true)

	if plan.Kind != models.PlanMergeRequired {
		t.Fatalf("plan kind = %v, want merge_required", plan.Kind)
	}
	if plan.VideoRendition.SourceURL != "video-1080" {
		t.Errorf("video rendition = %q, want video-1080", plan.VideoRendition.SourceURL)
	}
	if plan.AudioRendition.SourceURL != "audio-128" {
		t.Errorf("audio rendition = %q, want audio-128", plan.AudioRendition.SourceURL)
	}
}

func TestSelectPrefersCombinedOverMerge(t *testing.T) {
	plan := Select(videoDescriptor(), "720p", true)

	if plan.Kind != models.PlanDirect {
		t.Fatalf("plan kind = %v, want direct", plan.Kind)
	}
	if plan.Rendition.SourceURL != "combined-720" {
		t.Errorf("rendition = %q, want combined-720", plan.Rendition.SourceURL)
	}
}

func TestSelectUnsatisfiableWithoutAudio(t *testing.T) {
	d := &models.MediaDescriptor{
		Kind: models.KindImage,
		Renditions: []models.Rendition{
			{SourceURL: "img-1", Container: "jpg", HasVideo: true, SortKey: 1080},
			{SourceURL: "img-2", Container: "jpg", HasVideo: true, SortKey: 720},
		},
	}

	plan := Select(d, "1080p", true)

	if plan.Kind != models.PlanUnsatisfiable {
		t.Fatalf("plan kind = %v, want unsatisfiable", plan.Kind)
	}
	if plan.Reason != "no audio available" {
		t.Errorf("reason = %q, want %q", plan.Reason, "no audio available")
	}
}

func TestSelectNeverPicksAudioOnlyForVideo(t *testing.T) {
	plan := Select(videoDescriptor(), "144p", false)

	if plan.Kind != models.PlanDirect {
		t.Fatalf("plan kind = %v, want direct", plan.Kind)
	}
	if !plan.Rendition.HasVideo {
		t.Errorf("direct plan for a video descriptor picked a rendition without video: %q", plan.Rendition.SourceURL)
	}
}

func TestSelectGracefulDegradation(t *testing.T) {
	// Nothing at or below 144p: the lowest available wins, never an error.
	plan := Select(videoDescriptor(), "144p", false)

	if plan.Kind != models.PlanDirect {
		t.Fatalf("plan kind = %v, want direct", plan.Kind)
	}
	if plan.Rendition.SortKey != 720 {
		t.Errorf("rendition sortKey = %d, want lowest available 720", plan.Rendition.SortKey)
	}
}

func TestSelectClosestWithoutExceeding(t *testing.T) {
	d := &models.MediaDescriptor{
		Kind: models.KindVideo,
		Renditions: []models.Rendition{
			{SourceURL: "v-480", Container: "mp4", HasVideo: true, HasAudio: true, SortKey: 480},
			{SourceURL: "v-720", Container: "mp4", HasVideo: true, HasAudio: true, SortKey: 720},
			{SourceURL: "v-2160", Container: "mp4", HasVideo: true, HasAudio: true, SortKey: 2160},
		},
	}

	plan := Select(d, "1080p", false)

	if plan.Rendition.SourceURL != "v-720" {
		t.Errorf("rendition = %q, want v-720 (closest without exceeding 1080)", plan.Rendition.SourceURL)
	}
}

func TestSelectTieBreakPrefersMP4ThenStableOrder(t *testing.T) {
	d := &models.MediaDescriptor{
		Kind: models.KindVideo,
		Renditions: []models.Rendition{
			{SourceURL: "webm-first", Container: "webm", HasVideo: true, HasAudio: true, SortKey: 720},
			{SourceURL: "mp4-second", Container: "mp4", HasVideo: true, HasAudio: true, SortKey: 720},
			{SourceURL: "mp4-third", Container: "mp4", HasVideo: true, HasAudio: true, SortKey: 720},
		},
	}

	plan := Select(d, "720p", false)
	if plan.Rendition.SourceURL != "mp4-second" {
		t.Errorf("rendition = %q, want mp4-second (mp4 preferred, earliest wins)", plan.Rendition.SourceURL)
	}
}

func TestSelectIdempotent(t *testing.T) {
	d := videoDescriptor()
	first := Select(d, "1080p", true)
	second := Select(d, "1080p", true)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Select is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestSelectAudioOnlyRequest(t *testing.T) {
	d := &models.MediaDescriptor{
		Kind: models.KindAudio,
		Renditions: []models.Rendition{
			{SourceURL: "aud-64", Container: "m4a", HasAudio: true, SortKey: 64},
			{SourceURL: "aud-128", Container: "m4a", HasAudio: true, SortKey: 128},
		},
	}

	plan := Select(d, "128kbps", true)

	if plan.Kind != models.PlanDirect {
		t.Fatalf("plan kind = %v, want direct", plan.Kind)
	}
	if plan.Rendition.SourceURL != "aud-128" {
		t.Errorf("rendition = %q, want aud-128", plan.Rendition.SourceURL)
	}
}

func TestSelectEmptyCandidates(t *testing.T) {
	d := &models.MediaDescriptor{
		Kind: models.KindVideo,
		Renditions: []models.Rendition{
			{SourceURL: "audio-only", Container: "m4a", HasAudio: true, SortKey: 128},
		},
	}

	plan := Select(d, "1080p", false)
	if plan.Kind != models.PlanUnsatisfiable {
		t.Errorf("plan kind = %v, want unsatisfiable for video descriptor without video renditions", plan.Kind)
	}
}
