package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// innertube client identity accepted by the player endpoint without a
// signature challenge.
const (
	innertubeClientName    = "ANDROID"
	innertubeClientVersion = "19.09.37"
	innertubeSDKVersion    = 30
)

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com|youtube-nocookie\.com)/watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/(?:shorts|embed|v)/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^([A-Za-z0-9_-]{11})$`),
}

// YouTube resolves watch URLs, short URLs and bare video ids through
// the innertube player endpoint.
type YouTube struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

// NewYouTube creates the YouTube connector.
func NewYouTube(client *http.Client, userAgent string) *YouTube {
	return &YouTube{
		client:    client,
		userAgent: userAgent,
		baseURL:   "https://www.youtube.com",
	}
}

// Platform returns the platform name.
func (y *YouTube) Platform() string {
	return "youtube"
}

// Resolve fetches the player response for the video and normalizes its
// formats into renditions.
func (y *YouTube) Resolve(ctx context.Context, input string, contentType ContentType) ([]*models.MediaDescriptor, error) {
	if contentType == ContentPlaylist || strings.Contains(input, "list=") {
		return nil, models.NewError(models.ErrUnsupported, "playlist resolution requires the YouTube Data API")
	}

	videoID := extractVideoID(input)
	if videoID == "" {
		return nil, models.NewError(models.ErrUnsupported, "not a recognizable YouTube URL or video id")
	}

	player, err := y.fetchPlayer(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if err := classifyPlayability(player.PlayabilityStatus); err != nil {
		return nil, err
	}

	desc := y.buildDescriptor(player, contentType)
	desc.Normalize()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return []*models.MediaDescriptor{desc}, nil
}

type playerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client struct {
			ClientName        string `json:"clientName"`
			ClientVersion     string `json:"clientVersion"`
			AndroidSDKVersion int    `json:"androidSdkVersion"`
			HL                string `json:"hl"`
		} `json:"client"`
	} `json:"context"`
}

type playabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type playerResponse struct {
	PlayabilityStatus playabilityStatus `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
		Author        string `json:"author"`
		ChannelID     string `json:"channelId"`
		Thumbnail     struct {
			Thumbnails []struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"videoDetails"`
	StreamingData struct {
		Formats         []streamFormat `json:"formats"`
		AdaptiveFormats []streamFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type streamFormat struct {
	ITag            int    `json:"itag"`
	URL             string `json:"url"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	AverageBitrate  int    `json:"averageBitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	QualityLabel    string `json:"qualityLabel"`
	AudioQuality    string `json:"audioQuality"`
	ContentLength   string `json:"contentLength"`
	ApproxDurationM string `json:"approxDurationMs"`
}

func (y *YouTube) fetchPlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	var payload playerRequest
	payload.VideoID = videoID
	payload.Context.Client.ClientName = innertubeClientName
	payload.Context.Client.ClientVersion = innertubeClientVersion
	payload.Context.Client.AndroidSDKVersion = innertubeSDKVersion
	payload.Context.Client.HL = "en"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstreamError, "encoding player request", err)
	}

	url := y.baseURL + "/youtubei/v1/player?prettyPrint=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, models.WrapError(models.ErrUpstreamError, "building player request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", y.userAgent)

	data, status, err := fetchPage(ctx, y.client, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, models.NewError(models.ErrUpstreamError,
			fmt.Sprintf("player endpoint returned status %d", status))
	}

	var player playerResponse
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, models.WrapError(models.ErrUpstreamError, "parsing player response", err)
	}
	return &player, nil
}

func classifyPlayability(status playabilityStatus) error {
	reason := status.Reason
	switch status.Status {
	case "", "OK":
		return nil
	case "LOGIN_REQUIRED":
		if reason == "" {
			reason = "sign-in required"
		}
		return models.NewError(models.ErrPrivateOrRestricted, reason)
	case "UNPLAYABLE", "AGE_CHECK_REQUIRED", "CONTENT_CHECK_REQUIRED":
		if reason == "" {
			reason = "video is restricted"
		}
		return models.NewError(models.ErrPrivateOrRestricted, reason)
	case "ERROR":
		if reason == "" {
			reason = "video unavailable"
		}
		return models.NewError(models.ErrNotFound, reason)
	default:
		if reason == "" {
			reason = "playability status " + status.Status
		}
		return models.NewError(models.ErrUpstreamError, reason)
	}
}

func (y *YouTube) buildDescriptor(player *playerResponse, contentType ContentType) *models.MediaDescriptor {
	details := player.VideoDetails

	desc := &models.MediaDescriptor{
		Kind:  models.KindVideo,
		Title: details.Title,
		Author: &models.Author{
			DisplayName: details.Author,
			Handle:      details.ChannelID,
		},
	}
	if secs, err := strconv.ParseFloat(details.LengthSeconds, 64); err == nil {
		desc.DurationSeconds = secs
	}
	if n := len(details.Thumbnail.Thumbnails); n > 0 {
		desc.ThumbnailURL = details.Thumbnail.Thumbnails[n-1].URL
	}

	for _, f := range player.StreamingData.Formats {
		if r, ok := renditionFromFormat(f, true); ok {
			desc.Renditions = append(desc.Renditions, r)
		}
	}
	for _, f := range player.StreamingData.AdaptiveFormats {
		if r, ok := renditionFromFormat(f, false); ok {
			desc.Renditions = append(desc.Renditions, r)
		}
	}

	if contentType == ContentAudio {
		desc.Kind = models.KindAudio
		var audio []models.Rendition
		for _, r := range desc.Renditions {
			if r.HasAudio && !r.HasVideo {
				audio = append(audio, r)
			}
		}
		desc.Renditions = audio
	}

	return desc
}

// renditionFromFormat maps one innertube format to a rendition.
// Formats without a direct URL (signature-protected streams) are
// skipped rather than half-resolved.
func renditionFromFormat(f streamFormat, progressive bool) (models.Rendition, bool) {
	if f.URL == "" {
		return models.Rendition{}, false
	}

	container := containerFromMime(f.MimeType)
	audioOnly := strings.HasPrefix(f.MimeType, "audio/")

	r := models.Rendition{
		SourceURL: f.URL,
		Container: container,
	}
	if size, err := strconv.ParseInt(f.ContentLength, 10, 64); err == nil {
		r.ApproxSizeBytes = size
	}

	switch {
	case audioOnly:
		bitrate := f.AverageBitrate
		if bitrate == 0 {
			bitrate = f.Bitrate
		}
		r.HasAudio = true
		r.SortKey = bitrate / 1000
		r.QualityLabel = models.QualityLabelForBitrate(bitrate)
	case progressive:
		r.HasVideo = true
		r.HasAudio = f.AudioQuality != ""
		r.SortKey = f.Height
		r.QualityLabel = f.QualityLabel
	default:
		r.HasVideo = true
		r.SortKey = f.Height
		r.QualityLabel = f.QualityLabel
	}

	if r.QualityLabel == "" && r.HasVideo {
		r.QualityLabel = models.QualityLabelForHeight(f.Height)
	}
	return r, true
}

func containerFromMime(mimeType string) string {
	mediaType := mimeType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	parts := strings.SplitN(strings.TrimSpace(mediaType), "/", 2)
	if len(parts) != 2 {
		return "mp4"
	}
	switch parts[1] {
	case "mp4":
		if parts[0] == "audio" {
			return "m4a"
		}
		return "mp4"
	default:
		return parts[1]
	}
}

func extractVideoID(input string) string {
	for _, pattern := range youtubeIDPatterns {
		if m := pattern.FindStringSubmatch(input); m != nil {
			return m[1]
		}
	}
	return ""
}
