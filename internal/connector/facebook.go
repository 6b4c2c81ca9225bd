package connector

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// Facebook serves videos as escaped URLs inside inline page scripts.
// Markers rotate between page layouts, so several are tried per
// quality tier.
var (
	facebookHDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"hd_src":"([^"]+)"`),
		regexp.MustCompile(`"hd_src_no_ratelimit":"([^"]+)"`),
		regexp.MustCompile(`"playable_url_quality_hd":"([^"]+)"`),
	}
	facebookSDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"sd_src":"([^"]+)"`),
		regexp.MustCompile(`"sd_src_no_ratelimit":"([^"]+)"`),
		regexp.MustCompile(`"playable_url":"([^"]+)"`),
	}
	facebookTitleRe = regexp.MustCompile(`<title[^>]*>([^<]+)</title>`)
)

// Facebook resolves public video URLs by scraping the watch page.
type Facebook struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

// NewFacebook creates the Facebook connector.
func NewFacebook(client *http.Client, userAgent string) *Facebook {
	return &Facebook{
		client:    client,
		userAgent: userAgent,
		baseURL:   "https://www.facebook.com",
	}
}

// Platform returns the platform name.
func (fb *Facebook) Platform() string {
	return "facebook"
}

// Resolve fetches the video page and extracts the SD and HD stream
// URLs embedded in it.
func (fb *Facebook) Resolve(ctx context.Context, input string, contentType ContentType) ([]*models.MediaDescriptor, error) {
	pageURL, err := fb.canonicalize(input)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, models.WrapError(models.ErrUpstreamError, "building request", err)
	}
	browserHeaders(req, fb.userAgent)

	body, status, err := fetchPage(ctx, fb.client, req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, models.NewError(models.ErrNotFound, "video not found")
	}

	page := string(body)
	desc := &models.MediaDescriptor{
		Kind:  models.KindVideo,
		Title: fb.extractTitle(page),
	}

	if hd := firstMatch(facebookHDPatterns, page); hd != "" {
		desc.Renditions = append(desc.Renditions, models.Rendition{
			SourceURL:    hd,
			Container:    "mp4",
			HasVideo:     true,
			HasAudio:     true,
			QualityLabel: "720p",
			SortKey:      720,
		})
	}
	if sd := firstMatch(facebookSDPatterns, page); sd != "" {
		desc.Renditions = append(desc.Renditions, models.Rendition{
			SourceURL:    sd,
			Container:    "mp4",
			HasVideo:     true,
			HasAudio:     true,
			QualityLabel: "360p",
			SortKey:      360,
		})
	}

	if len(desc.Renditions) == 0 {
		if strings.Contains(page, "login") && !strings.Contains(page, "video") {
			return nil, models.NewError(models.ErrPrivateOrRestricted, "video requires login")
		}
		return nil, models.NewError(models.ErrNotFound, "could not extract video URL")
	}
	return []*models.MediaDescriptor{desc}, nil
}

// canonicalize rewrites mobile and short-link forms onto the desktop
// host, which carries the inline stream URLs.
func (fb *Facebook) canonicalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", models.NewError(models.ErrUnsupported, "missing Facebook URL")
	}
	if !strings.Contains(trimmed, "facebook.com") && !strings.Contains(trimmed, "fb.watch") {
		return "", models.NewError(models.ErrUnsupported, "not a recognizable Facebook URL")
	}

	out := trimmed
	out = strings.Replace(out, "m.facebook.com", "www.facebook.com", 1)
	out = strings.Replace(out, "web.facebook.com", "www.facebook.com", 1)
	if !strings.HasPrefix(out, "http") {
		out = "https://" + out
	}

	// Point page fetches at the configured base so tests can intercept.
	if idx := strings.Index(out, "facebook.com"); idx >= 0 && fb.baseURL != "https://www.facebook.com" {
		out = fb.baseURL + out[idx+len("facebook.com"):]
	}
	return out, nil
}

func (fb *Facebook) extractTitle(page string) string {
	if m := facebookTitleRe.FindStringSubmatch(page); m != nil {
		title := html.UnescapeString(strings.TrimSpace(m[1]))
		if title != "" && !strings.EqualFold(title, "facebook") {
			return title
		}
	}
	return "Facebook Video"
}

// firstMatch returns the first pattern hit, JSON-unescaped. Stream
// URLs appear inside script string literals with \/ and \u escapes.
func firstMatch(patterns []*regexp.Regexp, page string) string {
	for _, pattern := range patterns {
		m := pattern.FindStringSubmatch(page)
		if m == nil {
			continue
		}
		if decoded := jsonUnescape(m[1]); decoded != "" {
			return decoded
		}
	}
	return ""
}

func jsonUnescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return ""
	}
	return out
}
