package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

var (
	instagramShortcodeRe = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)`)
	instagramUsernameRe  = regexp.MustCompile(`instagram\.com/([^/?#]+)`)
)

// Instagram resolves posts, reels and profiles. Posts go through the
// web JSON endpoint with an ld+json page scrape as fallback; profiles
// return their timeline media as a batch of descriptors.
type Instagram struct {
	client    *http.Client
	userAgent string
	baseURL   string
}

// NewInstagram creates the Instagram connector.
func NewInstagram(client *http.Client, userAgent string) *Instagram {
	return &Instagram{
		client:    client,
		userAgent: userAgent,
		baseURL:   "https://www.instagram.com",
	}
}

// Platform returns the platform name.
func (ig *Instagram) Platform() string {
	return "instagram"
}

// Resolve dispatches on input shape: handles and profile URLs resolve
// the account timeline, post URLs resolve a single post or sidecar.
func (ig *Instagram) Resolve(ctx context.Context, input string, contentType ContentType) ([]*models.MediaDescriptor, error) {
	if contentType == ContentProfile || strings.HasPrefix(input, "@") {
		return ig.resolveProfile(ctx, extractUsername(input))
	}

	if m := instagramShortcodeRe.FindStringSubmatch(input); m != nil {
		return ig.resolvePost(ctx, m[1])
	}

	// A profile URL without /p/ or /reel/ also means timeline.
	if username := extractUsername(input); username != "" {
		return ig.resolveProfile(ctx, username)
	}

	return nil, models.NewError(models.ErrUnsupported, "not a recognizable Instagram URL or handle")
}

type igMediaNode struct {
	Typename   string `json:"__typename"`
	IsVideo    bool   `json:"is_video"`
	VideoURL   string `json:"video_url"`
	DisplayURL string `json:"display_url"`
	Shortcode  string `json:"shortcode"`
	Dimensions struct {
		Height int `json:"height"`
		Width  int `json:"width"`
	} `json:"dimensions"`
	EdgeSidecarToChildren struct {
		Edges []struct {
			Node igMediaNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
	EdgeMediaToCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	Owner struct {
		Username      string `json:"username"`
		FullName      string `json:"full_name"`
		ProfilePicURL string `json:"profile_pic_url"`
	} `json:"owner"`
}

type igPostResponse struct {
	GraphQL struct {
		ShortcodeMedia igMediaNode `json:"shortcode_media"`
	} `json:"graphql"`
}

type igProfileResponse struct {
	GraphQL struct {
		User struct {
			Username                 string `json:"username"`
			FullName                 string `json:"full_name"`
			ProfilePicURLHD          string `json:"profile_pic_url_hd"`
			IsPrivate                bool   `json:"is_private"`
			EdgeOwnerToTimelineMedia struct {
				Edges []struct {
					Node igMediaNode `json:"node"`
				} `json:"edges"`
			} `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"graphql"`
}

func (ig *Instagram) resolvePost(ctx context.Context, shortcode string) ([]*models.MediaDescriptor, error) {
	body, status, err := ig.get(ctx, fmt.Sprintf("%s/p/%s/?__a=1&__d=dis", ig.baseURL, shortcode))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, models.NewError(models.ErrNotFound, "post not found")
	}

	var post igPostResponse
	if err := json.Unmarshal(body, &post); err == nil && postUsable(post.GraphQL.ShortcodeMedia) {
		return ig.descriptorsFromPost(post.GraphQL.ShortcodeMedia)
	}

	// The JSON endpoint frequently serves an HTML login wall instead;
	// fall back to scraping the post page metadata.
	return ig.scrapePost(ctx, fmt.Sprintf("%s/p/%s/", ig.baseURL, shortcode))
}

func postUsable(node igMediaNode) bool {
	return node.VideoURL != "" || node.DisplayURL != "" || len(node.EdgeSidecarToChildren.Edges) > 0
}

func (ig *Instagram) descriptorsFromPost(media igMediaNode) ([]*models.MediaDescriptor, error) {
	title := "Instagram Post"
	if len(media.EdgeMediaToCaption.Edges) > 0 && media.EdgeMediaToCaption.Edges[0].Node.Text != "" {
		title = media.EdgeMediaToCaption.Edges[0].Node.Text
	}
	author := &models.Author{
		DisplayName: media.Owner.FullName,
		Handle:      media.Owner.Username,
		AvatarURL:   media.Owner.ProfilePicURL,
	}

	nodes := []igMediaNode{media}
	if media.Typename == "GraphSidecar" && len(media.EdgeSidecarToChildren.Edges) > 0 {
		nodes = nodes[:0]
		for _, edge := range media.EdgeSidecarToChildren.Edges {
			nodes = append(nodes, edge.Node)
		}
	}

	descs := make([]*models.MediaDescriptor, 0, len(nodes))
	for _, node := range nodes {
		desc := descriptorFromNode(node, title, author)
		if desc == nil {
			continue
		}
		descs = append(descs, desc)
	}
	if len(descs) == 0 {
		return nil, models.NewError(models.ErrUpstreamError, "post carries no fetchable media")
	}
	return descs, nil
}

func descriptorFromNode(node igMediaNode, title string, author *models.Author) *models.MediaDescriptor {
	desc := &models.MediaDescriptor{
		Title:        title,
		ThumbnailURL: node.DisplayURL,
		Author:       author,
	}

	height := node.Dimensions.Height
	if height == 0 {
		height = 720
	}

	switch {
	case node.IsVideo && node.VideoURL != "":
		desc.Kind = models.KindVideo
		desc.Renditions = []models.Rendition{{
			SourceURL:    node.VideoURL,
			Container:    "mp4",
			HasVideo:     true,
			HasAudio:     true,
			QualityLabel: models.QualityLabelForHeight(height),
			SortKey:      height,
		}}
	case node.DisplayURL != "":
		desc.Kind = models.KindImage
		desc.Renditions = []models.Rendition{{
			SourceURL:    node.DisplayURL,
			Container:    "jpg",
			HasVideo:     true,
			QualityLabel: models.QualityLabelForHeight(height),
			SortKey:      height,
		}}
	default:
		return nil
	}
	return desc
}

// ldPost is the subset of the schema.org metadata embedded in post
// pages.
type ldPost struct {
	Caption      string          `json:"caption"`
	ContentURL   string          `json:"contentUrl"`
	ThumbnailURL string          `json:"thumbnailUrl"`
	Video        json.RawMessage `json:"video"`
	Image        json.RawMessage `json:"image"`
	Author       struct {
		Name          string `json:"name"`
		AlternateName string `json:"alternateName"`
	} `json:"author"`
}

func (ig *Instagram) scrapePost(ctx context.Context, url string) ([]*models.MediaDescriptor, error) {
	body, status, err := ig.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, models.NewError(models.ErrNotFound, "post not found")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.WrapError(models.ErrUpstreamError, "parsing post page", err)
	}

	var post *ldPost
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var candidate ldPost
		if err := json.Unmarshal([]byte(s.Text()), &candidate); err != nil {
			return true
		}
		if candidate.ContentURL != "" || candidate.Video != nil || candidate.Image != nil {
			post = &candidate
			return false
		}
		return true
	})
	if post == nil {
		return nil, models.NewError(models.ErrUpstreamError, "could not extract post data")
	}

	title := post.Caption
	if title == "" {
		title = "Instagram Post"
	}

	isVideo := post.Video != nil
	sourceURL := post.ContentURL
	if sourceURL == "" {
		sourceURL = rawString(post.Video)
	}
	if sourceURL == "" {
		sourceURL = rawString(post.Image)
		isVideo = false
	}
	if sourceURL == "" {
		return nil, models.NewError(models.ErrUpstreamError, "could not extract post data")
	}

	desc := &models.MediaDescriptor{
		Title:        title,
		ThumbnailURL: post.ThumbnailURL,
		Author: &models.Author{
			DisplayName: post.Author.Name,
			Handle:      strings.TrimPrefix(post.Author.AlternateName, "@"),
		},
	}
	if isVideo {
		desc.Kind = models.KindVideo
		desc.Renditions = []models.Rendition{{
			SourceURL:    sourceURL,
			Container:    "mp4",
			HasVideo:     true,
			HasAudio:     true,
			QualityLabel: "720p",
			SortKey:      720,
		}}
	} else {
		desc.Kind = models.KindImage
		desc.Renditions = []models.Rendition{{
			SourceURL:    sourceURL,
			Container:    "jpg",
			HasVideo:     true,
			QualityLabel: "720p",
			SortKey:      720,
		}}
	}
	return []*models.MediaDescriptor{desc}, nil
}

func (ig *Instagram) resolveProfile(ctx context.Context, username string) ([]*models.MediaDescriptor, error) {
	if username == "" {
		return nil, models.NewError(models.ErrUnsupported, "missing Instagram username")
	}

	body, status, err := ig.get(ctx, fmt.Sprintf("%s/%s/?__a=1&__d=dis", ig.baseURL, username))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, models.NewError(models.ErrNotFound, "profile not found")
	}

	var profile igProfileResponse
	if err := json.Unmarshal(body, &profile); err != nil || profile.GraphQL.User.Username == "" {
		return nil, models.NewError(models.ErrUpstreamError, "could not fetch profile data")
	}

	user := profile.GraphQL.User
	if user.IsPrivate {
		return nil, models.NewError(models.ErrPrivateOrRestricted, "this account is private")
	}

	author := &models.Author{
		DisplayName: user.FullName,
		Handle:      user.Username,
		AvatarURL:   user.ProfilePicURLHD,
	}

	var descs []*models.MediaDescriptor
	for _, edge := range user.EdgeOwnerToTimelineMedia.Edges {
		title := fmt.Sprintf("%s %s", user.Username, edge.Node.Shortcode)
		if desc := descriptorFromNode(edge.Node, title, author); desc != nil {
			descs = append(descs, desc)
		}
	}
	if len(descs) == 0 {
		return nil, models.NewError(models.ErrNotFound, "profile has no fetchable media")
	}
	return descs, nil
}

func (ig *Instagram) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, models.WrapError(models.ErrUpstreamError, "building request", err)
	}
	browserHeaders(req, ig.userAgent)
	return fetchPage(ctx, ig.client, req)
}

// rawString unwraps a JSON value that may be either a string or an
// object, returning the string form when present.
func rawString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func extractUsername(input string) string {
	if strings.HasPrefix(input, "@") {
		return strings.TrimSpace(input[1:])
	}
	if m := instagramUsernameRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if !strings.Contains(input, "/") && !strings.Contains(input, ".") {
		return strings.TrimSpace(input)
	}
	return ""
}
