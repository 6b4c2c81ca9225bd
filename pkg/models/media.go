package models

import (
	"strings"
)

// Kind identifies the broad media category of a descriptor.
type Kind string

// Media kinds
const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindGIF   Kind = "gif"
)

// Author describes the account that published a media item.
type Author struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Rendition is one concrete fetchable representation of a media item
// at a specific quality and container.
type Rendition struct {
	SourceURL string `json:"source_url"`
	Container string `json:"container"`
	// HasVideo marks a visual stream of any sort; photo and GIF
	// renditions carry it even though they hold no video track.
	HasVideo bool `json:"has_video"`
	HasAudio bool `json:"has_audio"`
	QualityLabel    string `json:"quality_label"`
	ApproxSizeBytes int64  `json:"approx_size_bytes,omitempty"`
	// SortKey orders renditions numerically: pixel height for visual
	// renditions, bitrate in kbps for audio-only ones.
	SortKey int `json:"sort_key"`
}

// MediaDescriptor is the normalized result of resolving one media item,
// independent of the source platform.
type MediaDescriptor struct {
	Kind            Kind        `json:"kind"`
	Title           string      `json:"title"`
	ThumbnailURL    string      `json:"thumbnail_url,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	Author          *Author     `json:"author,omitempty"`
	Renditions      []Rendition `json:"renditions"`
}

// Normalize discards renditions that carry neither a video nor an audio
// stream. Order of the remaining renditions is preserved.
func (d *MediaDescriptor) Normalize() {
	kept := d.Renditions[:0]
	for _, r := range d.Renditions {
		if r.HasVideo || r.HasAudio {
			kept = append(kept, r)
		}
	}
	d.Renditions = kept
}

// Validate reports whether the descriptor satisfies the model
// invariants: a non-empty rendition list, and for video descriptors at
// least one rendition carrying a video stream.
func (d *MediaDescriptor) Validate() error {
	if len(d.Renditions) == 0 {
		return NewError(ErrUpstreamError, "descriptor has no renditions")
	}
	if d.Kind == KindVideo {
		for _, r := range d.Renditions {
			if r.HasVideo {
				return nil
			}
		}
		return NewError(ErrUpstreamError, "video descriptor has no video rendition")
	}
	return nil
}

// Filename builds a download filename from the descriptor title and the
// container of the chosen rendition.
func (d *MediaDescriptor) Filename(container string) string {
	name := SanitizeFilename(d.Title)
	if name == "" {
		name = "media"
	}
	if container == "" {
		container = "bin"
	}
	return name + "." + container
}

// SanitizeFilename strips characters that are unsafe in filenames or in
// a Content-Disposition header.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// ContentTypeFor maps a container tag to a MIME type for the delivery
// response.
func ContentTypeFor(kind Kind, container string) string {
	switch container {
	case "mp4":
		if kind == KindAudio {
			return "audio/mp4"
		}
		return "video/mp4"
	case "webm":
		if kind == KindAudio {
			return "audio/webm"
		}
		return "video/webm"
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
