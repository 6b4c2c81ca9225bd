package models

// PlanKind identifies the delivery strategy chosen for one descriptor.
type PlanKind string

// Delivery plan kinds
const (
	PlanDirect        PlanKind = "direct"
	PlanMergeRequired PlanKind = "merge_required"
	PlanUnsatisfiable PlanKind = "unsatisfiable"
)

// DeliveryPlan is the format selector's decision for one request:
// stream a single rendition as-is, combine a video-only and an
// audio-only rendition, or report that no combination works.
type DeliveryPlan struct {
	Kind PlanKind `json:"kind"`

	// Rendition is set for PlanDirect.
	Rendition *Rendition `json:"rendition,omitempty"`

	// VideoRendition and AudioRendition are set for PlanMergeRequired.
	VideoRendition *Rendition `json:"video_rendition,omitempty"`
	AudioRendition *Rendition `json:"audio_rendition,omitempty"`

	// Reason is set for PlanUnsatisfiable.
	Reason string `json:"reason,omitempty"`
}

// Direct returns a plan that streams a single rendition unchanged.
func Direct(r Rendition) DeliveryPlan {
	return DeliveryPlan{Kind: PlanDirect, Rendition: &r}
}

// MergeRequired returns a plan that combines separate video and audio
// renditions into one file.
func MergeRequired(video, audio Rendition) DeliveryPlan {
	return DeliveryPlan{Kind: PlanMergeRequired, VideoRendition: &video, AudioRendition: &audio}
}

// Unsatisfiable returns a plan indicating no rendition combination can
// meet the request.
func Unsatisfiable(reason string) DeliveryPlan {
	return DeliveryPlan{Kind: PlanUnsatisfiable, Reason: reason}
}
