// Package selector decides how a resolved media descriptor is turned
// into one deliverable artifact: stream a single rendition directly,
// combine separate video and audio renditions, or report that the
// request cannot be satisfied.
package selector

import (
	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// preferredContainer wins ties between renditions with equal sort keys.
const preferredContainer = "mp4"

// Select computes the delivery plan for one descriptor. requestedQuality
// is a label such as "1080p"; requireAudio demands that the delivered
// artifact carries an audio stream.
//
// Quality matching never fails on its own: when nothing sits at or
// below the requested quality, the lowest available rendition is chosen
// instead. A merge is planned only when it achieves strictly better
// quality, within bounds, than any combined rendition.
func Select(d *models.MediaDescriptor, requestedQuality string, requireAudio bool) models.DeliveryPlan {
	target := models.QualityKey(requestedQuality)

	candidates := d.Renditions
	if d.Kind == models.KindVideo {
		candidates = filter(candidates, func(r models.Rendition) bool { return r.HasVideo })
	}
	if len(candidates) == 0 {
		return models.Unsatisfiable("no usable renditions")
	}

	if !requireAudio {
		best := atOrBelow(candidates, target)
		if best == nil {
			best = lowest(candidates)
		}
		return models.Direct(*best)
	}

	withAudio := filter(candidates, func(r models.Rendition) bool { return r.HasAudio })
	combined := atOrBelow(withAudio, target)

	videoOnly := filter(candidates, func(r models.Rendition) bool { return r.HasVideo && !r.HasAudio })
	video := atOrBelow(videoOnly, target)
	if video == nil {
		video = lowest(videoOnly)
	}

	audioOnly := filter(d.Renditions, func(r models.Rendition) bool { return r.HasAudio && !r.HasVideo })
	audio := highest(audioOnly)

	if combined != nil {
		// A combined rendition avoids the merge cost; merging wins only
		// when a video-only rendition within bounds beats its quality.
		if video != nil && audio != nil && video.SortKey <= target && video.SortKey > combined.SortKey {
			return models.MergeRequired(*video, *audio)
		}
		return models.Direct(*combined)
	}

	if video != nil && audio != nil {
		return models.MergeRequired(*video, *audio)
	}

	// No pair to merge. A combined rendition above the requested quality
	// still beats an error: degrade to the closest one.
	if len(withAudio) > 0 {
		return models.Direct(*lowest(withAudio))
	}

	if audio == nil {
		return models.Unsatisfiable("no audio available")
	}
	return models.Unsatisfiable("no video available")
}

func filter(rs []models.Rendition, keep func(models.Rendition) bool) []models.Rendition {
	var out []models.Rendition
	for _, r := range rs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// atOrBelow returns the rendition with the highest sort key not
// exceeding target, or nil when every rendition exceeds it.
func atOrBelow(rs []models.Rendition, target int) *models.Rendition {
	var best *models.Rendition
	for i := range rs {
		r := &rs[i]
		if r.SortKey > target {
			continue
		}
		if best == nil || r.SortKey > best.SortKey || beatsOnTie(r, best) {
			best = r
		}
	}
	return best
}

// highest returns the rendition with the highest sort key.
func highest(rs []models.Rendition) *models.Rendition {
	var best *models.Rendition
	for i := range rs {
		r := &rs[i]
		if best == nil || r.SortKey > best.SortKey || beatsOnTie(r, best) {
			best = r
		}
	}
	return best
}

// lowest returns the rendition with the lowest sort key.
func lowest(rs []models.Rendition) *models.Rendition {
	var best *models.Rendition
	for i := range rs {
		r := &rs[i]
		if best == nil || r.SortKey < best.SortKey || beatsOnTie(r, best) {
			best = r
		}
	}
	return best
}

// beatsOnTie prefers the preferred container at equal sort keys.
// Connector order is otherwise stable: an earlier rendition is never
// displaced by a later one that is not strictly better.
func beatsOnTie(candidate, incumbent *models.Rendition) bool {
	return candidate.SortKey == incumbent.SortKey &&
		candidate.Container == preferredContainer &&
		incumbent.Container != preferredContainer
}
