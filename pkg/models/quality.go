package models

import (
	"strconv"
	"strings"
)

// DefaultQualityKey is assumed when a request carries no quality label.
const DefaultQualityKey = 1080

// QualityKey converts a quality label into its numeric sort key:
// "1080p" -> 1080, "128kbps" -> 128, "720" -> 720. Unparseable labels
// fall back to DefaultQualityKey so a sloppy client still gets the
// documented closest-match behavior instead of an error.
func QualityKey(label string) int {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return DefaultQualityKey
	}
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return DefaultQualityKey
	}
	key, err := strconv.Atoi(label[:i])
	if err != nil {
		return DefaultQualityKey
	}
	return key
}

// QualityLabelForHeight renders a video height as a quality label.
func QualityLabelForHeight(height int) string {
	return strconv.Itoa(height) + "p"
}

// QualityLabelForBitrate renders an audio bitrate (bits per second) as
// a quality label in kbps.
func QualityLabelForBitrate(bitsPerSecond int) string {
	return strconv.Itoa(bitsPerSecond/1000) + "kbps"
}
