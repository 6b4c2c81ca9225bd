package models

import "testing"

func TestQualityKey(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"1080p", 1080},
		{"720p", 720},
		{"128kbps", 128},
		{"2160p", 2160},
		{"720", 720},
		{" 480P ", 480},
		{"", DefaultQualityKey},
		{"best", DefaultQualityKey},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := QualityKey(tt.label); got != tt.want {
				t.Errorf("QualityKey(%q) = %d, want %d", tt.label, got, tt.want)
			}
		})
	}
}

func TestQualityLabels(t *testing.T) {
	if got := QualityLabelForHeight(1080); got != "1080p" {
		t.Errorf("QualityLabelForHeight(1080) = %q", got)
	}
	if got := QualityLabelForBitrate(128000); got != "128kbps" {
		t.Errorf("QualityLabelForBitrate(128000) = %q", got)
	}
}
