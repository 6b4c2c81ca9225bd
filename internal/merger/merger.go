// Package merger drives the external process that combines a
// video-only and an audio-only file into one playable artifact.
package merger

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/tecchey18-jpg/downloading-website/pkg/models"
)

// stderrTailBytes bounds how much process output is attached to a
// MergeFailed error.
const stderrTailBytes = 2048

// Merger combines complete video and audio input files into outputPath.
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpeg invokes the ffmpeg binary with a fixed argument contract:
// copy the video stream, transcode audio to AAC for mp4 output.
type FFmpeg struct {
	path    string
	timeout time.Duration
}

// NewFFmpeg creates an FFmpeg merger using the given binary path. A
// positive timeout bounds each merge run.
func NewFFmpeg(path string, timeout time.Duration) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, timeout: timeout}
}

// Merge runs ffmpeg and waits for it to finish. A nonzero exit maps to
// MergeFailed carrying the captured stderr tail; context expiry maps
// to Cancelled.
func (f *FFmpeg) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		outputPath,
	}

	mctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(mctx, f.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return models.WrapError(models.ErrCancelled, "merge cancelled", ctx.Err())
		}
		if mctx.Err() != nil {
			return models.WrapError(models.ErrMergeFailed, "merge timed out", mctx.Err())
		}
		return models.WrapError(models.ErrMergeFailed, stderrTail(stderr.Bytes()), err)
	}
	return nil
}

func stderrTail(out []byte) string {
	if len(out) > stderrTailBytes {
		out = out[len(out)-stderrTailBytes:]
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "merge process failed"
	}
	return text
}
