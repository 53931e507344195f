package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"alogger/internal/logging"
	"alogger/internal/media/ffprobe"
	"alogger/internal/procrun"
)

type mergeStrategy struct {
	name      string
	container string
	args      func(videoPath, audioPath, outPath string) []string
}

// Ordered from cheapest to most expensive. Each later strategy handles a
// codec/container combination the previous one cannot.
var mergeStrategies = []mergeStrategy{
	{
		name:      "remux-mp4",
		container: ".mp4",
		args: func(v, a, out string) []string {
			return []string{
				"-y", "-v", "error",
				"-i", v, "-i", a,
				"-map", "0:v:0", "-map", "1:a:0",
				"-c", "copy",
				"-movflags", "+faststart",
				out,
			}
		},
	},
	{
		name:      "copy-video-encode-audio-mp4",
		container: ".mp4",
		args: func(v, a, out string) []string {
			return []string{
				"-y", "-v", "error",
				"-i", v, "-i", a,
				"-map", "0:v:0", "-map", "1:a:0",
				"-c:v", "copy",
				"-c:a", "aac", "-b:a", "192k",
				"-movflags", "+faststart",
				out,
			}
		},
	},
	{
		name:      "remux-mkv",
		container: ".mkv",
		args: func(v, a, out string) []string {
			return []string{
				"-y", "-v", "error",
				"-i", v, "-i", a,
				"-map", "0:v:0", "-map", "1:a:0",
				"-c", "copy",
				out,
			}
		},
	},
	{
		name:      "transcode-mp4",
		container: ".mp4",
		args: func(v, a, out string) []string {
			return []string{
				"-y", "-v", "error",
				"-i", v, "-i", a,
				"-map", "0:v:0", "-map", "1:a:0",
				"-c:v", "libx264", "-preset", "medium", "-crf", "23",
				"-pix_fmt", "yuv420p",
				"-c:a", "aac", "-b:a", "192k",
				"-movflags", "+faststart",
				out,
			}
		},
	},
}

// merge combines a video-only and an audio-only file, trying each
// strategy in order and returning the first validated output.
func (r *Resolver) merge(ctx context.Context, mediaDir, contentID, videoPath, audioPath string) (string, error) {
	var lastErr error
	for _, strategy := range mergeStrategies {
		outPath := filepath.Join(mediaDir, contentID+".merged"+strategy.container)
		result, err := procrun.Run(ctx, procrun.Command{
			Binary: r.ffmpeg,
			Args:   strategy.args(videoPath, audioPath, outPath),
		})
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", strategy.name, err)
			_ = os.Remove(outPath)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.logger.Debug("merge strategy failed",
				logging.String("strategy", strategy.name),
				logging.String("stderr", result.Stderr),
				logging.Error(err))
			continue
		}
		if err := r.validateMerged(ctx, outPath); err != nil {
			lastErr = fmt.Errorf("%s: %w", strategy.name, err)
			_ = os.Remove(outPath)
			r.logger.Debug("merge output rejected",
				logging.String("strategy", strategy.name),
				logging.Error(err))
			continue
		}
		r.logger.Info("merged separate audio and video streams",
			logging.String(logging.FieldContentID, contentID),
			logging.String("strategy", strategy.name),
			logging.String("path", outPath))
		return outPath, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no merge strategy attempted")
	}
	return "", fmt.Errorf("%w: %w", ErrNoPlayableMedia, lastErr)
}

// validateMerged accepts a merge output only if the file exists, probes
// positive for both streams, and survives a short decode smoke test.
func (r *Resolver) validateMerged(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("output empty")
	}

	probe, err := r.prober.Inspect(ctx, path)
	if err != nil {
		return fmt.Errorf("reprobe: %w", err)
	}
	if probe.Video != ffprobe.PresencePresent {
		return errors.New("no video stream in output")
	}
	if probe.Audio != ffprobe.PresencePresent {
		return errors.New("no audio stream in output")
	}

	// Decode the first couple of seconds to a null sink. Catches
	// containers that probe fine but hold undecodable data.
	if _, err := procrun.Run(ctx, procrun.Command{
		Binary: r.ffmpeg,
		Args: []string{
			"-v", "error",
			"-i", path,
			"-t", "2",
			"-f", "null", "-",
		},
	}); err != nil {
		return fmt.Errorf("decode smoke test: %w", err)
	}
	return nil
}
