// Package resolve locates or assembles a playable media file for a
// content id.
//
// Downloaders may leave a single muxed file, or separate audio and video
// fragments under ambiguous names. The resolver prefers a ready muxed
// file and otherwise merges the best fragments through an ordered
// cascade of container strategies, validating every merge before
// accepting it.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"alogger/internal/logging"
	"alogger/internal/media/ffprobe"
)

// ErrNoPlayableMedia reports that no candidate file and no merge
// strategy yielded a video-containing output.
var ErrNoPlayableMedia = errors.New("no playable media")

// Resolver finds the best playable file for a content id.
type Resolver struct {
	prober *ffprobe.Prober
	ffmpeg string
	logger *slog.Logger
}

// New constructs a resolver around ffprobe and ffmpeg.
func New(prober *ffprobe.Prober, ffmpegBinary string, logger *slog.Logger) (*Resolver, error) {
	if prober == nil {
		return nil, errors.New("prober required")
	}
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	return &Resolver{
		prober: prober,
		ffmpeg: ffmpegBinary,
		logger: logging.NewComponentLogger(logger, "media-resolver"),
	}, nil
}

type candidate struct {
	path  string
	size  int64
	rank  int
	audio ffprobe.Presence
	video ffprobe.Presence
}

// Likely video containers first, then audio-only containers.
var containerRank = map[string]int{
	".mp4":  5,
	".mkv":  4,
	".webm": 3,
	".mov":  3,
	".m4v":  2,
	".m4a":  1,
	".mp3":  1,
	".opus": 1,
}

// ResolvePlayable returns the path of a playable file for contentID
// inside mediaDir. preferred, when non-empty and existing, joins the
// candidate set. The result is guaranteed to contain a video stream;
// audio is best effort when only a video-only candidate exists.
func (r *Resolver) ResolvePlayable(ctx context.Context, mediaDir, contentID, preferred string) (string, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return "", errors.New("content id required")
	}

	candidates, err := r.gatherCandidates(ctx, mediaDir, contentID, preferred)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no files for %s in %s", ErrNoPlayableMedia, contentID, mediaDir)
	}

	if best := bestMuxed(candidates); best != nil {
		return best.path, nil
	}

	video := largestWith(candidates, func(c candidate) bool {
		return c.video == ffprobe.PresencePresent && c.audio != ffprobe.PresencePresent
	})
	audio := largestWith(candidates, func(c candidate) bool {
		return c.audio == ffprobe.PresencePresent && c.video != ffprobe.PresencePresent
	})
	if video != nil && audio != nil {
		merged, err := r.merge(ctx, mediaDir, contentID, video.path, audio.path)
		if err == nil {
			return merged, nil
		}
		r.logger.Warn("all merge strategies failed",
			logging.String(logging.FieldContentID, contentID),
			logging.Error(err))
	}

	if fallback := largestWith(candidates, func(c candidate) bool {
		return c.video == ffprobe.PresencePresent
	}); fallback != nil {
		r.logger.Warn("falling back to video-only candidate",
			logging.String(logging.FieldContentID, contentID),
			logging.String("path", fallback.path))
		return fallback.path, nil
	}

	return "", fmt.Errorf("%w: no video stream among %d candidates for %s", ErrNoPlayableMedia, len(candidates), contentID)
}

func (r *Resolver) gatherCandidates(ctx context.Context, mediaDir, contentID, preferred string) ([]candidate, error) {
	entries, err := os.ReadDir(mediaDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("scan media directory: %w", err)
	}

	paths := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, contentID) {
			continue
		}
		// In-progress downloads are never candidates.
		if strings.HasSuffix(name, ".part") {
			continue
		}
		paths[filepath.Join(mediaDir, name)] = struct{}{}
	}
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		if _, err := os.Stat(preferred); err == nil {
			paths[preferred] = struct{}{}
		}
	}

	candidates := make([]candidate, 0, len(paths))
	for path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		cand := candidate{
			path: path,
			size: info.Size(),
			rank: containerRank[strings.ToLower(filepath.Ext(path))],
		}
		probe, err := r.prober.Inspect(ctx, path)
		if err != nil {
			r.logger.Debug("probe failed, treating streams as unknown",
				logging.String("path", path), logging.Error(err))
		} else {
			cand.audio = probe.Audio
			cand.video = probe.Video
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func bestMuxed(candidates []candidate) *candidate {
	var best *candidate
	for i := range candidates {
		c := &candidates[i]
		if c.audio != ffprobe.PresencePresent || c.video != ffprobe.PresencePresent {
			continue
		}
		if best == nil || c.rank > best.rank || (c.rank == best.rank && c.size > best.size) {
			best = c
		}
	}
	return best
}

func largestWith(candidates []candidate, match func(candidate) bool) *candidate {
	var best *candidate
	for i := range candidates {
		c := &candidates[i]
		if !match(*c) {
			continue
		}
		if best == nil || c.size > best.size {
			best = c
		}
	}
	return best
}
