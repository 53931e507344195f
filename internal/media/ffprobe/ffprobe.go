// Package ffprobe inspects media files for stream composition.
//
// Presence answers are tri-state: a probe failure yields
// PresenceUnknown rather than a hard no, so callers can decide whether
// an unreadable file should still be processed.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"alogger/internal/procrun"
)

// Presence reports whether a stream kind was observed in a file.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceAbsent
	PresencePresent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Info summarizes the probe result for one file.
type Info struct {
	FormatName      string
	DurationSeconds float64
	Audio           Presence
	Video           Presence
}

// Prober wraps ffprobe invocations.
type Prober struct {
	binary string
}

// New constructs a prober around the given ffprobe binary.
func New(binary string) (*Prober, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffprobe binary required")
	}
	return &Prober{binary: binary}, nil
}

type probePayload struct {
	Streams []struct {
		CodecType   string `json:"codec_type"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Inspect probes the file and reports its stream composition. Tool or
// parse failures return an error alongside an all-unknown Info.
func (p *Prober) Inspect(ctx context.Context, path string) (Info, error) {
	if strings.TrimSpace(path) == "" {
		return Info{}, errors.New("media path required")
	}

	result, err := procrun.Run(ctx, procrun.Command{
		Binary: p.binary,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var payload probePayload
	if err := json.Unmarshal([]byte(result.Stdout), &payload); err != nil {
		return Info{}, fmt.Errorf("parse probe output for %s: %w", path, err)
	}

	info := Info{
		FormatName: payload.Format.FormatName,
		Audio:      PresenceAbsent,
		Video:      PresenceAbsent,
	}
	if payload.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil {
			info.DurationSeconds = seconds
		}
	}
	for _, stream := range payload.Streams {
		switch stream.CodecType {
		case "audio":
			info.Audio = PresencePresent
		case "video":
			// Cover art rides along as a video stream; it does not make
			// a file playable video.
			if stream.Disposition.AttachedPic == 0 {
				info.Video = PresencePresent
			}
		}
	}
	return info, nil
}

// HasAudio reports audio presence, mapping probe failures to unknown.
func (p *Prober) HasAudio(ctx context.Context, path string) Presence {
	info, err := p.Inspect(ctx, path)
	if err != nil {
		return PresenceUnknown
	}
	return info.Audio
}

// HasVideo reports video presence, mapping probe failures to unknown.
func (p *Prober) HasVideo(ctx context.Context, path string) Presence {
	info, err := p.Inspect(ctx, path)
	if err != nil {
		return PresenceUnknown
	}
	return info.Video
}
