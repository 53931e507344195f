// Package ytdlp wraps the downloader tool for metadata fetches and
// media downloads.
package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"alogger/internal/procrun"
	"alogger/internal/services"
)

// ErrMissingContentID reports metadata output without a content id.
var ErrMissingContentID = errors.New("metadata missing content id")

// Metadata is the downloader's structured description of one item.
type Metadata struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Channel    string `json:"channel"`
	Uploader   string `json:"uploader"`
	UploaderID string `json:"uploader_id"`
	Duration   int64  `json:"duration"`
	UploadDate string `json:"upload_date"`
	WebpageURL string `json:"webpage_url"`
	Thumbnail  string `json:"thumbnail"`
	ViewCount  int64  `json:"view_count"`
	LikeCount  int64  `json:"like_count"`

	// Raw holds the complete metadata document for storage.
	Raw []byte `json:"-"`
}

// Client invokes the downloader binary.
type Client struct {
	binary string
	ffmpeg string
}

// New constructs a downloader client. The ffmpeg location is passed
// through so the tool can mux fragments itself when possible.
func New(binary, ffmpegBinary string) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("downloader binary required")
	}
	return &Client{binary: binary, ffmpeg: strings.TrimSpace(ffmpegBinary)}, nil
}

// FetchMetadata runs the downloader in metadata-only mode and parses the
// single JSON document it prints.
func (c *Client) FetchMetadata(ctx context.Context, url string, control procrun.Control) (*Metadata, error) {
	result, err := procrun.Run(ctx, procrun.Command{
		Binary: c.binary,
		Args: []string{
			"--no-warnings",
			"--dump-single-json",
			"--skip-download",
			url,
		},
		OnProcess:       control.OnProcess,
		ShouldTerminate: control.ShouldTerminate,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "metadata", "fetch", url, err)
	}

	raw := []byte(strings.TrimSpace(result.Stdout))
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "metadata", "parse", url, err)
	}
	meta.Raw = raw
	if strings.TrimSpace(meta.ID) == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingContentID, url)
	}
	return &meta, nil
}

// Download fetches the best available video+audio for url, capped at
// 1080p, asking the tool to merge into mp4 when it can. The returned
// path is the directly merged file when present; an empty path means the
// caller must resolve candidates from the media directory itself.
func (c *Client) Download(ctx context.Context, mediaDir, url, contentID string, control procrun.Control) (string, error) {
	outTemplate := filepath.Join(mediaDir, contentID+".%(ext)s")
	args := []string{
		"--no-warnings",
		"--newline",
	}
	if c.ffmpeg != "" {
		args = append(args, "--ffmpeg-location", c.ffmpeg)
	}
	args = append(args,
		"-S", "res:1080,fps",
		"-f", "bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"--print", "after_move:filepath",
		"--no-simulate",
		"-o", outTemplate,
		url,
	)

	result, err := procrun.Run(ctx, procrun.Command{
		Binary:          c.binary,
		Args:            args,
		OnProcess:       control.OnProcess,
		ShouldTerminate: control.ShouldTerminate,
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "download", "fetch", url, err)
	}

	directPath := filepath.Join(mediaDir, contentID+".mp4")
	if _, statErr := os.Stat(directPath); statErr == nil {
		return directPath, nil
	}
	if printed := existingPathsFromStdout(result.Stdout); len(printed) > 0 {
		return printed[len(printed)-1], nil
	}
	return "", nil
}

// existingPathsFromStdout keeps stdout lines that name files actually
// present on disk. Tool versions differ in what they print, so this is
// best effort.
func existingPathsFromStdout(stdout string) []string {
	var paths []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsAny(line, "\t") {
			continue
		}
		if !filepath.IsAbs(line) {
			continue
		}
		if info, err := os.Stat(line); err == nil && !info.IsDir() {
			paths = append(paths, line)
		}
	}
	return paths
}
