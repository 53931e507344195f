// Package whisper wraps the transcription tool and its JSON artifacts.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"alogger/internal/procrun"
	"alogger/internal/queue"
	"alogger/internal/services"
)

// ErrNoTranscriptOutput reports that the tool exited cleanly but left no
// JSON artifact behind.
var ErrNoTranscriptOutput = errors.New("no transcript output")

// Client invokes the transcription binary.
type Client struct {
	binary   string
	model    string
	modelDir string
	language string
}

// New constructs a transcription client.
func New(binary, model, modelDir, language string) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("transcription binary required")
	}
	return &Client{
		binary:   binary,
		model:    strings.TrimSpace(model),
		modelDir: strings.TrimSpace(modelDir),
		language: strings.TrimSpace(language),
	}, nil
}

// Transcribe runs the tool against mediaPath, writing JSON output into
// outputDir, and returns the path of the produced transcript artifact.
func (c *Client) Transcribe(ctx context.Context, mediaPath, outputDir string, control procrun.Control) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript directory: %w", err)
	}

	args := []string{mediaPath}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if c.modelDir != "" {
		args = append(args, "--model_dir", c.modelDir)
	}
	if c.language != "" {
		args = append(args, "--language", c.language)
	}
	args = append(args,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	)

	if _, err := procrun.Run(ctx, procrun.Command{
		Binary:          c.binary,
		Args:            args,
		OnProcess:       control.OnProcess,
		ShouldTerminate: control.ShouldTerminate,
	}); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "run", mediaPath, err)
	}

	return resolveArtifact(outputDir, mediaPath)
}

// resolveArtifact finds the JSON file the tool produced. The tool
// usually writes "<media stem>.json", but the name can vary by codec
// and container, so fall back to the sole JSON file, then the newest.
func resolveArtifact(outputDir, mediaPath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	primary := filepath.Join(outputDir, stem+".json")
	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", fmt.Errorf("scan transcript directory: %w", err)
	}
	type jsonFile struct {
		path    string
		modTime int64
	}
	var files []jsonFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, jsonFile{
			path:    filepath.Join(outputDir, entry.Name()),
			modTime: info.ModTime().UnixNano(),
		})
	}
	switch len(files) {
	case 0:
		return "", fmt.Errorf("%w: no JSON files in %s", ErrNoTranscriptOutput, outputDir)
	case 1:
		return files[0].path, nil
	default:
		sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })
		return files[0].path, nil
	}
}

type transcriptPayload struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// LoadSegments parses a transcript artifact's segment list.
func LoadSegments(path string) ([]queue.SegmentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", path, err)
	}
	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	if payload.Segments == nil {
		return nil, fmt.Errorf("transcript %s missing segment list", path)
	}
	segments := make([]queue.SegmentInput, 0, len(payload.Segments))
	for _, segment := range payload.Segments {
		segments = append(segments, queue.SegmentInput{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}
	return segments, nil
}
