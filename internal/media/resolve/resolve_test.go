package resolve_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alogger/internal/media/ffprobe"
	"alogger/internal/media/resolve"
)

const (
	bothStreams = `{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"format_name":"mp4"}}`
	videoOnly   = `{"streams":[{"codec_type":"video"}],"format":{"format_name":"mp4"}}`
	audioOnly   = `{"streams":[{"codec_type":"audio"}],"format":{"format_name":"webm"}}`
)

// The stub ffprobe prints the probed file's contents; test files declare
// their own stream layout. The stub ffmpeg writes a merged file carrying
// both streams, and treats the null-sink smoke test as success.
func newResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	binDir := t.TempDir()

	probeScript := "#!/bin/sh\nfor a in \"$@\"; do last=\"$a\"; done\ncat \"$last\"\n"
	probePath := filepath.Join(binDir, "ffprobe")
	if err := os.WriteFile(probePath, []byte(probeScript), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	ffmpegScript := "#!/bin/sh\n" +
		"for a in \"$@\"; do last=\"$a\"; done\n" +
		"if [ \"$last\" = \"-\" ]; then exit 0; fi\n" +
		"printf '%s' '" + bothStreams + "' > \"$last\"\n"
	ffmpegPath := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(ffmpegPath, []byte(ffmpegScript), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	prober, err := ffprobe.New(probePath)
	if err != nil {
		t.Fatalf("ffprobe.New: %v", err)
	}
	resolver, err := resolve.New(prober, ffmpegPath, nil)
	if err != nil {
		t.Fatalf("resolve.New: %v", err)
	}
	return resolver
}

func writeCandidate(t *testing.T, dir, name, payload string, pad int) {
	t.Helper()
	content := payload + strings.Repeat(" ", pad)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write candidate %s: %v", name, err)
	}
}

func TestResolvePrefersMuxedCandidateByRank(t *testing.T) {
	resolver := newResolver(t)
	mediaDir := t.TempDir()
	// Larger mkv loses to mp4 on container rank.
	writeCandidate(t, mediaDir, "abc123.mkv", bothStreams, 4096)
	writeCandidate(t, mediaDir, "abc123.mp4", bothStreams, 0)
	writeCandidate(t, mediaDir, "abc123.part", bothStreams, 0)

	path, err := resolver.ResolvePlayable(context.Background(), mediaDir, "abc123", "")
	if err != nil {
		t.Fatalf("ResolvePlayable failed: %v", err)
	}
	if filepath.Base(path) != "abc123.mp4" {
		t.Fatalf("expected mp4 preferred, got %s", path)
	}
}

func TestResolveRanksM4VBelowWebm(t *testing.T) {
	resolver := newResolver(t)
	mediaDir := t.TempDir()
	// The m4v is larger but sits a tier below webm.
	writeCandidate(t, mediaDir, "abc123.m4v", bothStreams, 4096)
	writeCandidate(t, mediaDir, "abc123.webm", bothStreams, 0)

	path, err := resolver.ResolvePlayable(context.Background(), mediaDir, "abc123", "")
	if err != nil {
		t.Fatalf("ResolvePlayable failed: %v", err)
	}
	if filepath.Base(path) != "abc123.webm" {
		t.Fatalf("expected webm preferred over m4v, got %s", path)
	}
}

func TestResolveMergesSeparateStreams(t *testing.T) {
	resolver := newResolver(t)
	mediaDir := t.TempDir()
	writeCandidate(t, mediaDir, "abc123.f137.mp4", videoOnly, 0)
	writeCandidate(t, mediaDir, "abc123.f251.webm", audioOnly, 0)

	path, err := resolver.ResolvePlayable(context.Background(), mediaDir, "abc123", "")
	if err != nil {
		t.Fatalf("ResolvePlayable failed: %v", err)
	}
	if filepath.Base(path) != "abc123.merged.mp4" {
		t.Fatalf("expected merged output, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read merged file: %v", err)
	}
	if !strings.Contains(string(data), `"audio"`) || !strings.Contains(string(data), `"video"`) {
		t.Fatalf("merged file should probe positive for both streams: %s", data)
	}
}

func TestResolveFallsBackToLargestVideoCandidate(t *testing.T) {
	resolver := newResolver(t)
	mediaDir := t.TempDir()
	// Two video-only files, no audio source to merge with.
	writeCandidate(t, mediaDir, "abc123.f136.mp4", videoOnly, 0)
	writeCandidate(t, mediaDir, "abc123.f137.mp4", videoOnly, 4096)

	path, err := resolver.ResolvePlayable(context.Background(), mediaDir, "abc123", "")
	if err != nil {
		t.Fatalf("ResolvePlayable failed: %v", err)
	}
	if filepath.Base(path) != "abc123.f137.mp4" {
		t.Fatalf("expected largest video candidate, got %s", path)
	}
}

func TestResolveFailsWithoutVideo(t *testing.T) {
	resolver := newResolver(t)
	mediaDir := t.TempDir()
	writeCandidate(t, mediaDir, "abc123.m4a", audioOnly, 0)

	_, err := resolver.ResolvePlayable(context.Background(), mediaDir, "abc123", "")
	if !errors.Is(err, resolve.ErrNoPlayableMedia) {
		t.Fatalf("expected ErrNoPlayableMedia, got %v", err)
	}
}

func TestResolveFailsOnEmptyDirectory(t *testing.T) {
	resolver := newResolver(t)
	_, err := resolver.ResolvePlayable(context.Background(), t.TempDir(), "abc123", "")
	if !errors.Is(err, resolve.ErrNoPlayableMedia) {
		t.Fatalf("expected ErrNoPlayableMedia, got %v", err)
	}
}

func TestMergeRejectsUnvalidatedOutput(t *testing.T) {
	binDir := t.TempDir()
	probeScript := "#!/bin/sh\nfor a in \"$@\"; do last=\"$a\"; done\ncat \"$last\"\n"
	probePath := filepath.Join(binDir, "ffprobe")
	if err := os.WriteFile(probePath, []byte(probeScript), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	// This ffmpeg produces output that still lacks audio, for every
	// strategy, so validation must reject all of them.
	ffmpegScript := "#!/bin/sh\n" +
		"for a in \"$@\"; do last=\"$a\"; done\n" +
		"if [ \"$last\" = \"-\" ]; then exit 0; fi\n" +
		"printf '%s' '" + videoOnly + "' > \"$last\"\n"
	ffmpegPath := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(ffmpegPath, []byte(ffmpegScript), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	prober, _ := ffprobe.New(probePath)
	resolver, err := resolve.New(prober, ffmpegPath, nil)
	if err != nil {
		t.Fatalf("resolve.New: %v", err)
	}

	mediaDir := t.TempDir()
	writeCandidate(t, mediaDir, "abc123.f137.mp4", videoOnly, 4096)
	writeCandidate(t, mediaDir, "abc123.f251.webm", audioOnly, 0)

	// All merges fail validation; the resolver falls back to the
	// largest video-only candidate rather than returning a bad merge.
	path, err := resolver.ResolvePlayable(context.Background(), mediaDir, "abc123", "")
	if err != nil {
		t.Fatalf("ResolvePlayable failed: %v", err)
	}
	if filepath.Base(path) != "abc123.f137.mp4" {
		t.Fatalf("expected fallback to video candidate, got %s", path)
	}
	if _, statErr := os.Stat(filepath.Join(mediaDir, "abc123.merged.mp4")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("rejected merge outputs must be removed")
	}
}
