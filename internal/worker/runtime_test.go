package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"alogger/internal/notifications"
	"alogger/internal/pipeline"
	"alogger/internal/queue"
	"alogger/internal/testsupport"
	"alogger/internal/worker"
)

const probeBoth = `{"streams":[{"codec_type":"video"},{"codec_type":"audio"}],"format":{"format_name":"mp4"}}`

const downloaderStub = `#!/bin/sh
meta=0
prev=""; out=""
for a in "$@"; do
  [ "$a" = "--skip-download" ] && meta=1
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ $meta -eq 1 ]; then
  printf '{"id":"abc123","title":"Hello"}'
  exit 0
fi
target=$(printf '%s' "$out" | sed 's/%(ext)s/mp4/')
printf '%s' '` + probeBoth + `' > "$target"
`

// slowDownloaderStub leaves a partial file behind and hangs so kill
// handling can be exercised deterministically.
const slowDownloaderStub = `#!/bin/sh
meta=0
prev=""; out=""
for a in "$@"; do
  [ "$a" = "--skip-download" ] && meta=1
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ $meta -eq 1 ]; then
  printf '{"id":"abc123","title":"Hello"}'
  exit 0
fi
target=$(printf '%s' "$out" | sed 's/%(ext)s/mp4/')
touch "$(dirname "$target")/abc123.f137.mp4.part"
sleep 30
`

// tickerDownloaderStub appends to a progress file every 50ms so tests
// can observe whether the download process is making progress.
const tickerDownloaderStub = `#!/bin/sh
meta=0
prev=""; out=""
for a in "$@"; do
  [ "$a" = "--skip-download" ] && meta=1
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ $meta -eq 1 ]; then
  printf '{"id":"abc123","title":"Hello"}'
  exit 0
fi
progress="$(dirname "$out")/progress.log"
while :; do
  echo tick >> "$progress"
  sleep 0.05
done
`

const proberStub = `#!/bin/sh
for a in "$@"; do last="$a"; done
cat "$last"
`

const transcriberStub = `#!/bin/sh
prev=""; outdir=""
for a in "$@"; do
  if [ "$prev" = "--output_dir" ]; then outdir="$a"; fi
  prev="$a"
done
stem=$(basename "$1")
stem="${stem%.*}"
printf '{"segments":[{"start":0.0,"end":2.5,"text":"hello"}]}' > "$outdir/$stem.json"
`

func workingStubs() []testsupport.Stub {
	return []testsupport.Stub{
		{Name: "yt-dlp", Script: downloaderStub},
		{Name: "whisper", Script: transcriberStub},
		{Name: "ffprobe", Script: proberStub},
		{Name: "ffmpeg"},
	}
}

func newRuntime(t *testing.T, stubs ...testsupport.Stub) (*worker.Runtime, *queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(stubs...))
	store := testsupport.MustOpenStore(t, cfg)
	stages, err := pipeline.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	notifier := notifications.NewService(cfg, nil)
	return worker.NewRuntime(1, cfg, store, stages, notifier, nil), store, cfg.Paths.MediaDir
}

func waitForStatus(t *testing.T, store *queue.Store, jobID int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status == want {
			return job
		}
		if job.Status.Terminal() {
			t.Fatalf("job reached %s (error %q) while waiting for %s", job.Status, job.ErrorText, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %d never reached %s", jobID, want)
	return nil
}

func TestClaimLoopProcessesQueuedJob(t *testing.T) {
	runtime, store, _ := newRuntime(t, workingStubs()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := testsupport.Enqueue(t, store, 0, "https://example/video1")
	runtime.Start(ctx)
	defer func() {
		if err := runtime.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	job := waitForStatus(t, store, ids[0], queue.StatusDone)
	if job.ContentID != "abc123" || job.MediaPath == "" || job.TranscriptPath == "" {
		t.Fatalf("completed job incomplete: %#v", job)
	}

	snapshot := runtime.Snapshot()
	if snapshot.State != worker.StateIdle || snapshot.JobID != 0 {
		t.Fatalf("worker should be idle after completion: %#v", snapshot)
	}
}

func TestProcessJobByIDRecordsFailure(t *testing.T) {
	runtime, store, _ := newRuntime(t,
		testsupport.Stub{Name: "yt-dlp", Script: "#!/bin/sh\necho 'extractor broke' >&2\nexit 1\n"},
		testsupport.Stub{Name: "whisper"},
		testsupport.Stub{Name: "ffprobe", Script: proberStub},
		testsupport.Stub{Name: "ffmpeg"},
	)
	ctx := context.Background()

	ids := testsupport.Enqueue(t, store, 0, "https://example/video1")
	if err := runtime.ProcessJobByID(ctx, ids[0]); err != nil {
		t.Fatalf("ProcessJobByID: %v", err)
	}

	job, err := store.GetJob(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.ErrorText == "" {
		t.Fatal("failed job must carry error text")
	}

	snapshot := runtime.Snapshot()
	if snapshot.State != worker.StateFailed || snapshot.LastError == "" {
		t.Fatalf("expected failed state with last error, got %#v", snapshot)
	}
}

func TestKillActiveRecordsOperatorKillAndDeletesFiles(t *testing.T) {
	runtime, store, mediaDir := newRuntime(t,
		testsupport.Stub{Name: "yt-dlp", Script: slowDownloaderStub},
		testsupport.Stub{Name: "whisper"},
		testsupport.Stub{Name: "ffprobe", Script: proberStub},
		testsupport.Stub{Name: "ffmpeg"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := testsupport.Enqueue(t, store, 0, "https://example/video1")
	runtime.Start(ctx)
	defer runtime.Stop()

	waitForDownload := func() {
		deadline := time.Now().Add(10 * time.Second)
		partial := filepath.Join(mediaDir, "abc123.f137.mp4.part")
		for time.Now().Before(deadline) {
			if _, err := os.Stat(partial); err == nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatal("download never started")
	}
	waitForDownload()

	if !runtime.KillActive(true) {
		t.Fatal("expected an active job to kill")
	}

	deadline := time.Now().Add(10 * time.Second)
	var job *queue.Job
	for time.Now().Before(deadline) {
		current, err := store.GetJob(ctx, ids[0])
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if current.Status == queue.StatusFailed {
			job = current
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job == nil {
		t.Fatal("killed job never failed")
	}
	if job.ErrorText != worker.KilledByOperatorText {
		t.Fatalf("expected %q, got %q", worker.KilledByOperatorText, job.ErrorText)
	}

	if _, err := os.Stat(filepath.Join(mediaDir, "abc123.f137.mp4.part")); !os.IsNotExist(err) {
		t.Fatal("partial media file must be deleted")
	}
}

func TestTogglePauseSuspendsAttachedProcess(t *testing.T) {
	runtime, store, mediaDir := newRuntime(t,
		testsupport.Stub{Name: "yt-dlp", Script: tickerDownloaderStub},
		testsupport.Stub{Name: "whisper"},
		testsupport.Stub{Name: "ffprobe", Script: proberStub},
		testsupport.Stub{Name: "ffmpeg"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	testsupport.Enqueue(t, store, 0, "https://example/video1")
	runtime.Start(ctx)
	defer runtime.Stop()

	progress := filepath.Join(mediaDir, "progress.log")
	size := func() int64 {
		info, err := os.Stat(progress)
		if err != nil {
			return 0
		}
		return info.Size()
	}
	waitGrowth := func(from int64) int64 {
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			if current := size(); current > from {
				return current
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatalf("download made no progress past %d bytes", from)
		return 0
	}

	waitGrowth(0)
	if got := runtime.TogglePause(); got != "paused" {
		t.Fatalf("expected paused, got %q", got)
	}
	// Allow an in-flight write to land, then the file must stop growing.
	time.Sleep(200 * time.Millisecond)
	frozen := size()
	time.Sleep(500 * time.Millisecond)
	if current := size(); current != frozen {
		t.Fatalf("suspended process kept writing: %d -> %d bytes", frozen, current)
	}

	if got := runtime.TogglePause(); got != "resumed" {
		t.Fatalf("expected resumed, got %q", got)
	}
	waitGrowth(frozen)
}

func TestJobEventsCarryRunID(t *testing.T) {
	received := make(chan notifications.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event notifications.Event
		_ = json.NewDecoder(r.Body).Decode(&event)
		received <- event
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithWebhook(server.URL),
		testsupport.WithStubbedBinaries(workingStubs()...))
	store := testsupport.MustOpenStore(t, cfg)
	stages, err := pipeline.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	runtime := worker.NewRuntime(3, cfg, store, stages, notifications.NewService(cfg, nil), nil)

	ids := testsupport.Enqueue(t, store, 0, "https://example/video1")
	if err := runtime.ProcessJobByID(context.Background(), ids[0]); err != nil {
		t.Fatalf("ProcessJobByID: %v", err)
	}

	event := <-received
	if event.Event != "done" || event.WorkerID != 3 {
		t.Fatalf("unexpected event: %#v", event)
	}
	if _, err := uuid.Parse(event.RunID); err != nil {
		t.Fatalf("run id must be a uuid, got %q: %v", event.RunID, err)
	}
}

func TestKillActiveWithoutJobReturnsFalse(t *testing.T) {
	runtime, _, _ := newRuntime(t, workingStubs()...)
	if runtime.KillActive(false) {
		t.Fatal("no active job, expected false")
	}
}

func TestTogglePausePreventsClaims(t *testing.T) {
	runtime, store, _ := newRuntime(t, workingStubs()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if got := runtime.TogglePause(); got != "paused" {
		t.Fatalf("expected paused, got %q", got)
	}
	runtime.Start(ctx)
	defer runtime.Stop()

	ids := testsupport.Enqueue(t, store, 0, "https://example/video1")
	time.Sleep(300 * time.Millisecond)

	job, err := store.GetJob(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("paused worker must not claim, job is %s", job.Status)
	}
	if snapshot := runtime.Snapshot(); snapshot.State != worker.StatePaused {
		t.Fatalf("expected paused snapshot, got %#v", snapshot)
	}

	if got := runtime.TogglePause(); got != "resumed" {
		t.Fatalf("expected resumed, got %q", got)
	}
	waitForStatus(t, store, ids[0], queue.StatusDone)
}

func TestPoolControlsWorkersByID(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithWorkerCount(2),
		testsupport.WithStubbedBinaries(workingStubs()...))
	store := testsupport.MustOpenStore(t, cfg)
	notifier := notifications.NewService(cfg, nil)

	pool, err := worker.NewPool(cfg, store, notifier, nil)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	snapshots := pool.Snapshots()
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(snapshots))
	}
	if snapshots[0].WorkerID != 1 || snapshots[1].WorkerID != 2 {
		t.Fatalf("worker ids must be 1-based: %#v", snapshots)
	}

	if _, err := pool.TogglePause(3); err == nil {
		t.Fatal("expected error for unknown worker id")
	}
	if state, err := pool.TogglePause(2); err != nil || state != "paused" {
		t.Fatalf("TogglePause(2) = %q, %v", state, err)
	}
	if killed, err := pool.KillActive(1, false); err != nil || killed {
		t.Fatalf("KillActive(1) = %v, %v", killed, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ids := testsupport.Enqueue(t, store, 0, "https://example/video1")
	pool.Start(ctx)
	waitForStatus(t, store, ids[0], queue.StatusDone)
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
