// Package queue persists ingest jobs, content metadata, and transcript
// segments in SQLite.
//
// Jobs move through queued, downloading, transcribing, and the terminal
// done or failed states. Claiming a job is atomic: a single conditional
// update guarantees that exactly one worker receives a given queued job
// even under concurrent claimers. Transcript text is mirrored into an
// FTS index by triggers so search stays in sync with segment rewrites.
package queue
