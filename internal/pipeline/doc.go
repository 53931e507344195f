// Package pipeline runs the ordered ingest stages for one claimed job:
// metadata fetch, download, transcribe, index.
//
// Stages update the job's status and fields as they complete. A stage
// failure stops the pipeline; the worker records the terminal failed
// status. Cancellation is cooperative and checked between and within
// external tool calls.
package pipeline
