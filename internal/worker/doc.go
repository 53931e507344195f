// Package worker runs claim loops against the job store.
//
// Each worker repeatedly claims a queued job and drives it through the
// ingest pipeline. Operators can pause a worker (suspending its attached
// external process), kill its active job with optional file cleanup, and
// read lock-protected snapshots of its state. Workers never share jobs;
// the store's claim operation guarantees exclusivity.
package worker
