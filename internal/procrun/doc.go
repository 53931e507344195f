// Package procrun executes external tools for the ingest pipeline.
//
// Stdout and stderr are drained concurrently so chatty tools never block
// on a full pipe. Callers may observe the running process through a
// Handle, which supports suspend, resume, and kill of the whole process
// group, and may supply a termination predicate that is polled while the
// tool runs.
package procrun
