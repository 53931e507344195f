package logging

// Standardized attribute keys. Keep these stable; dashboards and log
// filters key on them.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldWorkerID  = "worker_id"
	FieldJobID     = "job_id"
	FieldContentID = "content_id"
	FieldStage     = "stage"
	FieldRunID     = "run_id"
	FieldErrorHint = "error_hint"
)
