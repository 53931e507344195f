// Package notifications emits job lifecycle events to external
// observers.
//
// Events are always logged; when a webhook URL is configured they are
// additionally POSTed as JSON. Delivery failures are logged and
// swallowed, never failing the job that triggered them.
package notifications
