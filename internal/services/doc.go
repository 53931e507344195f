// Package services holds the shared error taxonomy for pipeline stages.
//
// Stage implementations tag failures with one of the exported sentinel
// errors so callers can classify them with errors.Is without parsing
// message text.
package services
