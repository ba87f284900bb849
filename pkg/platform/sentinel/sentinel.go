// Package sentinel holds the infrastructure facts stores report. Services
// translate them into domain errors; handlers never see them directly.
package sentinel

import "errors"

var (
	// ErrNotFound means no row or key exists for the lookup.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a backing service did not answer.
	ErrUnavailable = errors.New("unavailable")
)
