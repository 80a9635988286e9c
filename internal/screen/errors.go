package screen

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned when a response arrived after a newer request was
// issued. The response is dropped and nothing is shown.
var ErrSuperseded = errors.New("response superseded by a newer request")

// ValidationError means the input was rejected before any request was sent.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// RecordingError is a failure to set up, stop or finalize a microphone capture.
type RecordingError struct {
	Op  string
	Err error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording %s failed: %v", e.Op, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }

// PermissionDenied reports a missing platform permission. At startup it is advisory.
type PermissionDenied struct {
	Capability string
	Err        error
}

func (e *PermissionDenied) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s permission is required", e.Capability)
	}
	return fmt.Sprintf("%s permission is required: %v", e.Capability, e.Err)
}

func (e *PermissionDenied) Unwrap() error { return e.Err }
