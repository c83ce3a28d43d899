package tableau

import (
	"errors"
	"fmt"
)

const (
	CodeConfiguration       = "E_CONFIGURATION"
	CodeUnsupportedResource = "E_UNSUPPORTED_RESOURCE"
	CodeResourceNotFound    = "E_RESOURCE_NOT_FOUND"
	CodeRemoteAction        = "E_REMOTE_ACTION"
	CodeJobPolling          = "E_JOB_POLLING"
	CodeJobFailed           = "E_JOB_FAILED"
	CodeJobCancelled        = "E_JOB_CANCELLED"
	CodeJobTimeout          = "E_JOB_TIMEOUT"
)

// Error wraps Tableau-specific failures with retryability hints.
// Retryable marks errors the host platform may reasonably retry; caller
// bugs (bad resource kind, missing credentials) and terminal job outcomes
// are not retryable.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

func wrapError(code string, retryable bool, err error) *Error {
	if err == nil {
		return &Error{Code: code, Retryable: retryable}
	}
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// NewError builds a taxonomy error. For layers above the connector that
// classify their own failures under the same codes.
func NewError(code string, retryable bool, err error) *Error {
	return wrapError(code, retryable, err)
}

func hasCode(err error, code string) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsConfigurationError reports whether err is a connection record with
// missing or unusable credential fields.
func IsConfigurationError(err error) bool { return hasCode(err, CodeConfiguration) }

// IsUnsupportedResource reports whether err is a resource kind or action
// outside the supported set.
func IsUnsupportedResource(err error) bool { return hasCode(err, CodeUnsupportedResource) }

// IsResourceNotFound reports whether err is a directory lookup with zero
// matches.
func IsResourceNotFound(err error) bool { return hasCode(err, CodeResourceNotFound) }

// IsRemoteActionError reports whether err is the server rejecting a
// refresh trigger.
func IsRemoteActionError(err error) bool { return hasCode(err, CodeRemoteAction) }

// IsJobPollingError reports whether err is a polling loop that exhausted
// its transient failure budget or lost its session.
func IsJobPollingError(err error) bool { return hasCode(err, CodeJobPolling) }

// IsJobFailed reports whether err is a job that reached a terminal failure
// on the server, including server-side cancellation.
func IsJobFailed(err error) bool {
	return hasCode(err, CodeJobFailed) || hasCode(err, CodeJobCancelled)
}

// IsJobCancelled reports whether err is a job cancelled on the server.
func IsJobCancelled(err error) bool { return hasCode(err, CodeJobCancelled) }

// IsJobTimeout reports whether err is a wait loop that exceeded its overall
// deadline before the job reached a terminal state.
func IsJobTimeout(err error) bool { return hasCode(err, CodeJobTimeout) }

// ErrorCode returns the taxonomy code carried by err, or an empty string
// when err carries none.
func ErrorCode(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
