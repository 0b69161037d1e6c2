package dispatcher

import (
	"errors"
	"fmt"

	"github.com/local/pdfsqueeze/internal/docmodel"
)

// ValidationError is a fatal payload problem; the job is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// TransientError marks a failure worth retrying with backoff.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Reason, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// isRetryable decides whether a failed job goes back on the delayed
// queue. Unreadable input and bad payloads are final; anything else
// (disk, S3, converter hiccups) gets another attempt.
func isRetryable(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var oe *docmodel.OpenError
	if errors.As(err, &oe) {
		return false
	}
	return true
}
