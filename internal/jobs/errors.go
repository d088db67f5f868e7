package jobs

import (
	"github.com/cockroachdb/errors"
)

// Error classes. Use errors.Is against these; the message stored on a failed
// job is always the full err.Error() text.
var (
	ErrValidation        = errors.New("validation error")
	ErrFetch             = errors.New("fetch error")
	ErrExternalService   = errors.New("external service error")
	ErrPersistence       = errors.New("persistence error")
	ErrUnknownJobType    = errors.New("unknown job type")
	ErrLockLost          = errors.New("lock lost")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("job not found")
)

// Validation reports required input that is missing before any I/O happens.
func Validation(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// Fetch marks err as a failure to read the job's target record.
func Fetch(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrFetch)
}

// External marks err as a failure of a downstream storage or AI call.
func External(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrExternalService)
}

// Persistence marks err as a failure to write a result back.
func Persistence(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrPersistence)
}

// Classify names the error class for log fields and metric labels.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrUnknownJobType):
		return "unknown_job_type"
	case errors.Is(err, ErrLockLost):
		return "lock_lost"
	default:
		return "unknown"
	}
}
