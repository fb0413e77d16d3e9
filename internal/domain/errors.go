package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("download not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrJobNotCompleted   = errors.New("download not completed")
	ErrDuplicateJob      = errors.New("download id already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a malformed or missing request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExtractionError wraps any failure reported by the extraction backend.
// Private or deleted videos, malformed URLs and network failures all collapse into it.
type ExtractionError struct {
	Op  string // "metadata", "playlist" or "download"
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("Error extracting %s: %v", e.opLabel(), e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) opLabel() string {
	switch e.Op {
	case "metadata":
		return "video info"
	case "playlist":
		return "playlist info"
	default:
		return e.Op
	}
}

// TransitionError is returned when a job is asked to move against its state machine
type TransitionError struct {
	ID   string
	From JobStatus
	To   JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsExtraction reports whether err is an ExtractionError
func IsExtraction(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
