package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected is wrapped by RejectedError.
	ErrRejected = errors.New("push rejected")

	// ErrBatchTooLarge is returned when a push carries more than the
	// configured maximum number of records.
	ErrBatchTooLarge = errors.New("push batch too large")

	// ErrInvalidCheckpoint is returned for a negative pull checkpoint.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")

	// ErrClock is returned when the server clock is not positive or is more
	// than MaxCheckpointWait behind the last issued checkpoint.
	ErrClock = errors.New("checkpoint clock failure")

	// ErrInvalidPolicy is returned for push policies naming unknown tables
	// or operations, or allowing deletes on authoritative tables.
	ErrInvalidPolicy = errors.New("invalid push policy")

	// ErrInvalidDate is returned by FromWire for a date field that is not
	// an integer millisecond value.
	ErrInvalidDate = errors.New("invalid date value")
)

// Rejection codes.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
)

// Rejection describes one create or update that could not be applied.
type Rejection struct {
	Table     string `json:"table"`
	ID        string `json:"id,omitempty"`
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// RejectedError aggregates the rejections of a push. The whole batch has
// been rolled back when it is returned.
type RejectedError struct {
	Rejections []Rejection
}

func (e *RejectedError) Error() string {
	if len(e.Rejections) == 1 {
		r := e.Rejections[0]
		return fmt.Sprintf("push rejected: %s %s %s: %s", r.Operation, r.Table, r.ID, r.Message)
	}
	return fmt.Sprintf("push rejected: %d records", len(e.Rejections))
}

func (e *RejectedError) Unwrap() error { return ErrRejected }
