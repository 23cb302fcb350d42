package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrCurrencyMismatch = errors.New("currency does not match account currency")

	// Replay errors
	ErrReplayFailed = errors.New("replay update did not apply")

	// Transaction errors
	ErrSameAccount         = errors.New("cannot transfer to same account")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrTransactionNotFound = errors.New("transaction not found")

	// Retry errors
	ErrUnknownWorkerType   = errors.New("unknown worker type")
	ErrRetryRecordNotFound = errors.New("retry record not found")
	ErrRetryRecordSettled  = errors.New("retry record already settled")
	ErrInvalidPolicy       = errors.New("invalid retry policy")
)

// HandlerError wraps whatever a worker handler returned, including recovered panics.
type HandlerError struct {
	WorkerType string
	RecordID   string
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("worker %s failed on record %s: %v", e.WorkerType, e.RecordID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// WorkerError lets handlers tag a failure with a retryable error class such as TIMEOUT.
type WorkerError struct {
	Tag string
	Err error
}

// NewWorkerError tags err with tag.
func NewWorkerError(tag string, err error) *WorkerError {
	return &WorkerError{Tag: tag, Err: err}
}

func (e *WorkerError) Error() string {
	if e.Err == nil {
		return e.Tag
	}
	return e.Tag + ": " + e.Err.Error()
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
