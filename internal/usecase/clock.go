package usecase

import (
	"context"
	"errors"
	"time"
)

// Clock is the source of "now" for scheduling decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type noopRecorder struct{}

func (noopRecorder) ObserveReplay(string, int, time.Duration) {}

func (noopRecorder) ObserveRetry(string, string) {}

func (noopRecorder) ObserveReconciliation(int) {}

func (noopRecorder) ObserveSweep(int) {}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
