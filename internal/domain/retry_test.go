package domain

import (
	"errors"
	"testing"
	"time"
)

func TestRetryRecord_State(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		record    RetryRecord
		terminal  bool
		due       bool
		exhausted bool
	}{
		{
			name:   "pending and due",
			record: RetryRecord{Status: RetryStatusPending, NextRetryAt: now, AttemptCount: 1, MaxRetries: 3},
			due:    true,
		},
		{
			name:   "pending in the future",
			record: RetryRecord{Status: RetryStatusPending, NextRetryAt: now.Add(time.Second), AttemptCount: 1, MaxRetries: 3},
		},
		{
			name:      "pending on last attempt",
			record:    RetryRecord{Status: RetryStatusPending, NextRetryAt: now.Add(-time.Minute), AttemptCount: 3, MaxRetries: 3},
			due:       true,
			exhausted: true,
		},
		{
			name:     "completed",
			record:   RetryRecord{Status: RetryStatusCompleted, NextRetryAt: now.Add(-time.Minute), AttemptCount: 1, MaxRetries: 3},
			terminal: true,
		},
		{
			name:      "dead-lettered",
			record:    RetryRecord{Status: RetryStatusFailed, NextRetryAt: now.Add(-time.Minute), AttemptCount: 3, MaxRetries: 3},
			terminal:  true,
			exhausted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal: expected %v, got %v", tt.terminal, got)
			}
			if got := tt.record.IsDue(now); got != tt.due {
				t.Errorf("IsDue: expected %v, got %v", tt.due, got)
			}
			if got := tt.record.Exhausted(); got != tt.exhausted {
				t.Errorf("Exhausted: expected %v, got %v", tt.exhausted, got)
			}
		})
	}
}

func TestPolicyTable_Get(t *testing.T) {
	table := DefaultPolicyTable()

	policy, err := table.Get(WorkerTypePeerToPeer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.MaxRetries != 5 || policy.InitialDelay != time.Second || policy.BackoffMultiplier != 2 {
		t.Fatalf("unexpected peer-to-peer policy: %+v", policy)
	}
	if policy.CircuitBreaker == nil || policy.CircuitBreaker.Threshold != 10 {
		t.Fatalf("expected circuit breaker declaration, got %+v", policy.CircuitBreaker)
	}

	if _, err := table.Get("email"); !errors.Is(err, ErrUnknownWorkerType) {
		t.Fatalf("expected ErrUnknownWorkerType, got %v", err)
	}

	types := table.WorkerTypes()
	if len(types) != 3 || types[0] != WorkerTypePeerToPeer {
		t.Fatalf("unexpected worker types %v", types)
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	for workerType, p := range DefaultPolicyTable() {
		if err := p.Validate(); err != nil {
			t.Fatalf("default policy %s invalid: %v", workerType, err)
		}
	}

	bad := []RetryPolicy{
		{MaxRetries: 0, InitialDelay: time.Second, MaxDelay: time.Minute, BackoffMultiplier: 2},
		{MaxRetries: 3, InitialDelay: 0, MaxDelay: time.Minute, BackoffMultiplier: 2},
		{MaxRetries: 3, InitialDelay: time.Minute, MaxDelay: time.Second, BackoffMultiplier: 2},
		{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: time.Minute, BackoffMultiplier: 0.5},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidPolicy) {
			t.Errorf("case %d: expected ErrInvalidPolicy, got %v", i, err)
		}
	}
}

func TestHandlerError_Unwraps(t *testing.T) {
	cause := NewWorkerError("TIMEOUT", errors.New("gateway took too long"))
	err := &HandlerError{WorkerType: WorkerTypePeerToPeer, RecordID: "r1", Err: cause}

	var we *WorkerError
	if !errors.As(err, &we) || we.Tag != "TIMEOUT" {
		t.Fatalf("expected to unwrap WorkerError, got %v", err)
	}

	if got := we.Error(); got != "TIMEOUT: gateway took too long" {
		t.Fatalf("unexpected message %q", got)
	}
}
