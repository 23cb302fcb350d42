package domain

import (
	"encoding/json"
	"time"
)

// RetryStatus is the scheduling state of a retry record.
type RetryStatus string

const (
	RetryStatusPending   RetryStatus = "PENDING"
	RetryStatusCompleted RetryStatus = "COMPLETED"
	RetryStatusFailed    RetryStatus = "FAILED"
)

// Worker types known to the default policy table.
const (
	WorkerTypePeerToPeer        = "peer-to-peer"
	WorkerTypeSubscription      = "subscription"
	WorkerTypeRetryTransactions = "retry-transactions"
)

// RetryRecord tracks a failed unit of asynchronous work until it completes or
// is dead-lettered.
type RetryRecord struct {
	ID             string
	TransactionID  string
	WorkerType     string
	Payload        json.RawMessage
	MaxRetries     int
	AttemptCount   int
	NextRetryAt    time.Time
	Status         RetryStatus
	LastError      string
	FinalError     string
	DeadLetteredAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the record can no longer change.
func (r *RetryRecord) IsTerminal() bool {
	return r.Status == RetryStatusCompleted || r.Status == RetryStatusFailed
}

// IsDue reports whether the record should be dispatched at now.
func (r *RetryRecord) IsDue(now time.Time) bool {
	return r.Status == RetryStatusPending && !r.NextRetryAt.After(now)
}

// Exhausted reports whether another failure dead-letters the record.
func (r *RetryRecord) Exhausted() bool {
	return r.AttemptCount >= r.MaxRetries
}

// WorkItem describes the unit of work handed to RecordFailure on its first failure.
type WorkItem struct {
	// RecordID updates an existing record when set.
	RecordID      string
	TransactionID string
	WorkerType    string
	Payload       json.RawMessage
	// MaxRetries overrides the policy limit when positive.
	MaxRetries int
}
