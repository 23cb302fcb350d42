package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultDueRetriesLimit caps DueRetries when no limit is given.
	DefaultDueRetriesLimit = 100

	// DefaultDeadLettersLimit caps DeadLetters when no limit is given.
	DefaultDeadLettersLimit = 50

	// jitterFactor is the symmetric backoff jitter (±10%).
	jitterFactor = 0.1
)

// Outcome labels shared by recorders and logs.
const (
	ReplayResultApplied = "applied"
	ReplayResultNoop    = "noop"
	ReplayResultFailed  = "failed"

	RetryOutcomeRecorded     = "recorded"
	RetryOutcomeCompleted    = "completed"
	RetryOutcomeRescheduled  = "rescheduled"
	RetryOutcomeDeadLettered = "dead_lettered"
)
