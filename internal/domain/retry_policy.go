package domain

import (
	"fmt"
	"sort"
	"time"
)

// CircuitBreaker is declared per policy but not enforced by the scheduler.
type CircuitBreaker struct {
	Threshold int           `yaml:"threshold"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RetryPolicy is the static retry configuration of a worker type.
type RetryPolicy struct {
	MaxRetries        int             `yaml:"max_retries"`
	InitialDelay      time.Duration   `yaml:"initial_delay"`
	MaxDelay          time.Duration   `yaml:"max_delay"`
	BackoffMultiplier float64         `yaml:"backoff_multiplier"`
	RetryableErrors   []string        `yaml:"retryable_errors"`
	CircuitBreaker    *CircuitBreaker `yaml:"circuit_breaker,omitempty"`
}

// Validate checks that the policy can drive a backoff schedule.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxRetries < 1:
		return fmt.Errorf("%w: max_retries must be at least 1", ErrInvalidPolicy)
	case p.InitialDelay <= 0:
		return fmt.Errorf("%w: initial_delay must be positive", ErrInvalidPolicy)
	case p.MaxDelay < p.InitialDelay:
		return fmt.Errorf("%w: max_delay must not be below initial_delay", ErrInvalidPolicy)
	case p.BackoffMultiplier < 1:
		return fmt.Errorf("%w: backoff_multiplier must be at least 1", ErrInvalidPolicy)
	}
	return nil
}

// PolicyTable maps worker types to their retry policies.
type PolicyTable map[string]RetryPolicy

// Get returns the policy for workerType.
func (t PolicyTable) Get(workerType string) (RetryPolicy, error) {
	p, ok := t[workerType]
	if !ok {
		return RetryPolicy{}, fmt.Errorf("%w: %q", ErrUnknownWorkerType, workerType)
	}
	return p, nil
}

// WorkerTypes returns the configured worker types in sorted order.
func (t PolicyTable) WorkerTypes() []string {
	types := make([]string, 0, len(t))
	for k := range t {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// DefaultPolicyTable returns the built-in retry configuration.
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		WorkerTypePeerToPeer: {
			MaxRetries:        5,
			InitialDelay:      time.Second,
			MaxDelay:          time.Minute,
			BackoffMultiplier: 2,
			RetryableErrors:   []string{"TIMEOUT", "CONNECTION_ERROR", "RATE_LIMIT", "TEMPORARY_FAILURE"},
			CircuitBreaker: &CircuitBreaker{
				Threshold: 10,
				Timeout:   2 * time.Minute,
			},
		},
		WorkerTypeSubscription: {
			MaxRetries:        3,
			InitialDelay:      5 * time.Second,
			MaxDelay:          5 * time.Minute,
			BackoffMultiplier: 3,
			RetryableErrors:   []string{"PAYMENT_GATEWAY_ERROR", "TEMPORARY_FAILURE", "RATE_LIMIT"},
		},
		WorkerTypeRetryTransactions: {
			MaxRetries:        2,
			InitialDelay:      10 * time.Second,
			MaxDelay:          10 * time.Minute,
			BackoffMultiplier: 5,
			RetryableErrors:   []string{"DATABASE_TIMEOUT", "EXTERNAL_SERVICE_ERROR"},
		},
	}
}
