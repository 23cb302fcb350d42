package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/domain"
)

// RetryService owns the retry record lifecycle: PENDING records are
// rescheduled with exponential backoff until they complete or exhaust
// their budget and become dead letters.
type RetryService struct {
	txManager  TransactionManager
	retryRepo  RetryRepository
	txnRepo    TransactionRepository
	outboxRepo OutboxRepository
	policies   domain.PolicyTable
	idGen      IDGenerator
	clock      Clock
	recorder   RetryRecorder
	logger     zerolog.Logger
}

// NewRetryService creates a new RetryService. A nil recorder disables
// metrics. A nil txnRepo leaves owning transactions untouched on dead letter.
func NewRetryService(
	txManager TransactionManager,
	retryRepo RetryRepository,
	txnRepo TransactionRepository,
	outboxRepo OutboxRepository,
	policies domain.PolicyTable,
	idGen IDGenerator,
	clock Clock,
	recorder RetryRecorder,
	logger zerolog.Logger,
) *RetryService {
	if policies == nil {
		policies = domain.DefaultPolicyTable()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &RetryService{
		txManager:  txManager,
		retryRepo:  retryRepo,
		txnRepo:    txnRepo,
		outboxRepo: outboxRepo,
		policies:   policies,
		idGen:      idGen,
		clock:      clock,
		recorder:   recorder,
		logger:     logger,
	}
}

// GetPolicy returns the policy of a worker type.
func (s *RetryService) GetPolicy(workerType string) (domain.RetryPolicy, error) {
	return s.policies.Get(workerType)
}

// WorkerTypes returns the worker types that have a policy.
func (s *RetryService) WorkerTypes() []string {
	return s.policies.WorkerTypes()
}

// IsRetryable reports whether err belongs to one of the retryable error
// classes of the worker type. Tagged errors match on their tag, anything
// else matches when its message contains a class name. Unknown worker
// types never retry.
func (s *RetryService) IsRetryable(workerType string, err error) bool {
	if err == nil {
		return false
	}
	policy, perr := s.policies.Get(workerType)
	if perr != nil {
		return false
	}

	var workerErr *domain.WorkerError
	tagged := errors.As(err, &workerErr)
	msg := err.Error()

	for _, class := range policy.RetryableErrors {
		if tagged && workerErr.Tag == class {
			return true
		}
		if strings.Contains(msg, class) {
			return true
		}
	}
	return false
}

// BaseBackoff is the un-jittered delay for an attempt:
// min(InitialDelay * multiplier^(attempt-1), MaxDelay). Attempts below 1 count as 1.
func BaseBackoff(attemptCount int, policy domain.RetryPolicy) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}
	raw := float64(policy.InitialDelay) * math.Pow(policy.BackoffMultiplier, float64(attemptCount-1))
	if raw > float64(policy.MaxDelay) || math.IsInf(raw, 0) || math.IsNaN(raw) {
		return policy.MaxDelay
	}
	return time.Duration(raw)
}

// ComputeBackoff returns the jittered delay before the given attempt.
// The result lies within ±10% of BaseBackoff.
func (s *RetryService) ComputeBackoff(attemptCount int, policy domain.RetryPolicy) time.Duration {
	base := BaseBackoff(attemptCount, policy)
	if base <= 0 {
		return 0
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: jitterFactor,
		Multiplier:          1,
		MaxInterval:         base,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b.NextBackOff()
}

// RecordFailure stores a first failure of a work item as a PENDING record
// with attempt count 1. Recording the same item again refreshes it while it
// is still pending; a settled record is returned as stored together with
// ErrRetryRecordSettled.
func (s *RetryService) RecordFailure(ctx context.Context, item domain.WorkItem, cause error) (*domain.RetryRecord, error) {
	policy, err := s.policies.Get(item.WorkerType)
	if err != nil {
		return nil, err
	}

	maxRetries := policy.MaxRetries
	if item.MaxRetries > 0 {
		maxRetries = item.MaxRetries
	}
	id := item.RecordID
	if id == "" {
		id = s.idGen.Generate()
	}

	now := s.clock.Now()
	record := &domain.RetryRecord{
		ID:            id,
		TransactionID: item.TransactionID,
		WorkerType:    item.WorkerType,
		Payload:       item.Payload,
		MaxRetries:    maxRetries,
		AttemptCount:  1,
		NextRetryAt:   now.Add(s.ComputeBackoff(1, policy)),
		Status:        domain.RetryStatusPending,
		LastError:     errorMessage(cause),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	written, err := s.retryRepo.Upsert(ctx, tx, record)
	if err != nil {
		return nil, err
	}
	if !written {
		stored, err := s.retryRepo.GetByIDForUpdate(ctx, tx, record.ID)
		if err != nil {
			return nil, err
		}
		s.logger.Debug().
			Str("retry_id", stored.ID).
			Str("status", string(stored.Status)).
			Msg("failure not recorded on settled retry record")
		return stored, domain.ErrRetryRecordSettled
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.recorder.ObserveRetry(record.WorkerType, RetryOutcomeRecorded)
	s.logger.Info().
		Str("retry_id", record.ID).
		Str("transaction_id", record.TransactionID).
		Str("worker_type", record.WorkerType).
		Time("next_retry_at", record.NextRetryAt).
		Msg("failure recorded for retry")

	return record, nil
}

// AdvanceOrDeadLetter applies the outcome of one attempt. Success completes
// the record. Failure either reschedules it with a longer delay or, once
// the budget is spent, moves it to FAILED and emits a dead-letter event.
// Missing and terminal records are left alone.
func (s *RetryService) AdvanceOrDeadLetter(ctx context.Context, id string, success bool, cause error) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := s.retryRepo.GetByIDForUpdate(ctx, tx, id)
	if errors.Is(err, domain.ErrRetryRecordNotFound) {
		s.logger.Warn().Str("retry_id", id).Msg("retry record vanished before it could be advanced")
		return nil
	}
	if err != nil {
		return err
	}
	if record.IsTerminal() {
		s.logger.Debug().
			Str("retry_id", id).
			Str("status", string(record.Status)).
			Msg("retry record already terminal")
		return nil
	}

	now := s.clock.Now()
	var outcome string

	switch {
	case success:
		record.Status = domain.RetryStatusCompleted
		outcome = RetryOutcomeCompleted

	case record.Exhausted():
		msg := errorMessage(cause)
		record.Status = domain.RetryStatusFailed
		record.LastError = msg
		record.FinalError = msg
		record.DeadLetteredAt = &now
		outcome = RetryOutcomeDeadLettered

		if err := s.failTransaction(ctx, tx, record, now); err != nil {
			return err
		}
		if err := s.emitDeadLetter(ctx, tx, record, now); err != nil {
			return err
		}

	default:
		policy, err := s.policies.Get(record.WorkerType)
		if err != nil {
			return err
		}
		record.AttemptCount++
		record.NextRetryAt = now.Add(s.ComputeBackoff(record.AttemptCount, policy))
		record.LastError = errorMessage(cause)
		outcome = RetryOutcomeRescheduled
	}

	record.UpdatedAt = now
	if err := s.retryRepo.Update(ctx, tx, record); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.recorder.ObserveRetry(record.WorkerType, outcome)

	evt := s.logger.Info()
	if outcome == RetryOutcomeDeadLettered {
		evt = s.logger.Error()
	}
	evt.Str("retry_id", record.ID).
		Str("worker_type", record.WorkerType).
		Int("attempt", record.AttemptCount).
		Str("outcome", outcome).
		Str("last_error", record.LastError).
		Msg("retry record advanced")

	return nil
}

// DueRetries returns PENDING records whose next attempt time has passed,
// oldest first.
func (s *RetryService) DueRetries(ctx context.Context, limit int) ([]*domain.RetryRecord, error) {
	if limit <= 0 {
		limit = DefaultDueRetriesLimit
	}
	return s.retryRepo.ListDue(ctx, s.clock.Now(), limit)
}

// DeadLetters returns FAILED records, most recently dead-lettered first.
func (s *RetryService) DeadLetters(ctx context.Context, limit int) ([]*domain.RetryRecord, error) {
	if limit <= 0 {
		limit = DefaultDeadLettersLimit
	}
	return s.retryRepo.ListDeadLetters(ctx, limit)
}

// failTransaction marks the owning transaction FAILED alongside the dead
// letter. Records that point at no stored transaction are logged and kept.
func (s *RetryService) failTransaction(ctx context.Context, tx Transaction, record *domain.RetryRecord, now time.Time) error {
	if s.txnRepo == nil || record.TransactionID == "" {
		return nil
	}
	_, err := s.txnRepo.UpdateStatus(ctx, tx, record.TransactionID, domain.TransactionStatusFailed, now)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		s.logger.Warn().
			Str("retry_id", record.ID).
			Str("transaction_id", record.TransactionID).
			Msg("dead-lettered retry has no stored transaction")
		return nil
	}
	return err
}

func (s *RetryService) emitDeadLetter(ctx context.Context, tx Transaction, record *domain.RetryRecord, now time.Time) error {
	if s.outboxRepo == nil {
		return nil
	}
	payload := domain.RetryDeadLetteredEvent{
		RetryID:       record.ID,
		TransactionID: record.TransactionID,
		WorkerType:    record.WorkerType,
		Attempts:      record.AttemptCount,
		FinalError:    record.FinalError,
		DeadLettered:  now.Format(time.RFC3339Nano),
	}
	return s.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            s.idGen.Generate(),
		AggregateID:   record.ID,
		AggregateType: domain.AggregateTypeRetry,
		EventType:     domain.EventTypeRetryDeadLettered,
		Payload:       payload.ToMap(),
		CreatedAt:     now,
	})
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
