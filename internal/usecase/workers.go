package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iho/ledgerd/internal/domain"
)

// ReplayPayload is the retry payload of a transaction whose replay was deferred.
type ReplayPayload struct {
	TransactionID  string   `json:"transaction_id"`
	AccountNumbers []string `json:"account_numbers"`
}

// WorkerHandler processes the payload of one retry record.
type WorkerHandler func(ctx context.Context, payload json.RawMessage) error

// Workers exposes the handlers the retry scheduler dispatches to.
type Workers struct {
	ledger *LedgerUseCase
}

// NewWorkers creates the worker handlers backed by the ledger use case.
func NewWorkers(ledger *LedgerUseCase) *Workers {
	return &Workers{ledger: ledger}
}

// ReplayTransaction replays the accounts of a deferred transaction and
// marks it COMPLETED. Store failures are tagged so retry policies can
// classify them.
func (w *Workers) ReplayTransaction(ctx context.Context, payload json.RawMessage) error {
	var p ReplayPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode replay payload: %w", err)
	}
	if p.TransactionID == "" {
		return fmt.Errorf("decode replay payload: missing transaction_id")
	}

	if err := w.ledger.CompleteTransaction(ctx, p.TransactionID, p.AccountNumbers); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// Handlers returns the handler of every worker type this service can run.
func (w *Workers) Handlers() map[string]WorkerHandler {
	return map[string]WorkerHandler{
		domain.WorkerTypeRetryTransactions: w.ReplayTransaction,
		domain.WorkerTypePeerToPeer:        w.ReplayTransaction,
	}
}

func classifyStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case isDeadline(err):
		return domain.NewWorkerError("DATABASE_TIMEOUT", err)
	default:
		return domain.NewWorkerError("TEMPORARY_FAILURE", err)
	}
}
