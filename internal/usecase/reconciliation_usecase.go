package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/domain"
)

// DefaultSweepLimit caps the accounts replayed by one sweep.
const DefaultSweepLimit = 500

// ReconciliationUseCase handles balance reconciliation operations
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	ledgerRepo  LedgerRepository
	replayer    *ReplayUseCase
	clock       Clock
	recorder    ReconciliationRecorder
	logger      zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	ledgerRepo LedgerRepository,
	replayer *ReplayUseCase,
	clock Clock,
	recorder ReconciliationRecorder,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		replayer:    replayer,
		clock:       clock,
		recorder:    recorder,
		logger:      logger,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountNumber     string
	Currency          string
	RecordedBalance   int64
	CalculatedBalance int64
	Difference        int64
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the stored balance with the sum of played entries.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountNumber string) (*ReconciliationResult, error) {
	snap, err := uc.ledgerRepo.Snapshot(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	return &ReconciliationResult{
		AccountNumber:     accountNumber,
		Currency:          snap.Currency,
		RecordedBalance:   snap.Balance,
		CalculatedBalance: snap.Played,
		Difference:        snap.Balance - snap.Played,
		IsReconciled:      snap.Balance == snap.Played,
		LastChecked:       uc.clock.Now(),
	}, nil
}

// ReconcileAllAccounts reconciles every account, page by page.
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	limit, offset, _ := domain.ValidatePagination(1000, 0)

	var results []*ReconciliationResult
	for {
		accounts, err := uc.accountRepo.List(ctx, "", limit, offset)
		if err != nil {
			return nil, err
		}
		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.AccountNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.AccountNumber, err)
			}
			results = append(results, result)
		}
		if len(accounts) < limit {
			return results, nil
		}
		offset += limit
	}
}

// CheckLedgerConsistency verifies that balances equal the sum of played entries.
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	totalBalance, totalPlayed, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return err
	}

	if totalBalance != totalPlayed {
		return fmt.Errorf(
			"ledger inconsistency detected: balances=%d played=%d difference=%d",
			totalBalance,
			totalPlayed,
			totalBalance-totalPlayed,
		)
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ledgerErr := uc.CheckLedgerConsistency(ctx)
	if ledgerErr != nil {
		uc.logger.Error().Err(ledgerErr).Msg("ledger consistency check failed")
	}

	report := &ReconciliationReport{
		TotalAccounts:    len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: ledgerErr == nil,
		CheckedAt:        uc.clock.Now(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	uc.recorder.ObserveReconciliation(len(report.Discrepancies))
	return report, nil
}

// SweepUnplayed replays accounts that still hold unplayed entries and
// returns how many were replayed. A failing account is logged and skipped.
func (uc *ReconciliationUseCase) SweepUnplayed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	accountNumbers, err := uc.ledgerRepo.AccountsWithUnplayed(ctx, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, number := range accountNumbers {
		if ctx.Err() != nil {
			break
		}
		if _, err := uc.replayer.Replay(ctx, number); err != nil {
			uc.logger.Warn().Err(err).Str("account_number", number).Msg("sweep replay failed")
			continue
		}
		replayed++
	}

	uc.recorder.ObserveSweep(replayed)
	return replayed, ctx.Err()
}
