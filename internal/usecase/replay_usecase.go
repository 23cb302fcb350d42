package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/domain"
)

// ReplayUseCase folds unplayed ledger entries into the account balance.
type ReplayUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	ledgerRepo  LedgerRepository
	retrier     Retrier
	clock       Clock
	recorder    ReplayRecorder
	logger      zerolog.Logger
}

// NewReplayUseCase creates a new ReplayUseCase. A nil recorder disables metrics.
func NewReplayUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	ledgerRepo LedgerRepository,
	retrier Retrier,
	clock Clock,
	recorder ReplayRecorder,
	logger zerolog.Logger,
) *ReplayUseCase {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReplayUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		retrier:     retrier,
		clock:       clock,
		recorder:    recorder,
		logger:      logger,
	}
}

// Replay applies every unplayed entry of the account exactly once and
// returns the account with its new balance. Calling it with nothing to
// replay is a no-op that returns the stored account.
func (uc *ReplayUseCase) Replay(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if err := domain.ValidateAccountNumber(accountNumber); err != nil {
		return nil, err
	}

	start := uc.clock.Now()

	var (
		account *domain.Account
		played  int
	)
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		account, played, err = uc.replayOnce(ctx, accountNumber)
		return err
	})
	elapsed := uc.clock.Now().Sub(start)

	if err != nil {
		uc.recorder.ObserveReplay(ReplayResultFailed, 0, elapsed)
		uc.logger.Error().
			Err(err).
			Str("account_number", accountNumber).
			Msg("replay failed")
		return nil, err
	}

	result := ReplayResultApplied
	if played == 0 {
		result = ReplayResultNoop
	}
	uc.recorder.ObserveReplay(result, played, elapsed)
	uc.logger.Debug().
		Str("account_number", accountNumber).
		Int("entries", played).
		Int64("balance", account.Balance).
		Dur("duration", elapsed).
		Msg("replay finished")

	return account, nil
}

// ReplayMany replays each account in order and stops on the first error.
func (uc *ReplayUseCase) ReplayMany(ctx context.Context, accountNumbers []string) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0, len(accountNumbers))
	for _, number := range accountNumbers {
		account, err := uc.Replay(ctx, number)
		if err != nil {
			return accounts, fmt.Errorf("replay %s: %w", number, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (uc *ReplayUseCase) replayOnce(ctx context.Context, accountNumber string) (*domain.Account, int, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Locking the account row first serializes replays of the same account.
	account, err := uc.accountRepo.GetByNumberForUpdate(ctx, tx, accountNumber)
	if err != nil {
		return nil, 0, err
	}

	entries, err := uc.ledgerRepo.ListUnplayedForUpdate(ctx, tx, accountNumber)
	if err != nil {
		return nil, 0, err
	}
	if len(entries) == 0 {
		return account, 0, nil
	}

	now := uc.clock.Now()
	total := domain.SumDeltas(entries)

	marked, err := uc.ledgerRepo.MarkPlayed(ctx, tx, domain.EntryIDs(entries), now)
	if err != nil {
		return nil, 0, err
	}
	if marked != int64(len(entries)) {
		return nil, 0, fmt.Errorf("%w: marked %d of %d entries", domain.ErrReplayFailed, marked, len(entries))
	}

	balance := account.Apply(total)
	updated, err := uc.accountRepo.UpdateBalance(ctx, tx, accountNumber, balance, now)
	if err != nil {
		return nil, 0, err
	}
	if updated != 1 {
		return nil, 0, fmt.Errorf("%w: balance update touched %d rows", domain.ErrReplayFailed, updated)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	account.Balance = balance
	account.UpdatedAt = now
	return account, len(entries), nil
}
