package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerd/internal/usecase"
)

// RetryRepository implements usecase.RetryRepository.
type RetryRepository struct {
	queries *generated.Queries
}

// NewRetryRepository creates a new RetryRepository.
func NewRetryRepository(db generated.DBTX) *RetryRepository {
	return &RetryRepository{
		queries: generated.New(db),
	}
}

// Upsert inserts a record or refreshes it while it is still PENDING.
// Terminal records are never reopened; Upsert then reports false.
func (r *RetryRepository) Upsert(ctx context.Context, tx usecase.Transaction, record *domain.RetryRecord) (bool, error) {
	payload := []byte(record.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	n, err := txQueries(tx).UpsertRetryRecord(ctx, generated.UpsertRetryRecordParams{
		ID:             record.ID,
		TransactionID:  record.TransactionID,
		WorkerType:     record.WorkerType,
		Payload:        payload,
		MaxRetries:     int32(record.MaxRetries),
		AttemptCount:   int32(record.AttemptCount),
		NextRetryAt:    timeToPgTimestamptz(record.NextRetryAt),
		Status:         string(record.Status),
		LastError:      record.LastError,
		FinalError:     record.FinalError,
		DeadLetteredAt: optionalTimestamptz(record.DeadLetteredAt),
		CreatedAt:      timeToPgTimestamptz(record.CreatedAt),
		UpdatedAt:      timeToPgTimestamptz(record.UpdatedAt),
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByIDForUpdate retrieves a record and locks it until the transaction ends.
func (r *RetryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.RetryRecord, error) {
	row, err := txQueries(tx).GetRetryRecordForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRetryRecordNotFound
		}
		return nil, err
	}

	return rowToRetryRecord(row), nil
}

// Update writes the mutable fields of a record.
func (r *RetryRepository) Update(ctx context.Context, tx usecase.Transaction, record *domain.RetryRecord) error {
	n, err := txQueries(tx).UpdateRetryRecord(ctx, generated.UpdateRetryRecordParams{
		ID:             record.ID,
		AttemptCount:   int32(record.AttemptCount),
		NextRetryAt:    timeToPgTimestamptz(record.NextRetryAt),
		Status:         string(record.Status),
		LastError:      record.LastError,
		FinalError:     record.FinalError,
		DeadLetteredAt: optionalTimestamptz(record.DeadLetteredAt),
		UpdatedAt:      timeToPgTimestamptz(record.UpdatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRetryRecordNotFound
	}
	return nil
}

// ListDue returns PENDING records due at now, earliest first.
func (r *RetryRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.RetryRecord, error) {
	rows, err := r.queries.ListDueRetryRecords(ctx, generated.ListDueRetryRecordsParams{
		NextRetryAt: timeToPgTimestamptz(now),
		Limit:       int32(limit),
	})
	if err != nil {
		return nil, err
	}

	return rowsToRetryRecords(rows), nil
}

// ListDeadLetters returns FAILED records, most recent first.
func (r *RetryRepository) ListDeadLetters(ctx context.Context, limit int) ([]*domain.RetryRecord, error) {
	rows, err := r.queries.ListDeadLetters(ctx, int32(limit))
	if err != nil {
		return nil, err
	}

	return rowsToRetryRecords(rows), nil
}

func rowsToRetryRecords(rows []generated.RetryRecord) []*domain.RetryRecord {
	records := make([]*domain.RetryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRetryRecord(row))
	}
	return records
}

func rowToRetryRecord(row generated.RetryRecord) *domain.RetryRecord {
	return &domain.RetryRecord{
		ID:             row.ID,
		TransactionID:  row.TransactionID,
		WorkerType:     row.WorkerType,
		Payload:        row.Payload,
		MaxRetries:     int(row.MaxRetries),
		AttemptCount:   int(row.AttemptCount),
		NextRetryAt:    row.NextRetryAt.Time,
		Status:         domain.RetryStatus(row.Status),
		LastError:      row.LastError,
		FinalError:     row.FinalError,
		DeadLetteredAt: timestamptzPtr(row.DeadLetteredAt),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}
