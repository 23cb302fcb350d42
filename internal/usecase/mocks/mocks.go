package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
)

// Store is an in-memory backing for the repository fakes. Writes apply
// immediately; transactions only count commits and rollbacks.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	entries      []*domain.LedgerEntry
	transactions map[string]*domain.Transaction
	retries      map[string]*domain.RetryRecord
	events       []*domain.OutboxEvent
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		retries:      make(map[string]*domain.RetryRecord),
	}
}

// AccountRepo returns an AccountRepository over the store.
func (s *Store) AccountRepo() *MemoryAccountRepository { return &MemoryAccountRepository{s: s} }

// LedgerRepo returns a LedgerRepository over the store.
func (s *Store) LedgerRepo() *MemoryLedgerRepository { return &MemoryLedgerRepository{s: s} }

// TransactionRepo returns a TransactionRepository over the store.
func (s *Store) TransactionRepo() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{s: s}
}

// RetryRepo returns a RetryRepository over the store.
func (s *Store) RetryRepo() *MemoryRetryRepository { return &MemoryRetryRepository{s: s} }

// OutboxRepo returns an OutboxRepository over the store.
func (s *Store) OutboxRepo() *MemoryOutboxRepository { return &MemoryOutboxRepository{s: s} }

// Retry returns a copy of a stored retry record.
func (s *Store) Retry(id string) (domain.RetryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retries[id]
	if !ok {
		return domain.RetryRecord{}, false
	}
	return *r, true
}

// PutRetry stores a copy of record.
func (s *Store) PutRetry(record domain.RetryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries[record.ID] = &record
}

// Events returns the outbox events written so far.
func (s *Store) Events() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboxEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	return out
}

// Entries returns the ledger entries of an account in insertion order.
func (s *Store) Entries(accountNumber string) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.AccountNumber == accountNumber {
			out = append(out, *e)
		}
	}
	return out
}

// MemoryAccountRepository is an in-memory AccountRepository.
type MemoryAccountRepository struct{ s *Store }

func (r *MemoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[account.AccountNumber]; ok {
		return fmt.Errorf("account %s already exists", account.AccountNumber)
	}
	cp := *account
	r.s.accounts[account.AccountNumber] = &cp
	return nil
}

func (r *MemoryAccountRepository) GetByNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountNumber]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAccountRepository) GetByNumberForUpdate(ctx context.Context, _ usecase.Transaction, accountNumber string) (*domain.Account, error) {
	return r.GetByNumber(ctx, accountNumber)
}

func (r *MemoryAccountRepository) UpdateBalance(_ context.Context, _ usecase.Transaction, accountNumber string, balance int64, updatedAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountNumber]
	if !ok {
		return 0, nil
	}
	a.Balance = balance
	a.UpdatedAt = updatedAt
	return 1, nil
}

func (r *MemoryAccountRepository) List(_ context.Context, ownerID string, limit, offset int) ([]*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	numbers := make([]string, 0, len(r.s.accounts))
	for n, a := range r.s.accounts {
		if ownerID == "" || a.OwnerID == ownerID {
			numbers = append(numbers, n)
		}
	}
	sort.Strings(numbers)
	var out []*domain.Account
	for i := offset; i < len(numbers) && len(out) < limit; i++ {
		cp := *r.s.accounts[numbers[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// MemoryLedgerRepository is an in-memory LedgerRepository.
type MemoryLedgerRepository struct{ s *Store }

func (r *MemoryLedgerRepository) Append(_ context.Context, _ usecase.Transaction, entry *domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *entry
	r.s.entries = append(r.s.entries, &cp)
	return nil
}

func (r *MemoryLedgerRepository) ListUnplayedForUpdate(_ context.Context, _ usecase.Transaction, accountNumber string) ([]*domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.LedgerEntry
	for _, e := range r.s.entries {
		if e.AccountNumber == accountNumber && !e.Played {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryLedgerRepository) MarkPlayed(_ context.Context, _ usecase.Transaction, ids []string, updatedAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var n int64
	for _, e := range r.s.entries {
		if _, ok := want[e.ID]; ok && !e.Played {
			e.Played = true
			e.UpdatedAt = updatedAt
			n++
		}
	}
	return n, nil
}

func (r *MemoryLedgerRepository) ListByAccount(_ context.Context, accountNumber string, limit, offset int) ([]*domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []*domain.LedgerEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if r.s.entries[i].AccountNumber == accountNumber {
			matched = append(matched, r.s.entries[i])
		}
	}
	var out []*domain.LedgerEntry
	for i := offset; i < len(matched) && len(out) < limit; i++ {
		cp := *matched[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryLedgerRepository) SumPlayed(_ context.Context, accountNumber string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, e := range r.s.entries {
		if e.AccountNumber == accountNumber && e.Played {
			total += e.Delta
		}
	}
	return total, nil
}

func (r *MemoryLedgerRepository) AccountsWithUnplayed(_ context.Context, limit int) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range r.s.entries {
		if e.Played {
			continue
		}
		if _, ok := seen[e.AccountNumber]; ok {
			continue
		}
		seen[e.AccountNumber] = struct{}{}
		out = append(out, e.AccountNumber)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryLedgerRepository) CheckConsistency(context.Context) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var balances, played int64
	for _, a := range r.s.accounts {
		balances += a.Balance
	}
	for _, e := range r.s.entries {
		if e.Played {
			played += e.Delta
		}
	}
	return balances, played, nil
}

func (r *MemoryLedgerRepository) Snapshot(_ context.Context, accountNumber string) (*usecase.AccountSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[accountNumber]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	snap := &usecase.AccountSnapshot{AccountNumber: accountNumber, Currency: a.Currency, Balance: a.Balance}
	for _, e := range r.s.entries {
		if e.AccountNumber == accountNumber && e.Played {
			snap.Played += e.Delta
		}
	}
	return snap, nil
}

// MemoryTransactionRepository is an in-memory TransactionRepository.
type MemoryTransactionRepository struct{ s *Store }

func (r *MemoryTransactionRepository) Create(_ context.Context, _ usecase.Transaction, transaction *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *transaction
	r.s.transactions[transaction.ID] = &cp
	return nil
}

func (r *MemoryTransactionRepository) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryTransactionRepository) List(_ context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []*domain.Transaction
	for _, t := range r.s.transactions {
		if filter.OwnerID != "" && t.OwnerID != filter.OwnerID {
			continue
		}
		if !filter.From.IsZero() && t.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && t.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.Order == domain.SortAscending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if filter.Order == domain.SortAscending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	var out []*domain.Transaction
	for i := filter.Offset; i < len(matched) && len(out) < filter.Limit; i++ {
		cp := *matched[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryTransactionRepository) UpdateStatus(_ context.Context, _ usecase.Transaction, id string, status domain.TransactionStatus, updatedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if t.Status != domain.TransactionStatusPending {
		return false, nil
	}
	t.Status = status
	t.UpdatedAt = updatedAt
	return true, nil
}

// MemoryRetryRepository is an in-memory RetryRepository.
type MemoryRetryRepository struct{ s *Store }

func (r *MemoryRetryRepository) Upsert(_ context.Context, _ usecase.Transaction, record *domain.RetryRecord) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.retries[record.ID]; ok && existing.IsTerminal() {
		return false, nil
	}
	cp := *record
	if existing, ok := r.s.retries[record.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	r.s.retries[record.ID] = &cp
	return true, nil
}

func (r *MemoryRetryRepository) GetByIDForUpdate(_ context.Context, _ usecase.Transaction, id string) (*domain.RetryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.retries[id]
	if !ok {
		return nil, domain.ErrRetryRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRetryRepository) Update(_ context.Context, _ usecase.Transaction, record *domain.RetryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.retries[record.ID]; !ok {
		return domain.ErrRetryRecordNotFound
	}
	cp := *record
	r.s.retries[record.ID] = &cp
	return nil
}

func (r *MemoryRetryRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*domain.RetryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.RetryRecord
	for _, rec := range r.s.retries {
		if rec.IsDue(now) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextRetryAt.Equal(out[j].NextRetryAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextRetryAt.Before(out[j].NextRetryAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRetryRepository) ListDeadLetters(_ context.Context, limit int) ([]*domain.RetryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.RetryRecord
	for _, rec := range r.s.retries {
		if rec.Status == domain.RetryStatusFailed {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return deadLetteredAt(out[i]).After(deadLetteredAt(out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func deadLetteredAt(r *domain.RetryRecord) time.Time {
	if r.DeadLetteredAt == nil {
		return time.Time{}
	}
	return *r.DeadLetteredAt
}

// MemoryOutboxRepository is an in-memory OutboxRepository.
type MemoryOutboxRepository struct{ s *Store }

func (r *MemoryOutboxRepository) Create(_ context.Context, _ usecase.Transaction, event *domain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *event
	r.s.events = append(r.s.events, &cp)
	return nil
}

func (r *MemoryOutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range r.s.events {
		if !e.Published && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryOutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.events {
		if e.ID == id {
			e.Published = true
			at := publishedAt
			e.PublishedAt = &at
		}
	}
	return nil
}

func (r *MemoryOutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.events[:0]
	for _, e := range r.s.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	r.s.events = kept
	return nil
}

// FakeTxManager hands out transactions that only count calls.
type FakeTxManager struct {
	mu        sync.Mutex
	Commits   int
	Rollbacks int

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewFakeTxManager() *FakeTxManager {
	return &FakeTxManager{}
}

func (m *FakeTxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &countingTx{m: m}, nil
}

// Committed returns the number of committed transactions.
func (m *FakeTxManager) Committed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Commits
}

type countingTx struct {
	m    *FakeTxManager
	done bool
}

func (t *countingTx) Commit(context.Context) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if !t.done {
		t.done = true
		t.m.Commits++
	}
	return nil
}

func (t *countingTx) Rollback(context.Context) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if !t.done {
		t.done = true
		t.m.Rollbacks++
	}
	return nil
}

// PassthroughRetrier runs the operation once.
type PassthroughRetrier struct{}

func (PassthroughRetrier) Retry(_ context.Context, operation func() error) error {
	return operation()
}

// FixedClock is a settable Clock.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now.
func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SequenceIDGenerator yields sequential IDs.
type SequenceIDGenerator struct {
	mu      sync.Mutex
	counter int
	Prefix  string
}

func NewSequenceIDGenerator() *SequenceIDGenerator {
	return &SequenceIDGenerator{Prefix: "id"}
}

func (m *SequenceIDGenerator) Generate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("%s-%04d", m.Prefix, m.counter)
}

// SequenceAccountNumbers yields 10-digit account numbers counting up from Start.
type SequenceAccountNumbers struct {
	mu   sync.Mutex
	next int64
}

func NewSequenceAccountNumbers(start int64) *SequenceAccountNumbers {
	return &SequenceAccountNumbers{next: start}
}

func (g *SequenceAccountNumbers) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.next
	g.next++
	return fmt.Sprintf("%010d", n)
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{keys: make(map[string][]byte)}
}

func (m *MemoryIdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.keys[key]; ok {
		return true, existing, nil
	}
	m.keys[key] = response
	return false, nil, nil
}

func (m *MemoryIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = response
	return nil
}

var (
	_ usecase.AccountRepository     = (*MemoryAccountRepository)(nil)
	_ usecase.LedgerRepository      = (*MemoryLedgerRepository)(nil)
	_ usecase.TransactionRepository = (*MemoryTransactionRepository)(nil)
	_ usecase.RetryRepository       = (*MemoryRetryRepository)(nil)
	_ usecase.OutboxRepository      = (*MemoryOutboxRepository)(nil)
	_ usecase.TransactionManager    = (*FakeTxManager)(nil)
	_ usecase.IdempotencyStore      = (*MemoryIdempotencyStore)(nil)
)
