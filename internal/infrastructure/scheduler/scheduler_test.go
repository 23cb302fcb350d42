package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
	"github.com/iho/ledgerd/internal/usecase/mocks"
)

var tickNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *mocks.Store
	clock    *mocks.FixedClock
	retries  *usecase.RetryService
	recorder *stubRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := mocks.NewStore()
	clock := mocks.NewFixedClock(tickNow)
	retries := usecase.NewRetryService(
		mocks.NewFakeTxManager(),
		store.RetryRepo(),
		store.TransactionRepo(),
		store.OutboxRepo(),
		nil,
		mocks.NewSequenceIDGenerator(),
		clock,
		nil,
		zerolog.Nop(),
	)

	return &fixture{store: store, clock: clock, retries: retries, recorder: &stubRecorder{}}
}

func (f *fixture) scheduler(cfg Config, locker TickLocker) *Scheduler {
	return New(f.retries, locker, f.recorder, cfg, zerolog.Nop())
}

func (f *fixture) due(id, workerType string, attempt, maxRetries int) {
	f.store.PutRetry(domain.RetryRecord{
		ID:            id,
		TransactionID: "txn-" + id,
		WorkerType:    workerType,
		Payload:       json.RawMessage(`{"transaction_id":"txn-` + id + `"}`),
		MaxRetries:    maxRetries,
		AttemptCount:  attempt,
		NextRetryAt:   tickNow.Add(-time.Second),
		Status:        domain.RetryStatusPending,
		CreatedAt:     tickNow.Add(-time.Hour),
		UpdatedAt:     tickNow.Add(-time.Hour),
	})
}

func (f *fixture) record(t *testing.T, id string) domain.RetryRecord {
	t.Helper()
	r, ok := f.store.Retry(id)
	require.True(t, ok, "record %s missing", id)
	return r
}

func TestRegisterWorkerRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(Config{}, nil)

	err := s.RegisterWorker("payroll", func(context.Context, json.RawMessage) error { return nil })
	assert.ErrorIs(t, err, domain.ErrUnknownWorkerType)
}

func TestRegisterWorkerAfterStart(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(Config{Interval: time.Hour}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	err := s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error { return nil })
	assert.ErrorIs(t, err, ErrSchedulerRunning)
}

func TestTickCompletesSuccessfulRecords(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	var got json.RawMessage
	s := f.scheduler(Config{}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(_ context.Context, payload json.RawMessage) error {
		got = payload
		return nil
	}))

	s.Tick(context.Background())

	assert.JSONEq(t, `{"transaction_id":"txn-r1"}`, string(got))
	assert.Equal(t, domain.RetryStatusCompleted, f.record(t, "r1").Status)
	assert.Equal(t, 1, f.recorder.ticks(TickOK))
}

func TestTickReschedulesFailedRecords(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	s := f.scheduler(Config{}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error {
		return domain.NewWorkerError("TIMEOUT", errors.New("gateway slow"))
	}))

	s.Tick(context.Background())

	r := f.record(t, "r1")
	assert.Equal(t, domain.RetryStatusPending, r.Status)
	assert.Equal(t, 2, r.AttemptCount)
	assert.True(t, r.NextRetryAt.After(tickNow))
	assert.Contains(t, r.LastError, "gateway slow")
	assert.NotContains(t, r.LastError, "record r1")
}

// Retryable classification is advisory: an error outside the policy's
// retryable classes still consumes the attempt budget like any other.
func TestTickReschedulesNonRetryableErrorsWithinBudget(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	cause := domain.NewWorkerError("INSUFFICIENT_FUNDS", errors.New("sender balance too low"))
	require.False(t, f.retries.IsRetryable(domain.WorkerTypePeerToPeer, cause))

	s := f.scheduler(Config{}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error {
		return cause
	}))

	s.Tick(context.Background())

	r := f.record(t, "r1")
	assert.Equal(t, domain.RetryStatusPending, r.Status)
	assert.Equal(t, 2, r.AttemptCount)
	assert.Nil(t, r.DeadLetteredAt)
	assert.Contains(t, r.LastError, "INSUFFICIENT_FUNDS")
	assert.Empty(t, f.store.Events())
}

func TestTickRecoversHandlerPanic(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)
	f.due("r2", domain.WorkerTypePeerToPeer, 1, 5)

	s := f.scheduler(Config{}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(_ context.Context, payload json.RawMessage) error {
		if string(payload) == `{"transaction_id":"txn-r1"}` {
			panic("boom")
		}
		return nil
	}))

	s.Tick(context.Background())

	r1 := f.record(t, "r1")
	assert.Equal(t, domain.RetryStatusPending, r1.Status)
	assert.Contains(t, r1.LastError, "panic: boom")
	assert.Equal(t, domain.RetryStatusCompleted, f.record(t, "r2").Status)
}

func TestTickDeadLettersExhaustedRecords(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypeRetryTransactions, 2, 2)

	s := f.scheduler(Config{}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypeRetryTransactions, func(context.Context, json.RawMessage) error {
		return errors.New("still broken")
	}))

	s.Tick(context.Background())

	r := f.record(t, "r1")
	assert.Equal(t, domain.RetryStatusFailed, r.Status)
	assert.Equal(t, "still broken", r.FinalError)
	require.NotNil(t, r.DeadLetteredAt)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeRetryDeadLettered, events[0].EventType)
}

func TestTickLeavesUnhandledTypesPending(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypeSubscription, 1, 3)

	s := f.scheduler(Config{}, nil)
	s.Tick(context.Background())

	r := f.record(t, "r1")
	assert.Equal(t, domain.RetryStatusPending, r.Status)
	assert.Equal(t, 1, r.AttemptCount)
	assert.Equal(t, 1, f.recorder.misses(domain.WorkerTypeSubscription))
}

func TestTickIgnoresRecordsNotYetDue(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)
	f.clock.Set(tickNow.Add(-time.Minute))

	var calls atomic.Int32
	s := f.scheduler(Config{}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return nil
	}))

	s.Tick(context.Background())

	assert.Zero(t, calls.Load())
	assert.Equal(t, domain.RetryStatusPending, f.record(t, "r1").Status)
}

func TestTickBoundsConcurrency(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		f.due(fmt.Sprintf("r%02d", i), domain.WorkerTypePeerToPeer, 1, 5)
	}

	var inFlight, peak atomic.Int32
	s := f.scheduler(Config{Concurrency: 3}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}))

	s.Tick(context.Background())

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
	for i := 0; i < 25; i++ {
		assert.Equal(t, domain.RetryStatusCompleted, f.record(t, fmt.Sprintf("r%02d", i)).Status)
	}
}

func TestTickAppliesHandlerTimeout(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	s := f.scheduler(Config{HandlerTimeout: 10 * time.Millisecond}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(ctx context.Context, _ json.RawMessage) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	s.Tick(context.Background())

	r := f.record(t, "r1")
	assert.Equal(t, 2, r.AttemptCount)
	assert.Contains(t, r.LastError, context.DeadlineExceeded.Error())
}

func TestTickSkipsWithoutLease(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	var calls atomic.Int32
	locker := &stubLocker{held: true}
	s := f.scheduler(Config{}, locker)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error {
		calls.Add(1)
		return nil
	}))

	s.Tick(context.Background())
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, f.recorder.ticks(TickSkipped))

	locker.held = false
	s.Tick(context.Background())
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, locker.released)
}

func TestTickReportsFetchError(t *testing.T) {
	rec := &stubRecorder{}
	s := New(failingProcessor{}, nil, rec, Config{}, zerolog.Nop())

	s.Tick(context.Background())

	assert.Equal(t, 1, rec.ticks(TickError))
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(Config{Interval: time.Hour}, nil)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Running())

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Running())
	assert.Equal(t, 1, f.recorder.ticks(TickOK))
}

func TestStopWaitsForInFlightHandlers(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	started := make(chan struct{})
	release := make(chan struct{})
	s := f.scheduler(Config{Interval: time.Hour}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(ctx context.Context, _ json.RawMessage) error {
		close(started)
		<-release
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	<-started

	// Cancelling the Start context must not reach the running handler.
	cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the handler finished")
	}

	assert.Equal(t, domain.RetryStatusCompleted, f.record(t, "r1").Status)
}

func TestStopHonoursDeadline(t *testing.T) {
	f := newFixture(t)
	f.due("r1", domain.WorkerTypePeerToPeer, 1, 5)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	s := f.scheduler(Config{Interval: time.Hour}, nil)
	require.NoError(t, s.RegisterWorker(domain.WorkerTypePeerToPeer, func(context.Context, json.RawMessage) error {
		close(started)
		<-release
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

type stubRecorder struct {
	mu         sync.Mutex
	tickCounts map[string]int
	missCounts map[string]int
}

func (r *stubRecorder) ObserveTick(result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tickCounts == nil {
		r.tickCounts = map[string]int{}
	}
	r.tickCounts[result]++
}

func (r *stubRecorder) ObserveDispatchMiss(workerType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missCounts == nil {
		r.missCounts = map[string]int{}
	}
	r.missCounts[workerType]++
}

func (r *stubRecorder) ticks(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tickCounts[result]
}

func (r *stubRecorder) misses(workerType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.missCounts[workerType]
}

type stubLocker struct {
	held     bool
	released int
}

func (l *stubLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}

type failingProcessor struct{}

func (failingProcessor) GetPolicy(workerType string) (domain.RetryPolicy, error) {
	return domain.DefaultPolicyTable().Get(workerType)
}

func (failingProcessor) IsRetryable(string, error) bool { return true }

func (failingProcessor) DueRetries(context.Context, int) ([]*domain.RetryRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingProcessor) AdvanceOrDeadLetter(context.Context, string, bool, error) error {
	return nil
}
