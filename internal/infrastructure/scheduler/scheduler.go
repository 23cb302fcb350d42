// Package scheduler dispatches due retry records to registered worker handlers.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/ledgerd/internal/domain"
)

// Defaults applied to a zero Config.
const (
	DefaultInterval    = 60 * time.Second
	DefaultBatchSize   = 50
	DefaultConcurrency = 10
	DefaultLeaseName   = "retry-scheduler"
)

// Tick results reported to the Recorder.
const (
	TickOK      = "ok"
	TickSkipped = "skipped"
	TickError   = "error"
)

// ErrSchedulerRunning is returned when workers are registered after Start.
var ErrSchedulerRunning = errors.New("scheduler is running")

// Handler processes the payload of one retry record.
type Handler func(ctx context.Context, payload json.RawMessage) error

// RetryProcessor is the part of the retry service the scheduler drives.
type RetryProcessor interface {
	GetPolicy(workerType string) (domain.RetryPolicy, error)
	IsRetryable(workerType string, err error) bool
	DueRetries(ctx context.Context, limit int) ([]*domain.RetryRecord, error)
	AdvanceOrDeadLetter(ctx context.Context, id string, success bool, cause error) error
}

// TickLocker grants a lease so only one replica ticks at a time.
type TickLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Recorder receives scheduler metrics.
type Recorder interface {
	ObserveTick(result string, duration time.Duration)
	ObserveDispatchMiss(workerType string)
}

// Config tunes the scheduler.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	Concurrency    int
	HandlerTimeout time.Duration // 0 means no per-handler timeout
	LeaseTTL       time.Duration // defaults to Interval
	LeaseName      string
}

// Scheduler polls due retry records and runs their handlers.
type Scheduler struct {
	retries  RetryProcessor
	locker   TickLocker
	recorder Recorder
	logger   zerolog.Logger
	cfg      Config

	mu       sync.Mutex
	handlers map[string]Handler
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Scheduler. locker and recorder may be nil.
func New(retries RetryProcessor, locker TickLocker, recorder Recorder, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = cfg.Interval
	}
	if cfg.LeaseName == "" {
		cfg.LeaseName = DefaultLeaseName
	}

	return &Scheduler{
		retries:  retries,
		locker:   locker,
		recorder: recorder,
		logger:   logger.With().Str("component", "retry_scheduler").Logger(),
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}
}

// RegisterWorker binds a handler to a worker type with a known policy.
func (s *Scheduler) RegisterWorker(workerType string, handler Handler) error {
	if _, err := s.retries.GetPolicy(workerType); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("nil handler for worker type %s", workerType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.handlers[workerType] = handler
	return nil
}

// Start runs a tick now and then one per interval on a single goroutine.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Int("batch_size", s.cfg.BatchSize).
		Int("concurrency", s.cfg.Concurrency).
		Msg("retry scheduler started")

	go s.loop(ctx, s.stop, s.done)
	return nil
}

// Stop halts ticking and waits for the in-flight tick or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info().Msg("retry scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one polling cycle and waits for every dispatched handler.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	result := s.tick(ctx)
	if s.recorder != nil {
		s.recorder.ObserveTick(result, time.Since(start))
	}
}

func (s *Scheduler) tick(ctx context.Context) string {
	// Handlers and their bookkeeping outlive cancellation of the Start context.
	work := context.WithoutCancel(ctx)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, s.cfg.LeaseName, s.cfg.LeaseTTL)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to acquire scheduler lease")
			return TickError
		}
		if !ok {
			s.logger.Debug().Msg("scheduler lease held elsewhere, skipping tick")
			return TickSkipped
		}
		defer func() {
			if err := release(work); err != nil {
				s.logger.Warn().Err(err).Msg("failed to release scheduler lease")
			}
		}()
	}

	records, err := s.retries.DueRetries(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch due retries")
		return TickError
	}
	if len(records) == 0 {
		return TickOK
	}

	s.logger.Debug().Int("count", len(records)).Msg("dispatching due retries")

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, record := range records {
		g.Go(func() error {
			s.dispatch(work, record)
			return nil
		})
	}
	_ = g.Wait()

	return TickOK
}

func (s *Scheduler) dispatch(ctx context.Context, record *domain.RetryRecord) {
	log := s.logger.With().
		Str("retry_id", record.ID).
		Str("transaction_id", record.TransactionID).
		Str("worker_type", record.WorkerType).
		Int("attempt", record.AttemptCount).
		Logger()

	s.mu.Lock()
	handler, ok := s.handlers[record.WorkerType]
	s.mu.Unlock()

	if !ok {
		log.Error().Msg("no handler registered for worker type")
		if s.recorder != nil {
			s.recorder.ObserveDispatchMiss(record.WorkerType)
		}
		return
	}

	if err := s.invoke(ctx, handler, record); err != nil {
		var herr *domain.HandlerError
		cause := err
		if errors.As(err, &herr) {
			cause = herr.Err
		}

		log.Warn().Err(err).
			Bool("retryable", s.retries.IsRetryable(record.WorkerType, cause)).
			Msg("retry attempt failed")

		if err := s.retries.AdvanceOrDeadLetter(ctx, record.ID, false, cause); err != nil {
			log.Error().Err(err).Msg("failed to record retry outcome")
		}
		return
	}

	if err := s.retries.AdvanceOrDeadLetter(ctx, record.ID, true, nil); err != nil {
		log.Error().Err(err).Msg("failed to record retry outcome")
	}
}

func (s *Scheduler) invoke(ctx context.Context, handler Handler, record *domain.RetryRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.HandlerError{
				WorkerType: record.WorkerType,
				RecordID:   record.ID,
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if s.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()
	}

	if herr := handler(ctx, record.Payload); herr != nil {
		return &domain.HandlerError{
			WorkerType: record.WorkerType,
			RecordID:   record.ID,
			Err:        herr,
		}
	}
	return nil
}
