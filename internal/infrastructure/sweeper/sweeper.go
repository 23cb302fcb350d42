// Package sweeper runs periodic ledger maintenance on cron schedules.
package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/usecase"
)

// Default schedules.
const (
	DefaultSweepSpec  = "@every 5m"
	DefaultReportSpec = "@every 1h"
)

// Reconciler is the maintenance surface the sweeper drives.
type Reconciler interface {
	SweepUnplayed(ctx context.Context, limit int) (int, error)
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// Config holds the cron specs. An empty spec disables that job.
type Config struct {
	SweepSpec  string
	ReportSpec string
	SweepLimit int
}

// Sweeper replays accounts with unplayed entries and reports balance drift.
type Sweeper struct {
	reconciler Reconciler
	cron       *cron.Cron
	cfg        Config
	logger     zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// New validates the specs and registers the jobs. Jobs do not run until Start.
func New(reconciler Reconciler, cfg Config, logger zerolog.Logger) (*Sweeper, error) {
	logger = logger.With().Str("component", "sweeper").Logger()
	cl := cronLogger{logger: logger}

	s := &Sweeper{
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.SweepSpec != "" {
		if _, err := s.cron.AddFunc(cfg.SweepSpec, func() { s.RunSweep(s.ctx) }); err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSpec, err)
		}
	}
	if cfg.ReportSpec != "" {
		if _, err := s.cron.AddFunc(cfg.ReportSpec, func() { s.RunReport(s.ctx) }); err != nil {
			return nil, fmt.Errorf("invalid report schedule %q: %w", cfg.ReportSpec, err)
		}
	}

	return s, nil
}

// Start begins running jobs in the background.
func (s *Sweeper) Start() {
	s.logger.Info().
		Str("sweep_spec", s.cfg.SweepSpec).
		Str("report_spec", s.cfg.ReportSpec).
		Msg("sweeper started")
	s.cron.Start()
}

// Stop prevents new runs, cancels running ones and waits for them or ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSweep replays accounts holding unplayed entries.
func (s *Sweeper) RunSweep(ctx context.Context) {
	replayed, err := s.reconciler.SweepUnplayed(ctx, s.cfg.SweepLimit)
	if err != nil {
		s.logger.Error().Err(err).Int("replayed", replayed).Msg("unplayed sweep failed")
		return
	}
	if replayed > 0 {
		s.logger.Info().Int("replayed", replayed).Msg("unplayed sweep finished")
	}
}

// RunReport reconciles every account and logs discrepancies.
func (s *Sweeper) RunReport(ctx context.Context) {
	report, err := s.reconciler.GenerateReconciliationReport(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reconciliation report failed")
		return
	}

	for _, d := range report.Discrepancies {
		s.logger.Warn().
			Str("account_number", d.AccountNumber).
			Int64("recorded_balance", d.RecordedBalance).
			Int64("calculated_balance", d.CalculatedBalance).
			Int64("difference", d.Difference).
			Msg("balance discrepancy")
	}

	evt := s.logger.Info()
	if len(report.Discrepancies) > 0 || !report.LedgerConsistent {
		evt = s.logger.Warn()
	}
	evt.Int("total_accounts", report.TotalAccounts).
		Int("reconciled_accounts", report.ReconciledAccounts).
		Int("discrepancies", len(report.Discrepancies)).
		Bool("ledger_consistent", report.LedgerConsistent).
		Msg("reconciliation report")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
