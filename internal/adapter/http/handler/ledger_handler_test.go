package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerd/internal/adapter/http/dto"
	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
)

type reconcilerStub struct {
	report   *usecase.ReconciliationReport
	result   *usecase.ReconciliationResult
	err      error
	replayed int
}

func (s *reconcilerStub) ReconcileAccount(_ context.Context, number string) (*usecase.ReconciliationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *reconcilerStub) GenerateReconciliationReport(context.Context) (*usecase.ReconciliationReport, error) {
	return s.report, s.err
}

func (s *reconcilerStub) SweepUnplayed(context.Context, int) (int, error) {
	return s.replayed, s.err
}

func TestLedgerHandler_Reconcile(t *testing.T) {
	tests := []struct {
		name   string
		report *usecase.ReconciliationReport
		want   int
	}{
		{
			name:   "balanced",
			report: &usecase.ReconciliationReport{TotalAccounts: 2, ReconciledAccounts: 2, LedgerConsistent: true},
			want:   http.StatusOK,
		},
		{
			name: "discrepancy",
			report: &usecase.ReconciliationReport{
				TotalAccounts:    1,
				LedgerConsistent: true,
				Discrepancies:    []*usecase.ReconciliationResult{{AccountNumber: "1000000001", Difference: 50}},
			},
			want: http.StatusConflict,
		},
		{
			name:   "inconsistent ledger",
			report: &usecase.ReconciliationReport{LedgerConsistent: false},
			want:   http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLedgerHandler(&reconcilerStub{report: tt.report})

			rec := httptest.NewRecorder()
			h.Reconcile(rec, httptest.NewRequest(http.MethodGet, "/ledger/reconciliation", nil))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}

			var resp dto.ReconciliationReportResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.TotalAccounts != tt.report.TotalAccounts {
				t.Fatalf("unexpected report %+v", resp)
			}
		})
	}
}

func TestLedgerHandler_ReconcileAccount(t *testing.T) {
	h := NewLedgerHandler(&reconcilerStub{result: &usecase.ReconciliationResult{
		AccountNumber:     "1000000001",
		RecordedBalance:   450,
		CalculatedBalance: 450,
		IsReconciled:      true,
	}})

	r := chi.NewRouter()
	r.Get("/ledger/reconciliation/{number}", h.ReconcileAccount)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger/reconciliation/1000000001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	h = NewLedgerHandler(&reconcilerStub{err: domain.ErrAccountNotFound})
	r = chi.NewRouter()
	r.Get("/ledger/reconciliation/{number}", h.ReconcileAccount)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger/reconciliation/1000000009", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLedgerHandler_Sweep(t *testing.T) {
	h := NewLedgerHandler(&reconcilerStub{replayed: 3})

	rec := httptest.NewRecorder()
	h.Sweep(rec, httptest.NewRequest(http.MethodPost, "/ledger/sweep", nil))

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["replayed"] != 3 {
		t.Fatalf("expected 3 replayed, got %v", resp)
	}
}
