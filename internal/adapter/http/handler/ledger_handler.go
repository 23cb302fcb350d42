package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerd/internal/adapter/http/dto"
	"github.com/iho/ledgerd/internal/usecase"
)

// Reconciler defines the reconciliation behavior needed by LedgerHandler.
type Reconciler interface {
	ReconcileAccount(ctx context.Context, accountNumber string) (*usecase.ReconciliationResult, error)
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
	SweepUnplayed(ctx context.Context, limit int) (int, error)
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	reconciler Reconciler
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(reconciler Reconciler) *LedgerHandler {
	return &LedgerHandler{reconciler: reconciler}
}

// Reconcile reconciles every account. Discrepancies return 409.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile ledger", err.Error())
		return
	}

	status := http.StatusOK
	if len(report.Discrepancies) > 0 || !report.LedgerConsistent {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ReportFromDomain(report))
}

// ReconcileAccount compares one account balance with its played entries.
func (h *LedgerHandler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.ReconcileAccount(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}

// Sweep replays accounts that still hold unplayed entries.
func (h *LedgerHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	replayed, err := h.reconciler.SweepUnplayed(r.Context(), parseIntQuery(r, "limit", 0))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to sweep ledger", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"replayed": replayed})
}
