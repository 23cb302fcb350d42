package handler

import (
	"context"
	"net/http"

	"github.com/iho/ledgerd/internal/adapter/http/dto"
	"github.com/iho/ledgerd/internal/domain"
)

// RetryQueries lists retry records for operators.
type RetryQueries interface {
	DueRetries(ctx context.Context, limit int) ([]*domain.RetryRecord, error)
	DeadLetters(ctx context.Context, limit int) ([]*domain.RetryRecord, error)
}

// RetryHandler exposes the retry queue.
type RetryHandler struct {
	retries RetryQueries
}

// NewRetryHandler creates a new RetryHandler.
func NewRetryHandler(retries RetryQueries) *RetryHandler {
	return &RetryHandler{retries: retries}
}

// Due lists PENDING records whose next attempt time has passed.
func (h *RetryHandler) Due(w http.ResponseWriter, r *http.Request) {
	records, err := h.retries.DueRetries(r.Context(), parseIntQuery(r, "limit", 0))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list due retries", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RetryRecordsFromDomain(records))
}

// DeadLetters lists records that exhausted their retry budget.
func (h *RetryHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	records, err := h.retries.DeadLetters(r.Context(), parseIntQuery(r, "limit", 0))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list dead letters", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RetryRecordsFromDomain(records))
}
