package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerd/internal/adapter/http/dto"
	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	Transfer(ctx context.Context, input usecase.TransferInput) (*usecase.TransactionResult, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
}

// TransferHandler handles transfer and transaction HTTP requests.
type TransferHandler struct {
	transfers TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transfers TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Create moves funds between two accounts.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.transfers.Transfer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create transfer", err.Error())
		return
	}

	writeJSON(w, resultStatus(result), dto.TransactionFromResult(result))
}

// GetTransaction retrieves a transaction by ID.
func (h *TransferHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	txn, err := h.transfers.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// History lists transactions filtered by owner_id, date_from and date_to.
// Pages are 1-based; sort is asc or desc by creation time.
func (h *TransferHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTimeQuery(r, "date_from", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_from", err.Error())
		return
	}
	to, err := parseTimeQuery(r, "date_to", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_to", err.Error())
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	page := parseIntQuery(r, "page", 1)
	if page < 1 {
		page = 1
	}
	filter, err := domain.TransactionFilter{
		OwnerID: q.Get("owner_id"),
		From:    from,
		To:      to,
		Order:   domain.SortOrder(q.Get("sort")),
		Limit:   limit,
	}.Normalize()
	if err != nil {
		writeError(w, mapDomainError(err), "invalid history query", err.Error())
		return
	}
	filter.Offset = (page - 1) * filter.Limit

	txns, err := h.transfers.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list transactions", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionHistoryResponse{
		Transactions: dto.TransactionsFromDomain(txns),
		Page:         page,
		Limit:        filter.Limit,
		Sort:         string(filter.Order),
	})
}
