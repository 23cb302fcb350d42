package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerd/internal/adapter/http/dto"
	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Account, error)
	ListEntries(ctx context.Context, accountNumber string, limit, offset int) ([]*domain.LedgerEntry, error)
	Credit(ctx context.Context, input usecase.CreditInput) (*usecase.TransactionResult, error)
}

// Replayer folds unplayed entries into an account balance.
type Replayer interface {
	Replay(ctx context.Context, accountNumber string) (*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accounts AccountService
	replayer Replayer
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts AccountService, replayer Replayer) *AccountHandler {
	return &AccountHandler{accounts: accounts, replayer: replayer}
}

// Create opens a new account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create account", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by number.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists accounts, optionally only those of one owner.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)
	owner := r.URL.Query().Get("owner_id")

	accounts, err := h.accounts.ListAccounts(r.Context(), owner, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list accounts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    int64(len(accounts)),
	})
}

// Replay folds pending entries into the account balance.
func (h *AccountHandler) Replay(w http.ResponseWriter, r *http.Request) {
	account, err := h.replayer.Replay(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to replay account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// ListEntries lists the ledger entries of an account, newest first.
func (h *AccountHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.accounts.ListEntries(r.Context(), chi.URLParam(r, "number"), limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list entries", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// Credit deposits funds into an account.
func (h *AccountHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.accounts.Credit(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "number")))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to credit account", err.Error())
		return
	}

	writeJSON(w, resultStatus(result), dto.TransactionFromResult(result))
}

// resultStatus is 202 when completion was handed to the retry scheduler.
func resultStatus(result *usecase.TransactionResult) int {
	if result.Deferred {
		return http.StatusAccepted
	}
	return http.StatusCreated
}
