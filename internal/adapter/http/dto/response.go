package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID             string          `json:"id"`
	AccountNumber  string          `json:"account_number"`
	OwnerID        string          `json:"owner_id"`
	Currency       string          `json:"currency"`
	Balance        int64           `json:"balance"`
	DisplayBalance decimal.Decimal `json:"display_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:             a.ID,
		AccountNumber:  a.AccountNumber,
		OwnerID:        a.OwnerID,
		Currency:       a.Currency,
		Balance:        a.Balance,
		DisplayBalance: a.DisplayBalance(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	TransactionID string          `json:"transaction_id"`
	Currency      string          `json:"currency"`
	Delta         int64           `json:"delta"`
	DisplayDelta  decimal.Decimal `json:"display_delta"`
	Played        bool            `json:"played"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EntryFromDomain converts a ledger entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:            e.ID,
		AccountNumber: e.AccountNumber,
		TransactionID: e.TransactionID,
		Currency:      e.Currency,
		Delta:         e.Delta,
		DisplayDelta:  domain.MinorToMajor(e.Delta, e.Currency),
		Played:        e.Played,
		CreatedAt:     e.CreatedAt,
	}
}

// EntriesFromDomain converts ledger entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// TransactionResponse represents a business transaction in API responses.
type TransactionResponse struct {
	ID               string             `json:"id"`
	OwnerID          string             `json:"owner_id"`
	Type             string             `json:"type"`
	Status           string             `json:"status"`
	Amount           int64              `json:"amount"`
	DisplayAmount    decimal.Decimal    `json:"display_amount"`
	Currency         string             `json:"currency"`
	SenderAccount    string             `json:"sender_account,omitempty"`
	RecipientAccount string             `json:"recipient_account"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Accounts         []*AccountResponse `json:"accounts,omitempty"`
	Deferred         bool               `json:"deferred,omitempty"`
	RetryID          string             `json:"retry_id,omitempty"`
}

// TransactionFromDomain converts a transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:               t.ID,
		OwnerID:          t.OwnerID,
		Type:             string(t.Type),
		Status:           string(t.Status),
		Amount:           t.Amount,
		DisplayAmount:    domain.MinorToMajor(t.Amount, t.Currency),
		Currency:         t.Currency,
		SenderAccount:    t.SenderAccount,
		RecipientAccount: t.RecipientAccount,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// TransactionFromResult converts a credit or transfer result to response.
func TransactionFromResult(r *usecase.TransactionResult) *TransactionResponse {
	resp := TransactionFromDomain(r.Transaction)
	if len(r.Accounts) > 0 {
		resp.Accounts = AccountsFromDomain(r.Accounts)
	}
	resp.Deferred = r.Deferred
	resp.RetryID = r.RetryID
	return resp
}

// TransactionHistoryResponse represents one page of transaction history.
type TransactionHistoryResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Page         int                    `json:"page"`
	Limit        int                    `json:"limit"`
	Sort         string                 `json:"sort"`
}

// TransactionsFromDomain converts transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// RetryRecordResponse represents a retry record in API responses.
type RetryRecordResponse struct {
	ID             string     `json:"id"`
	TransactionID  string     `json:"transaction_id"`
	WorkerType     string     `json:"worker_type"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	MaxRetries     int        `json:"max_retries"`
	NextRetryAt    time.Time  `json:"next_retry_at"`
	LastError      string     `json:"last_error,omitempty"`
	FinalError     string     `json:"final_error,omitempty"`
	DeadLetteredAt *time.Time `json:"dead_lettered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RetryRecordsFromDomain converts retry records to responses.
func RetryRecordsFromDomain(records []*domain.RetryRecord) []*RetryRecordResponse {
	result := make([]*RetryRecordResponse, len(records))
	for i, r := range records {
		result[i] = &RetryRecordResponse{
			ID:             r.ID,
			TransactionID:  r.TransactionID,
			WorkerType:     r.WorkerType,
			Status:         string(r.Status),
			AttemptCount:   r.AttemptCount,
			MaxRetries:     r.MaxRetries,
			NextRetryAt:    r.NextRetryAt,
			LastError:      r.LastError,
			FinalError:     r.FinalError,
			DeadLetteredAt: r.DeadLetteredAt,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		}
	}
	return result
}

// ReconciliationResponse is the result of reconciling one account.
type ReconciliationResponse struct {
	AccountNumber     string    `json:"account_number"`
	Currency          string    `json:"currency"`
	RecordedBalance   int64     `json:"recorded_balance"`
	CalculatedBalance int64     `json:"calculated_balance"`
	Difference        int64     `json:"difference"`
	IsReconciled      bool      `json:"is_reconciled"`
	LastChecked       time.Time `json:"last_checked"`
}

// ReconciliationFromResult converts a reconciliation result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountNumber:     r.AccountNumber,
		Currency:          r.Currency,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ReconciliationReportResponse summarizes a reconciliation run.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	LedgerConsistent   bool                      `json:"ledger_consistent"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReportFromDomain converts a reconciliation report to response.
func ReportFromDomain(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		LedgerConsistent:   r.LedgerConsistent,
		Discrepancies:      make([]*ReconciliationResponse, len(r.Discrepancies)),
		CheckedAt:          r.CheckedAt,
	}
	for i, d := range r.Discrepancies {
		resp.Discrepancies[i] = ReconciliationFromResult(d)
	}
	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
