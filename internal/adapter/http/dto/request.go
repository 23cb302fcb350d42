package dto

import (
	"strings"

	"github.com/iho/ledgerd/internal/usecase"
)

// CreateAccountRequest represents a request to open an account.
type CreateAccountRequest struct {
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		OwnerID:  strings.TrimSpace(r.OwnerID),
		Currency: strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
}

// CreditRequest deposits Amount minor units into an account.
type CreditRequest struct {
	OwnerID  string `json:"owner_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *CreditRequest) ToUseCaseInput(accountNumber string) usecase.CreditInput {
	return usecase.CreditInput{
		OwnerID:       strings.TrimSpace(r.OwnerID),
		AccountNumber: accountNumber,
		Amount:        r.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
}

// CreateTransferRequest moves Amount minor units between two accounts.
type CreateTransferRequest struct {
	OwnerID          string `json:"owner_id"`
	SenderAccount    string `json:"sender_account"`
	RecipientAccount string `json:"recipient_account"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransferRequest) ToUseCaseInput() usecase.TransferInput {
	return usecase.TransferInput{
		OwnerID:          strings.TrimSpace(r.OwnerID),
		SenderAccount:    strings.TrimSpace(r.SenderAccount),
		RecipientAccount: strings.TrimSpace(r.RecipientAccount),
		Amount:           r.Amount,
		Currency:         strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
}
