package domain

import "time"

// Event types
const (
	EventTypeTransactionCreated   = "transaction.created"
	EventTypeTransactionCompleted = "transaction.completed"
	EventTypeRetryDeadLettered    = "retry.dead_lettered"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
	AggregateTypeRetry       = "retry_record"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionCreatedEvent payload
type TransactionCreatedEvent struct {
	TransactionID    string `json:"transaction_id"`
	Type             string `json:"type"`
	SenderAccount    string `json:"sender_account,omitempty"`
	RecipientAccount string `json:"recipient_account"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// RetryDeadLetteredEvent payload
type RetryDeadLetteredEvent struct {
	RetryID       string `json:"retry_id"`
	TransactionID string `json:"transaction_id"`
	WorkerType    string `json:"worker_type"`
	Attempts      int    `json:"attempts"`
	FinalError    string `json:"final_error"`
	DeadLettered  string `json:"dead_lettered_at"`
}

// ToMap flattens the payload for the outbox.
func (e RetryDeadLetteredEvent) ToMap() map[string]any {
	return map[string]any{
		"retry_id":         e.RetryID,
		"transaction_id":   e.TransactionID,
		"worker_type":      e.WorkerType,
		"attempts":         e.Attempts,
		"final_error":      e.FinalError,
		"dead_lettered_at": e.DeadLettered,
	}
}

// ToMap flattens the payload for the outbox.
func (e TransactionCreatedEvent) ToMap() map[string]any {
	m := map[string]any{
		"transaction_id":    e.TransactionID,
		"type":              e.Type,
		"recipient_account": e.RecipientAccount,
		"amount":            e.Amount,
		"currency":          e.Currency,
	}
	if e.SenderAccount != "" {
		m["sender_account"] = e.SenderAccount
	}
	return m
}
