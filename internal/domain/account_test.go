package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccount_Apply(t *testing.T) {
	tests := []struct {
		name     string
		balance  int64
		total    int64
		expected int64
	}{
		{name: "credit", balance: 100, total: 450, expected: 550},
		{name: "debit below zero", balance: 100, total: -150, expected: -50},
		{name: "zero total", balance: 100, total: 0, expected: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Balance: tt.balance}
			if got := acc.Apply(tt.total); got != tt.expected {
				t.Errorf("expected balance %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestAccount_DisplayBalance(t *testing.T) {
	acc := &Account{Balance: 45050, Currency: "NGN"}

	expected := decimal.RequireFromString("450.50")
	if !acc.DisplayBalance().Equal(expected) {
		t.Errorf("expected %s, got %s", expected, acc.DisplayBalance())
	}

	yen := &Account{Balance: 450, Currency: "JPY"}
	if !yen.DisplayBalance().Equal(decimal.NewFromInt(450)) {
		t.Errorf("expected 450, got %s", yen.DisplayBalance())
	}
}

func TestSumDeltas(t *testing.T) {
	entries := []*LedgerEntry{
		{ID: "e1", Delta: 500},
		{ID: "e2", Delta: -100},
		{ID: "e3", Delta: 50},
	}

	if got := SumDeltas(entries); got != 450 {
		t.Errorf("expected 450, got %d", got)
	}

	if got := SumDeltas(nil); got != 0 {
		t.Errorf("expected 0 for no entries, got %d", got)
	}

	ids := EntryIDs(entries)
	if len(ids) != 3 || ids[0] != "e1" || ids[2] != "e3" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestTransaction_AccountNumbers(t *testing.T) {
	deposit := &Transaction{RecipientAccount: "0000000001"}
	if got := deposit.AccountNumbers(); len(got) != 1 || got[0] != "0000000001" {
		t.Errorf("unexpected accounts for deposit: %v", got)
	}

	transfer := &Transaction{SenderAccount: "0000000001", RecipientAccount: "0000000002"}
	if got := transfer.AccountNumbers(); len(got) != 2 {
		t.Errorf("expected two accounts for transfer, got %v", got)
	}
}
