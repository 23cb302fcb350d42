package postgres

import (
	"testing"

	"github.com/iho/ledgerd/internal/domain"
)

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		if len(id) != 26 {
			t.Fatalf("expected 26-char ULID, got %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestAccountNumberGenerator(t *testing.T) {
	gen := NewAccountNumberGenerator()
	for i := 0; i < 200; i++ {
		number := gen.Next()
		if err := domain.ValidateAccountNumber(number); err != nil {
			t.Fatalf("generated invalid number %q: %v", number, err)
		}
		if number[0] == '0' {
			t.Fatalf("generated number with leading zero %q", number)
		}
	}
}
