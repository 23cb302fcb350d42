package postgres

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/iho/ledgerd/internal/domain"
)

// ULIDGenerator generates ULID-based IDs.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// AccountNumberGenerator draws random account numbers. The first digit is
// never zero so numbers survive a round trip through numeric fields.
type AccountNumberGenerator struct{}

// NewAccountNumberGenerator creates a new AccountNumberGenerator.
func NewAccountNumberGenerator() *AccountNumberGenerator {
	return &AccountNumberGenerator{}
}

// Next returns a fresh account number. Uniqueness is enforced by the
// accounts table.
func (g *AccountNumberGenerator) Next() string {
	var b strings.Builder
	b.Grow(domain.AccountNumberLength)
	b.WriteByte(byte('1' + randomDigit(9)))
	for i := 1; i < domain.AccountNumberLength; i++ {
		b.WriteByte(byte('0' + randomDigit(10)))
	}
	return b.String()
}

func randomDigit(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(err)
	}
	return v.Int64()
}
