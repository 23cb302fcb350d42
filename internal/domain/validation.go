package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidAccountName   = errors.New("invalid account name")
	ErrInvalidCurrency      = errors.New("invalid currency code")
	ErrAmountTooLarge       = errors.New("amount exceeds maximum allowed")
	ErrInvalidAccountNumber = errors.New("invalid account number")
	ErrInvalidSortOrder     = errors.New("invalid sort order")
	ErrInvalidDateRange     = errors.New("invalid date range")
)

// Validation constants
const (
	MaxAccountNameLength = 255
	MinAccountNameLength = 1
	AccountNumberLength  = 10
	// MaxAmount is the largest single credit or transfer in minor units.
	MaxAmount int64 = 100_000_000_000
)

var accountNumberRegex = regexp.MustCompile(`^[0-9]+$`)

// ValidateAccountName validates account name
func ValidateAccountName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinAccountNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidAccountName)
	}

	if len(name) > MaxAccountNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAccountName, MaxAccountNameLength)
	}

	return nil
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if _, ok := minorUnitExponents[currency]; !ok {
		return fmt.Errorf("%w: %s is not a supported ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount validates a minor-unit amount
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if amount > MaxAmount {
		return fmt.Errorf("%w: maximum amount is %d", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ValidateAccountNumber validates the format of an account number
func ValidateAccountNumber(number string) error {
	if len(number) != AccountNumberLength || !accountNumberRegex.MatchString(number) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountNumber, number)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
