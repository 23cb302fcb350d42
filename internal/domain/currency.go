package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// minorUnitExponents maps ISO 4217 codes to the number of minor-unit digits.
var minorUnitExponents = map[string]int32{
	"NGN": 2, "GHS": 2, "KES": 2, "ZAR": 2,
	"USD": 2, "EUR": 2, "GBP": 2, "JPY": 0,
}

// MinorUnitExponent returns the number of decimal places for currency.
// Unknown currencies default to 2.
func MinorUnitExponent(currency string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// MinorToMajor converts an integer minor-unit amount to a decimal in major units.
func MinorToMajor(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -MinorUnitExponent(currency))
}
