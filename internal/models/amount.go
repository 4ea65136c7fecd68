package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"customer-statement-validator/pkg/errors"
)

// thousandsSeparator is stripped from amounts before parsing
const thousandsSeparator = ","

// ParseAmount parses a bare decimal amount such as " 1,250.50 " or "-12.3".
// Surrounding whitespace and every thousands separator are removed first.
// Currency symbols are not accepted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), thousandsSeparator, "")
	if cleaned == "" {
		return decimal.Zero, errors.InvalidAmountError(raw, fmt.Errorf("empty amount"))
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, errors.InvalidAmountError(raw, err)
	}

	return amount, nil
}

// ParseOptionalAmount treats blank input as absent and otherwise defers to ParseAmount.
func ParseOptionalAmount(raw string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.NullDecimal{}, nil
	}

	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(amount), nil
}
