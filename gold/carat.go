package gold

import (
	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
)

// ReferencePurity is the 750/1000 (18 karat) basis every weight is summed on.
var ReferencePurity = decimal.NewFromInt(750)

// Normalize converts weight at purity into reference-purity-equivalent
// grams: weight * purity / reference. The result is exact (not rounded) so
// the function stays linear in both weight and purity.
func Normalize(weight, purity, reference decimal.Decimal) (decimal.Decimal, error) {
	if !purity.IsPositive() {
		return decimal.Zero, generic.NewValidationError("normalize", "purity", "gt=0", "purity must be positive")
	}
	if !reference.IsPositive() {
		return decimal.Zero, generic.NewValidationError("normalize", "reference_purity", "gt=0", "reference purity must be positive")
	}
	return weight.Mul(purity).Div(reference), nil
}

// Normalize750 is Normalize against ReferencePurity.
func Normalize750(weight, purity decimal.Decimal) (decimal.Decimal, error) {
	return Normalize(weight, purity, ReferencePurity)
}
