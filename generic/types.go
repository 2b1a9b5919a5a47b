/*
Package generic provides the unit-aware value primitives shared by every ledger.

PURPOSE:
  A gold trading desk keeps three parallel balances per counterparty: Rial
  currency, gold weight and item counts. This package holds the types that
  keep those units apart so a Rial figure can never be added to a gram figure.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (rial, gram750, gram, count)
  - Position: The three-dimensional balance (rial, 750-equivalent weight, count)
  - DebitCredit: The two-column form ledgers persist

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for money and weight
  2. Unit safety: Arithmetic keeps the left operand's unit
  3. Signed effects: Balance = Σcredit − Σdebit; positive means the business
     owes the counterparty

USAGE:
  price := generic.Rials(5_000_000)
  weight := generic.Grams750(decimal.RequireFromString("9.333"))
  pos := generic.Position{Rial: price, Weight: weight, Count: generic.Count(0)}

SEE ALSO:
  - ledger.go: Replaying entry logs into balances
  - errors.go: Error taxonomy
*/
package generic

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitRial    Unit = "rial"
	UnitGram750 Unit = "gram750" // weight normalized to 750/1000 purity
	UnitGram    Unit = "gram"    // raw weight at the item's own purity
	UnitCount   Unit = "count"
)

// Decimal places persisted per unit.
const (
	RialPlaces   int32 = 0
	WeightPlaces int32 = 3
)

// MaxRials is the largest whole-Rial magnitude the store can hold.
var MaxRials = decimal.NewFromInt(math.MaxInt64)

// RialsFit reports whether d, rounded to whole Rial, fits the store.
func RialsFit(d decimal.Decimal) bool {
	return d.Round(RialPlaces).Abs().LessThanOrEqual(MaxRials)
}

func NewAmount(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func Rials(v int64) Amount                 { return Amount{Value: decimal.NewFromInt(v), Unit: UnitRial} }
func RialsDec(v decimal.Decimal) Amount    { return Amount{Value: v, Unit: UnitRial} }
func Grams750(v decimal.Decimal) Amount    { return Amount{Value: v, Unit: UnitGram750} }
func Grams(v decimal.Decimal) Amount       { return Amount{Value: v, Unit: UnitGram} }
func Count(v int64) Amount                 { return Amount{Value: decimal.NewFromInt(v), Unit: UnitCount} }
func CountDec(v decimal.Decimal) Amount    { return Amount{Value: v, Unit: UnitCount} }
func ZeroOf(unit Unit) Amount              { return Amount{Value: decimal.Zero, Unit: unit} }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Unit == b.Unit && a.Value.Equal(b.Value) }

// Rounded rounds to the persisted precision of the unit.
func (a Amount) Rounded() Amount {
	switch a.Unit {
	case UnitRial:
		return Amount{Value: a.Value.Round(RialPlaces), Unit: a.Unit}
	case UnitGram, UnitGram750:
		return Amount{Value: a.Value.Round(WeightPlaces), Unit: a.Unit}
	default:
		return a
	}
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}

// =============================================================================
// POSITION - Rial, weight and count balances side by side
// =============================================================================

// Position is a counterparty's balance across the three units.
type Position struct {
	Rial   Amount
	Weight Amount // 750-equivalent grams
	Count  Amount
}

func ZeroPosition() Position {
	return Position{Rial: ZeroOf(UnitRial), Weight: ZeroOf(UnitGram750), Count: ZeroOf(UnitCount)}
}

func (p Position) Add(o Position) Position {
	return Position{Rial: p.Rial.Add(o.Rial), Weight: p.Weight.Add(o.Weight), Count: p.Count.Add(o.Count)}
}

func (p Position) Sub(o Position) Position {
	return p.Add(o.Neg())
}

func (p Position) Neg() Position {
	return Position{Rial: p.Rial.Neg(), Weight: p.Weight.Neg(), Count: p.Count.Neg()}
}

func (p Position) IsZero() bool {
	return p.Rial.IsZero() && p.Weight.IsZero() && p.Count.IsZero()
}

func (p Position) Equal(o Position) bool {
	return p.Rial.Value.Equal(o.Rial.Value) && p.Weight.Value.Equal(o.Weight.Value) && p.Count.Value.Equal(o.Count.Value)
}

// =============================================================================
// DEBIT / CREDIT - Two-column persisted form of a signed effect
// =============================================================================

// DebitCredit holds non-negative debit and credit columns for one unit.
type DebitCredit struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Split turns a signed effect into columns: positive goes to credit,
// negative to debit.
func Split(signed decimal.Decimal) DebitCredit {
	if signed.IsNegative() {
		return DebitCredit{Debit: signed.Neg(), Credit: decimal.Zero}
	}
	return DebitCredit{Debit: decimal.Zero, Credit: signed}
}

// Net returns credit − debit.
func (dc DebitCredit) Net() decimal.Decimal { return dc.Credit.Sub(dc.Debit) }

// Swap exchanges the columns; used to build reversals.
func (dc DebitCredit) Swap() DebitCredit { return DebitCredit{Debit: dc.Credit, Credit: dc.Debit} }
