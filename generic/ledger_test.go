package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/generic"
)

// =============================================================================
// TEST ENTRIES - For testing without domain dependencies
// =============================================================================

type testEntry struct {
	date   generic.TimePoint
	rial   generic.DebitCredit
	weight generic.DebitCredit
}

func (e testEntry) EntryDate() generic.TimePoint { return e.date }
func (e testEntry) Effect() generic.Position {
	pos := generic.ZeroPosition()
	pos.Rial = generic.RialsDec(e.rial.Net())
	pos.Weight = generic.Grams750(e.weight.Net())
	return pos
}

type runningEntry struct {
	change, after decimal.Decimal
}

func (e runningEntry) ChangeAmount() generic.Amount       { return generic.Grams750(e.change) }
func (e runningEntry) BalanceAfterAmount() generic.Amount { return generic.Grams750(e.after) }

func day(d int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.April, d)
}

func rials(v int64) generic.DebitCredit {
	return generic.Split(decimal.NewFromInt(v))
}

// =============================================================================
// DEBIT / CREDIT
// =============================================================================

func TestSplit_SignSelectsColumn(t *testing.T) {
	credit := generic.Split(decimal.NewFromInt(500))
	assert.True(t, credit.Credit.Equal(decimal.NewFromInt(500)))
	assert.True(t, credit.Debit.IsZero())

	debit := generic.Split(decimal.NewFromInt(-500))
	assert.True(t, debit.Debit.Equal(decimal.NewFromInt(500)))
	assert.True(t, debit.Credit.IsZero())

	assert.True(t, debit.Net().Equal(decimal.NewFromInt(-500)))
	assert.True(t, debit.Swap().Net().Equal(credit.Net()))
}

func TestSplit_SwapCancels(t *testing.T) {
	dc := generic.Split(decimal.NewFromInt(-1234))
	assert.True(t, dc.Net().Add(dc.Swap().Net()).IsZero())
}

// =============================================================================
// SUMMED LOG
// =============================================================================

func TestBalanceAt_CutoffIsInclusive(t *testing.T) {
	entries := []testEntry{
		{date: day(1), rial: rials(1000)},
		{date: day(5), rial: rials(-300)},
		{date: day(9), rial: rials(-200), weight: generic.Split(decimal.NewFromInt(2))},
	}

	cutoff := day(5)
	at5 := generic.BalanceAt(entries, &cutoff)
	assert.True(t, at5.Rial.Value.Equal(decimal.NewFromInt(700)))
	assert.True(t, at5.Weight.IsZero())

	all := generic.BalanceAt(entries, nil)
	assert.True(t, all.Rial.Value.Equal(decimal.NewFromInt(500)))
	assert.True(t, all.Weight.Value.Equal(decimal.NewFromInt(2)))
}

func TestRunning_StartsFromOpening(t *testing.T) {
	opening := generic.ZeroPosition()
	opening.Rial = generic.Rials(100)

	lines, closing := generic.Running([]testEntry{
		{date: day(2), rial: rials(50)},
		{date: day(3), rial: rials(-120)},
	}, opening)

	require.Len(t, lines, 2)
	assert.True(t, lines[0].Balance.Rial.Value.Equal(decimal.NewFromInt(150)))
	assert.True(t, lines[1].Balance.Rial.Value.Equal(decimal.NewFromInt(30)))
	assert.True(t, closing.Equal(lines[1].Balance))
}

func TestRunning_Empty(t *testing.T) {
	lines, closing := generic.Running([]testEntry{}, generic.ZeroPosition())
	assert.Empty(t, lines)
	assert.True(t, closing.IsZero())
}

// =============================================================================
// RUNNING TOTAL
// =============================================================================

func TestReplayRunning_Consistent(t *testing.T) {
	entries := []runningEntry{
		{change: decimal.NewFromInt(10), after: decimal.NewFromInt(10)},
		{change: decimal.NewFromInt(-4), after: decimal.NewFromInt(6)},
		{change: generic.MustParseDecimal("0.333"), after: generic.MustParseDecimal("6.333")},
	}
	final, err := generic.ReplayRunning(entries, generic.UnitGram750)
	require.NoError(t, err)
	assert.True(t, final.Value.Equal(generic.MustParseDecimal("6.333")))
}

func TestReplayRunning_ReportsFirstDrift(t *testing.T) {
	// GIVEN: the second stored balance was tampered with
	// THEN: the drift points at index 1 with both values

	entries := []runningEntry{
		{change: decimal.NewFromInt(10), after: decimal.NewFromInt(10)},
		{change: decimal.NewFromInt(-4), after: decimal.NewFromInt(7)},
		{change: decimal.NewFromInt(1), after: decimal.NewFromInt(8)},
	}
	_, err := generic.ReplayRunning(entries, generic.UnitGram750)
	require.Error(t, err)

	var drift *generic.DriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, 1, drift.Index)
	assert.True(t, drift.Stored.Value.Equal(decimal.NewFromInt(7)))
	assert.True(t, drift.Replayed.Value.Equal(decimal.NewFromInt(6)))
}

// =============================================================================
// AMOUNTS AND POSITIONS
// =============================================================================

func TestAmount_RoundedPerUnit(t *testing.T) {
	assert.Equal(t, "1235", generic.RialsDec(generic.MustParseDecimal("1234.5")).Rounded().Value.String())
	assert.Equal(t, "9.333", generic.Grams750(generic.MustParseDecimal("9.33333")).Rounded().Value.String())
	assert.Equal(t, "2.5", generic.CountDec(generic.MustParseDecimal("2.5")).Rounded().Value.String())
}

func TestAmount_EqualComparesUnit(t *testing.T) {
	assert.False(t, generic.Grams(decimal.NewFromInt(1)).Equal(generic.Grams750(decimal.NewFromInt(1))))
	assert.True(t, generic.Rials(5).Equal(generic.Rials(2).Add(generic.Rials(3))))
}

func TestPosition_SubIsAddNeg(t *testing.T) {
	a := generic.Position{Rial: generic.Rials(10), Weight: generic.Grams750(decimal.NewFromInt(2)), Count: generic.Count(1)}
	assert.True(t, a.Sub(a).IsZero())
	assert.True(t, a.Neg().Neg().Equal(a))
}
