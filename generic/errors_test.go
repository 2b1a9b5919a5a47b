package generic_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/generic"
)

func TestValidationError_OrNil(t *testing.T) {
	verr := &generic.ValidationError{Op: "save"}
	assert.NoError(t, verr.OrNil())

	verr.Add("weight_grams", "gt=0", "")
	err := verr.OrNil()
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Contains(t, err.Error(), "weight_grams: gt=0")
}

func TestValidationError_MergePrefixesFields(t *testing.T) {
	outer := &generic.ValidationError{Op: "save_transaction"}
	outer.Merge("items[2]", generic.NewValidationError("process_item", "purity", "gt=0", ""))
	outer.Merge("", nil)

	require.Len(t, outer.Fields, 1)
	assert.Equal(t, "items[2].purity", outer.Fields[0].Field)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		client   bool
		state    bool
		notFound bool
	}{
		{"validation", generic.NewValidationError("op", "f", "required", ""), true, false, false},
		{"invalid period", generic.ErrInvalidPeriod, true, false, false},
		{"transition", generic.NewStateError("complete", "completed", "receipt"), false, true, false},
		{"no lines", generic.NewNoLinesError("record_settlement"), false, true, false},
		{"already reversed", generic.ErrAlreadyReversed, false, true, false},
		{"not found", generic.NotFound("contact", "c-1"), false, false, true},
		{"wrapped not found", fmt.Errorf("load: %w", generic.NotFound("product", "p-1")), false, false, true},
		{"other", errors.New("disk full"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.client, generic.IsClientError(tt.err), "client")
			assert.Equal(t, tt.state, generic.IsStateError(tt.err), "state")
			assert.Equal(t, tt.notFound, generic.IsNotFound(tt.err), "not found")
		})
	}
}

func TestStateError_Messages(t *testing.T) {
	assert.Equal(t, `complete_delivery: cannot receipt from status "completed"`,
		generic.NewStateError("complete_delivery", "completed", "receipt").Error())
	assert.Equal(t, "record_settlement: no valid lines", generic.NewNoLinesError("record_settlement").Error())
}

func TestWrapPersistence(t *testing.T) {
	assert.NoError(t, generic.WrapPersistence("op", nil))

	// domain errors pass through untouched
	notFound := generic.NotFound("contact", "c-1")
	assert.Same(t, notFound, generic.WrapPersistence("op", notFound))

	err := generic.WrapPersistence("save", errors.New("database is locked"))
	assert.ErrorIs(t, err, generic.ErrPersistence)
	assert.False(t, generic.IsClientError(err))
	assert.Contains(t, err.Error(), "database is locked")
}

// =============================================================================
// TIME
// =============================================================================

func TestParseDate(t *testing.T) {
	tp, err := generic.ParseDate("2025-03-21")
	require.NoError(t, err)
	assert.True(t, tp.Equal(generic.NewTimePoint(2025, time.March, 21)))
	assert.Equal(t, "2025-03-21", tp.String())

	_, err = generic.ParseDate("21/03/2025")
	assert.Error(t, err)
}

func TestDateOf_TruncatesToDay(t *testing.T) {
	tp := generic.DateOf(time.Date(2025, time.March, 21, 23, 59, 0, 0, time.UTC))
	assert.True(t, tp.Equal(generic.NewTimePoint(2025, time.March, 21)))
	assert.True(t, tp.AddDays(1).After(tp))
}

func TestPeriod(t *testing.T) {
	p := generic.Period{Start: generic.NewTimePoint(2025, time.March, 1), End: generic.NewTimePoint(2025, time.March, 31)}
	require.NoError(t, p.Validate())
	assert.True(t, p.Contains(generic.NewTimePoint(2025, time.March, 1)))
	assert.True(t, p.Contains(generic.NewTimePoint(2025, time.March, 31)))
	assert.False(t, p.Contains(generic.NewTimePoint(2025, time.April, 1)))

	open := generic.Period{End: generic.NewTimePoint(2025, time.March, 31)}
	assert.True(t, open.Contains(generic.NewTimePoint(2020, time.January, 1)), "zero start is unbounded")

	reversed := generic.Period{Start: p.End, End: p.Start}
	assert.ErrorIs(t, reversed.Validate(), generic.ErrInvalidPeriod)
}

func TestCheckRials(t *testing.T) {
	verr := &generic.ValidationError{Op: "op"}
	verr.CheckRials("max", generic.MaxRials)
	verr.CheckRials("negative max", generic.MaxRials.Neg())
	assert.NoError(t, verr.OrNil())

	verr.CheckRials("amount_rials", generic.MaxRials.Add(decimal.NewFromInt(1)))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "amount_rials", verr.Fields[0].Field)
	assert.Equal(t, "lte=max_rials", verr.Fields[0].Rule)

	// rounding happens first: .4 above the limit still rounds to it
	assert.True(t, generic.RialsFit(generic.MaxRials.Add(generic.MustParseDecimal("0.4"))))
}
