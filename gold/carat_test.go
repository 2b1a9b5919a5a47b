package gold_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
)

func dec(s string) decimal.Decimal {
	return generic.MustParseDecimal(s)
}

func TestNormalize_ReferencePurityIsIdentity(t *testing.T) {
	got, err := gold.Normalize750(dec("12.5"), dec("750"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12.5")), "got %s", got)
}

func TestNormalize_LinearInWeight(t *testing.T) {
	// GIVEN: two weights at the same purity
	// WHEN: normalizing them separately and together
	// THEN: the parts add up to the whole exactly

	a, b, purity := dec("7.25"), dec("3.1"), dec("666")

	na, err := gold.Normalize750(a, purity)
	require.NoError(t, err)
	nb, err := gold.Normalize750(b, purity)
	require.NoError(t, err)
	whole, err := gold.Normalize750(a.Add(b), purity)
	require.NoError(t, err)

	assert.True(t, na.Add(nb).Sub(whole).Abs().LessThan(dec("0.000000001")), "parts %s + %s, whole %s", na, nb, whole)
}

func TestNormalize_LinearInPurity(t *testing.T) {
	weight := dec("10")
	n1, err := gold.Normalize750(weight, dec("375"))
	require.NoError(t, err)
	n2, err := gold.Normalize750(weight, dec("750"))
	require.NoError(t, err)

	assert.True(t, n1.Mul(decimal.NewFromInt(2)).Equal(n2), "double purity should double the result: %s vs %s", n1, n2)
}

func TestNormalize_HighPurity(t *testing.T) {
	// 10g of 900 is 12g on the 750 basis
	got, err := gold.Normalize750(dec("10"), dec("900"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12")), "got %s", got)
}

func TestNormalize_RejectsNonPositivePurity(t *testing.T) {
	for _, purity := range []string{"0", "-750"} {
		_, err := gold.Normalize(dec("10"), dec(purity), gold.ReferencePurity)
		require.Error(t, err, "purity %s", purity)
		assert.True(t, generic.IsClientError(err))
	}
}

func TestNormalize_RejectsZeroReference(t *testing.T) {
	_, err := gold.Normalize(dec("10"), dec("750"), decimal.Zero)
	require.Error(t, err)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reference_purity", verr.Fields[0].Field)
}
