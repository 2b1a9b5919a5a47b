package gold_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/factory"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
	"github.com/warp/gold-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC)

func march(day int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.March, day)
}

// newTestEngine returns an engine over an in-memory store seeded with the
// default catalog.
func newTestEngine(t *testing.T) (*gold.Engine, *sqlite.Store) {
	t.Helper()
	return newTestEngineWithClock(t, func() time.Time { return testNow })
}

func newTestEngineWithClock(t *testing.T, now func() time.Time) (*gold.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	seq := 0
	engine := gold.NewEngine(store, logger,
		gold.WithClock(now),
		gold.WithIDs(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	)

	f := factory.NewCatalogFactory()
	catalog, err := f.ParseCatalog(factory.DefaultCatalogJSON)
	require.NoError(t, err)
	require.NoError(t, f.Seed(context.Background(), engine, catalog))
	return engine, store
}

// meltedBuy is 10g of 700 melted gold at 5,000,000 per fine gram
// (35,000,000 rial, 9.333g on the 750 basis).
func meltedBuy(complete bool) gold.TransactionInput {
	return gold.TransactionInput{
		Type:                gold.TxBuy,
		ContactID:           "c-supplier",
		Date:                march(1),
		CompleteImmediately: complete,
		Items: []gold.ItemInput{{
			ProductID:      "p-melted",
			WeightGrams:    dec("10"),
			Purity:         dec("700"),
			UnitPriceRials: dec("5000000"),
		}},
	}
}

func requireRialBalance(t *testing.T, engine *gold.Engine, contactID string, want int64) {
	t.Helper()
	pos, err := engine.GetContactBalance(context.Background(), contactID, nil)
	require.NoError(t, err)
	assert.True(t, pos.Rial.Value.Equal(decimal.NewFromInt(want)), "want rial balance %d, got %s", want, pos.Rial)
}

// =============================================================================
// CREATE
// =============================================================================

func TestTransaction_BuyStartsPendingReceipt(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)

	assert.Equal(t, gold.StatusPendingReceipt, res.DeliveryStatus)
	assert.True(t, res.FinalAmount.Value.Equal(decimal.NewFromInt(35_000_000)))
	assert.Equal(t, generic.UnitRial, res.FinalAmount.Unit)

	tx, err := engine.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "9.333", tx.Items[0].Weight750.StringFixed(3))
	assert.True(t, tx.Date.Equal(march(1)))
}

func TestTransaction_SellStartsPendingDelivery(t *testing.T) {
	engine, _ := newTestEngine(t)

	in := meltedBuy(false)
	in.Type = gold.TxSell
	in.ContactID = "c-customer"
	res, err := engine.CreateOrUpdateTransaction(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, gold.StatusPendingDelivery, res.DeliveryStatus)
}

func TestTransaction_PendingIsNotBooked(t *testing.T) {
	// GIVEN: a buy whose goods have not arrived
	// WHEN: reading stock and the supplier balance
	// THEN: neither moved

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)

	inv, err := engine.GetInventoryBalance(ctx, "p-melted")
	require.NoError(t, err)
	assert.True(t, inv.WeightGrams.IsZero())
	assert.True(t, inv.ValueRials.IsZero())

	pos, err := engine.GetContactBalance(ctx, "c-supplier", nil)
	require.NoError(t, err)
	assert.True(t, pos.IsZero())
}

func TestTransaction_CompleteImmediatelyBooksEverything(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(true), "")
	require.NoError(t, err)
	assert.Equal(t, gold.StatusCompleted, res.DeliveryStatus)

	inv, err := engine.GetInventoryBalance(ctx, "p-melted")
	require.NoError(t, err)
	assert.True(t, inv.WeightGrams.Value.Equal(dec("10")))
	assert.True(t, inv.Weight750.Value.Equal(dec("9.333")))
	assert.True(t, inv.ValueRials.Value.Equal(decimal.NewFromInt(35_000_000)))

	// we owe the refinery: a buy credits the contact
	requireRialBalance(t, engine, "c-supplier", 35_000_000)
}

func TestTransaction_ValidationReportsEveryField(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateOrUpdateTransaction(context.Background(), gold.TransactionInput{
		Type:      "swap",
		ContactID: "c-nobody",
		Items: []gold.ItemInput{
			{ProductID: "p-missing"},
			{ProductID: "p-melted", UnitPriceRials: dec("1")},
		},
	}, "")
	require.Error(t, err)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["type"])
	assert.True(t, fields["contact_id"])
	assert.True(t, fields["items[0].product_id"])
	assert.True(t, fields["items[1].weight_grams"])
	assert.True(t, fields["items[1].purity"])
}

func TestTransaction_NoItemsRejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	in := meltedBuy(false)
	in.Items = nil
	_, err := engine.CreateOrUpdateTransaction(context.Background(), in, "")
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
}

func TestTransaction_AdjustmentPostedSeparately(t *testing.T) {
	// GIVEN: a 500,000 rial discount on a completed buy
	// THEN: the payable drops and the contact entry for the adjustment is
	// its own ledger row

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	in := meltedBuy(true)
	in.AdjustmentRials = dec("-500000")
	res, err := engine.CreateOrUpdateTransaction(ctx, in, "")
	require.NoError(t, err)
	assert.True(t, res.FinalAmount.Value.Equal(decimal.NewFromInt(34_500_000)))

	requireRialBalance(t, engine, "c-supplier", 34_500_000)

	st, err := engine.ContactStatement(ctx, "c-supplier", generic.Period{End: march(31)})
	require.NoError(t, err)
	assert.Len(t, st.Lines, 2)
}

func TestTransaction_AdjustmentCannotExceedValue(t *testing.T) {
	engine, _ := newTestEngine(t)

	in := meltedBuy(false)
	in.AdjustmentRials = dec("-35000001")
	_, err := engine.CreateOrUpdateTransaction(context.Background(), in, "")
	require.Error(t, err)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "adjustment_rials", verr.Fields[0].Field)
}

func TestTransaction_RialTotalsMustFitTheStore(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	in := meltedBuy(false)
	in.AdjustmentRials = dec("100000000000000000000")
	_, err := engine.CreateOrUpdateTransaction(ctx, in, "")
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "adjustment_rials", verr.Fields[0].Field)
	assert.Equal(t, "lte=max_rials", verr.Fields[0].Rule)

	// two lines that fit on their own but not together
	coin := gold.ItemInput{ProductID: "p-emami", Quantity: dec("1"), UnitPriceRials: dec("5000000000000000000")}
	_, err = engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type:      gold.TxBuy,
		ContactID: "c-supplier",
		Date:      march(1),
		Items:     []gold.ItemInput{coin, coin},
	}, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "final_payable_rials", verr.Fields[0].Field)

	txs, err := engine.ListTransactions(ctx, "c-supplier")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTransaction_GetMissing(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.GetTransaction(context.Background(), "nope")
	assert.True(t, generic.IsNotFound(err))
}

func TestTransaction_ListByContact(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)
	sell := meltedBuy(false)
	sell.Type = gold.TxSell
	sell.ContactID = "c-customer"
	_, err = engine.CreateOrUpdateTransaction(ctx, sell, "")
	require.NoError(t, err)

	all, err := engine.ListTransactions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	supplier, err := engine.ListTransactions(ctx, "c-supplier")
	require.NoError(t, err)
	require.Len(t, supplier, 1)
	assert.Equal(t, gold.TxBuy, supplier[0].Type)
}

// =============================================================================
// DELIVERY STATE MACHINE
// =============================================================================

func TestDelivery_ReceiptBooksBuy(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)

	ok, err := engine.CompleteDelivery(ctx, res.TransactionID, gold.ActionReceipt)
	require.NoError(t, err)
	assert.True(t, ok)

	tx, err := engine.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, gold.StatusCompleted, tx.Status)
	requireRialBalance(t, engine, "c-supplier", 35_000_000)
}

func TestDelivery_SecondCompletionRejected(t *testing.T) {
	// GIVEN: a buy already received
	// WHEN: receipt is confirmed again
	// THEN: false with a state error, and nothing is posted twice

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)
	_, err = engine.CompleteDelivery(ctx, res.TransactionID, gold.ActionReceipt)
	require.NoError(t, err)

	ok, err := engine.CompleteDelivery(ctx, res.TransactionID, gold.ActionReceipt)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, generic.IsStateError(err))

	var stateErr *generic.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, string(gold.StatusCompleted), stateErr.Current)

	inv, err := engine.GetInventoryBalance(ctx, "p-melted")
	require.NoError(t, err)
	assert.True(t, inv.WeightGrams.Value.Equal(dec("10")), "stock posted once, got %s", inv.WeightGrams)
	requireRialBalance(t, engine, "c-supplier", 35_000_000)
}

func TestDelivery_WrongActionRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)

	ok, err := engine.CompleteDelivery(ctx, res.TransactionID, gold.ActionDelivery)
	assert.False(t, ok)
	assert.True(t, generic.IsStateError(err))
}

func TestDelivery_UnknownAction(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CompleteDelivery(context.Background(), "any", "teleport")
	assert.True(t, generic.IsClientError(err))
}

func TestDelivery_MissingTransaction(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CompleteDelivery(context.Background(), "nope", gold.ActionReceipt)
	assert.True(t, generic.IsNotFound(err))
}

func TestDelivery_CancelPending(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)

	require.NoError(t, engine.CancelTransaction(ctx, res.TransactionID))

	tx, err := engine.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, gold.StatusCancelled, tx.Status)

	// cancelled is terminal
	assert.True(t, generic.IsStateError(engine.CancelTransaction(ctx, res.TransactionID)))
	_, err = engine.CompleteDelivery(ctx, res.TransactionID, gold.ActionReceipt)
	assert.True(t, generic.IsStateError(err))
	_, err = engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), res.TransactionID)
	assert.True(t, generic.IsStateError(err))
}

func TestDelivery_CancelCompletedRejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(true), "")
	require.NoError(t, err)

	err = engine.CancelTransaction(ctx, res.TransactionID)
	assert.True(t, generic.IsStateError(err))
	requireRialBalance(t, engine, "c-supplier", 35_000_000)
}

// =============================================================================
// EDIT AND DELETE
// =============================================================================

func TestTransaction_EditCompletedRepostsEffects(t *testing.T) {
	// GIVEN: a completed 10g buy
	// WHEN: it is edited to 20g
	// THEN: the old effects are reversed and only the new ones count

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(true), "")
	require.NoError(t, err)

	edited := meltedBuy(false)
	edited.Items[0].WeightGrams = dec("20")
	updated, err := engine.CreateOrUpdateTransaction(ctx, edited, res.TransactionID)
	require.NoError(t, err)

	assert.Equal(t, res.TransactionID, updated.TransactionID)
	assert.Equal(t, gold.StatusCompleted, updated.DeliveryStatus, "a completed trade stays completed")

	requireRialBalance(t, engine, "c-supplier", 70_000_000)
	inv, err := engine.GetInventoryBalance(ctx, "p-melted")
	require.NoError(t, err)
	assert.True(t, inv.WeightGrams.Value.Equal(dec("20")))
	assert.True(t, inv.ValueRials.Value.Equal(decimal.NewFromInt(70_000_000)))

	report, err := engine.VerifyConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestTransaction_EditPendingStaysPending(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(false), "")
	require.NoError(t, err)

	edited := meltedBuy(false)
	edited.Notes = "second weighing"
	updated, err := engine.CreateOrUpdateTransaction(ctx, edited, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, gold.StatusPendingReceipt, updated.DeliveryStatus)

	tx, err := engine.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "second weighing", tx.Notes)
	requireRialBalance(t, engine, "c-supplier", 0)
}

func TestTransaction_EditMissing(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateOrUpdateTransaction(context.Background(), meltedBuy(false), "nope")
	assert.True(t, generic.IsNotFound(err))
}

func TestTransaction_DeleteCompletedReversesEverything(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateOrUpdateTransaction(ctx, meltedBuy(true), "")
	require.NoError(t, err)

	require.NoError(t, engine.DeleteTransaction(ctx, res.TransactionID))

	_, err = engine.GetTransaction(ctx, res.TransactionID)
	assert.True(t, generic.IsNotFound(err))

	requireRialBalance(t, engine, "c-supplier", 0)
	inv, err := engine.GetInventoryBalance(ctx, "p-melted")
	require.NoError(t, err)
	assert.True(t, inv.WeightGrams.IsZero())
	assert.True(t, inv.ValueRials.IsZero())

	// the log keeps both rows
	st, err := engine.ContactStatement(ctx, "c-supplier", generic.Period{End: march(31)})
	require.NoError(t, err)
	assert.Len(t, st.Lines, 2)
	assert.True(t, st.Closing.IsZero())
}

func TestTransaction_DeleteMissing(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.True(t, generic.IsNotFound(engine.DeleteTransaction(context.Background(), "nope")))
}

// =============================================================================
// INVENTORY VALUATION
// =============================================================================

func TestInventory_SaleRemovesAverageCost(t *testing.T) {
	// GIVEN: 20g of 750 bought for 60,000,000 (3,000,000 per 750-gram)
	// WHEN: 5g of 750 is sold at a different price
	// THEN: stock value drops by 5 × 3,000,000, not by the sale price

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type: gold.TxBuy, ContactID: "c-supplier", Date: march(1), CompleteImmediately: true,
		Items: []gold.ItemInput{{ProductID: "p-melted", WeightGrams: dec("20"), Purity: dec("750"), UnitPriceRials: dec("4000000")}},
	}, "")
	require.NoError(t, err)

	_, err = engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type: gold.TxSell, ContactID: "c-customer", Date: march(2), CompleteImmediately: true,
		Items: []gold.ItemInput{{ProductID: "p-melted", WeightGrams: dec("5"), Purity: dec("750"), UnitPriceRials: dec("5000000")}},
	}, "")
	require.NoError(t, err)

	inv, err := engine.GetInventoryBalance(ctx, "p-melted")
	require.NoError(t, err)
	assert.True(t, inv.WeightGrams.Value.Equal(dec("15")))
	assert.True(t, inv.Weight750.Value.Equal(dec("15")))
	assert.True(t, inv.ValueRials.Value.Equal(decimal.NewFromInt(45_000_000)), "got %s", inv.ValueRials)

	// the customer owes the sale price: a sell debits the contact
	requireRialBalance(t, engine, "c-customer", -18_750_000)
}

func TestInventory_CoinsCountedByPiece(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type: gold.TxBuy, ContactID: "c-supplier", Date: march(1), CompleteImmediately: true,
		Items: []gold.ItemInput{{ProductID: "p-emami", Quantity: dec("10"), UnitPriceRials: dec("480000000")}},
	}, "")
	require.NoError(t, err)

	_, err = engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type: gold.TxSell, ContactID: "c-customer", Date: march(2), CompleteImmediately: true,
		Items: []gold.ItemInput{{ProductID: "p-emami", Quantity: dec("4"), UnitPriceRials: dec("495000000")}},
	}, "")
	require.NoError(t, err)

	inv, err := engine.GetInventoryBalance(ctx, "p-emami")
	require.NoError(t, err)
	assert.True(t, inv.Quantity.Value.Equal(dec("6")))
	assert.True(t, inv.Weight750.IsZero())
	assert.True(t, inv.ValueRials.Value.Equal(decimal.NewFromInt(2_880_000_000)), "got %s", inv.ValueRials)
}

func TestInventory_UnknownProduct(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.GetInventoryBalance(context.Background(), "nope")
	assert.True(t, generic.IsNotFound(err))
}
