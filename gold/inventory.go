/*
inventory.go - Booked stock per product

PURPOSE:
  Signed stock movements (raw grams, 750-equivalent grams, pieces, Rial
  value) per product. Current balance is the sum of all movements.

BOOKED VS CONTRACTED:
  Entries are written only when a transaction completes. Goods bought but
  not yet received, or sold but not yet delivered, are contracted, not
  booked, and never show up here.

VALUATION:
  Buys add their base value (cost). Sells remove value at average cost:
    cost = balance value / balance units × sold units
  where units are 750-equivalent grams for weight-priced categories and
  pieces for count-priced ones. CostValuer is the extension point for a
  different method; only average cost is implemented.
*/
package gold

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
)

// CostValuer prices the stock leaving inventory on a sale.
type CostValuer interface {
	CostOf(balance InventoryBalance, item TransactionItem) decimal.Decimal
}

// AverageCost values sales at the running average cost of the product.
type AverageCost struct{}

func (AverageCost) CostOf(balance InventoryBalance, item TransactionItem) decimal.Decimal {
	units := balance.Quantity.Value
	if item.Category.WeightPriced() {
		units = balance.Weight750.Value
	}
	sold := item.BaseUnits().Value
	if !units.IsPositive() || !balance.ValueRials.IsPositive() {
		// nothing booked to average over; the sale carries its own base value
		return item.TotalValueRials
	}
	if sold.GreaterThanOrEqual(units) {
		return balance.ValueRials.Value
	}
	return balance.ValueRials.Value.Div(units).Mul(sold).Round(generic.RialPlaces)
}

type InventoryLedger struct {
	store  InventoryStore
	valuer CostValuer
	now    func() time.Time
	newID  func() string
}

func NewInventoryLedger(store InventoryStore, valuer CostValuer, now func() time.Time, newID func() string) *InventoryLedger {
	if valuer == nil {
		valuer = AverageCost{}
	}
	return &InventoryLedger{store: store, valuer: valuer, now: now, newID: newID}
}

// RecordEntry appends one stock movement.
func (l *InventoryLedger) RecordEntry(ctx context.Context, e InventoryEntry) (InventoryEntry, error) {
	if e.ProductID == "" {
		return InventoryEntry{}, generic.NewValidationError("inventory.record", "product_id", "required", "")
	}
	e.ID = l.newID()
	e.CreatedAt = l.now()
	if err := l.store.AppendInventoryEntry(ctx, e); err != nil {
		return InventoryEntry{}, err
	}
	return e, nil
}

// PostItem books a completed item: buys add stock at cost, sells remove it
// at the valuer's cost.
func (l *InventoryLedger) PostItem(ctx context.Context, txType TxType, transactionID string, item TransactionItem) (InventoryEntry, error) {
	e := InventoryEntry{
		ProductID:         item.ProductID,
		ChangeWeightGrams: item.WeightGrams,
		ChangeWeight750:   item.Weight750,
		ChangeQuantity:    item.Quantity,
		ChangeValueRials:  item.TotalValueRials,
		SourceItemID:      item.ID,
		TransactionID:     transactionID,
	}
	if txType == TxSell {
		balance, err := l.CurrentBalance(ctx, item.ProductID)
		if err != nil {
			return InventoryEntry{}, err
		}
		e.ChangeWeightGrams = e.ChangeWeightGrams.Neg()
		e.ChangeWeight750 = e.ChangeWeight750.Neg()
		e.ChangeQuantity = e.ChangeQuantity.Neg()
		e.ChangeValueRials = l.valuer.CostOf(balance, item).Neg()
	}
	return l.RecordEntry(ctx, e)
}

// Reverse appends the exact negation of original.
func (l *InventoryLedger) Reverse(ctx context.Context, original InventoryEntry) (InventoryEntry, error) {
	if original.ReversalOf != "" {
		return InventoryEntry{}, generic.ErrAlreadyReversed
	}
	return l.RecordEntry(ctx, InventoryEntry{
		ProductID:         original.ProductID,
		ChangeWeightGrams: original.ChangeWeightGrams.Neg(),
		ChangeWeight750:   original.ChangeWeight750.Neg(),
		ChangeQuantity:    original.ChangeQuantity.Neg(),
		ChangeValueRials:  original.ChangeValueRials.Neg(),
		SourceItemID:      original.SourceItemID,
		TransactionID:     original.TransactionID,
		ReversalOf:        original.ID,
	})
}

// CurrentBalance sums every movement of the product.
func (l *InventoryLedger) CurrentBalance(ctx context.Context, productID string) (InventoryBalance, error) {
	entries, err := l.store.InventoryEntries(ctx, productID)
	if err != nil {
		return InventoryBalance{}, err
	}
	return SumInventory(productID, entries), nil
}

// SumInventory folds movements into a balance.
func SumInventory(productID string, entries []InventoryEntry) InventoryBalance {
	b := InventoryBalance{
		ProductID:   productID,
		WeightGrams: generic.ZeroOf(generic.UnitGram),
		Weight750:   generic.ZeroOf(generic.UnitGram750),
		Quantity:    generic.ZeroOf(generic.UnitCount),
		ValueRials:  generic.ZeroOf(generic.UnitRial),
	}
	for _, e := range entries {
		b.WeightGrams = b.WeightGrams.Add(generic.Grams(e.ChangeWeightGrams))
		b.Weight750 = b.Weight750.Add(generic.Grams750(e.ChangeWeight750))
		b.Quantity = b.Quantity.Add(generic.CountDec(e.ChangeQuantity))
		b.ValueRials = b.ValueRials.Add(generic.RialsDec(e.ChangeValueRials))
	}
	return b
}
