package gold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

// env is what every processor shares: the store, the logger and the
// injected clock and id source.
type env struct {
	store  TxStore
	log    *logrus.Logger
	now    func() time.Time
	newID  func() string
	items  *ItemProcessor
	valuer CostValuer
}

// ledgers binds the four ledgers to one (usually transactional) store.
type ledgers struct {
	contacts  *ContactLedger
	weights   *WeightLedger
	inventory *InventoryLedger
	bank      *BankLedger
}

func (v *env) ledgers(s Store) ledgers {
	return ledgers{
		contacts:  NewContactLedger(s, v.now, v.newID),
		weights:   NewWeightLedger(s, v.now, v.newID),
		inventory: NewInventoryLedger(s, v.valuer, v.now, v.newID),
		bank:      NewBankLedger(s, v.now, v.newID),
	}
}

func (v *env) today() generic.TimePoint {
	return generic.DateOf(v.now())
}

// inTx runs fn in one database transaction and classifies what escapes.
func (v *env) inTx(ctx context.Context, op string, fn func(Store) error) error {
	err := v.store.WithTx(ctx, fn)
	if err != nil {
		err = generic.WrapPersistence(op, err)
		entry := v.log.WithFields(logrus.Fields{"module": "gold", "op": op}).WithError(err)
		if errors.Is(err, generic.ErrPersistence) {
			entry.Error("operation rolled back")
		} else {
			entry.Warn("operation rejected")
		}
	}
	return err
}

// sideSign is +1 when the business takes goods (buy) and -1 when it hands
// them over (sell).
func sideSign(t TxType) decimal.Decimal {
	if t == TxSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// =============================================================================
// POSTING - Effects of a completed transaction
// =============================================================================

// itemContactEntry builds the contact ledger row for one completed item.
// Rial mode owes the whole final value; in-kind mode owes the gold in its
// pricing unit and only the charges in Rial.
func itemContactEntry(tx Transaction, item TransactionItem) ContactEntry {
	sign := sideSign(tx.Type)
	e := ContactEntry{
		ContactID: tx.ContactID,
		Date:      tx.Date,
		Ref:       Ref{Type: RefTransactionItem, ID: item.ID, ParentID: tx.ID},
		Memo:      fmt.Sprintf("%s %s", tx.Type, item.Category),
	}
	switch item.SettlementMode {
	case SettleInKind:
		e.Rial = generic.Split(item.ChargesRials().Mul(sign))
		if item.Category.WeightPriced() {
			e.Weight = generic.Split(item.Weight750.Mul(sign))
		} else {
			e.Count = generic.Split(item.Quantity.Mul(sign))
		}
	default:
		e.Rial = generic.Split(item.FinalValueRials.Mul(sign))
	}
	return e
}

// postTransaction books a completed transaction: one inventory row and one
// contact row per item, a weight ledger row per in-kind weight item, and a
// contact row for any header adjustment.
func (lg ledgers) postTransaction(ctx context.Context, tx Transaction) error {
	for _, item := range tx.Items {
		if _, err := lg.inventory.PostItem(ctx, tx.Type, tx.ID, item); err != nil {
			return fmt.Errorf("inventory for item %s: %w", item.ID, err)
		}
		if _, err := lg.contacts.RecordEntry(ctx, itemContactEntry(tx, item)); err != nil {
			return fmt.Errorf("contact ledger for item %s: %w", item.ID, err)
		}
		if item.SettlementMode == SettleInKind && item.Category.WeightPriced() && !item.Weight750.IsZero() {
			key := WeightKey{ContactID: tx.ContactID, CategoryID: item.CategoryID}
			change := item.Weight750.Mul(sideSign(tx.Type))
			if _, err := lg.weights.RecordEntry(ctx, key, WeightEventTransaction, change, item.ID); err != nil {
				return fmt.Errorf("weight ledger for item %s: %w", item.ID, err)
			}
		}
	}
	if !tx.AdjustmentRials.IsZero() {
		_, err := lg.contacts.RecordEntry(ctx, ContactEntry{
			ContactID: tx.ContactID,
			Date:      tx.Date,
			Rial:      generic.Split(tx.AdjustmentRials.Mul(sideSign(tx.Type))),
			Ref:       Ref{Type: RefTransaction, ID: tx.ID, ParentID: tx.ID},
			Memo:      "adjustment",
		})
		if err != nil {
			return fmt.Errorf("contact ledger adjustment: %w", err)
		}
	}
	return nil
}

// reverseTransaction cancels every still-active effect of tx. Reversals
// carry the original dates, so balances as of any date return to what
// they were before tx was booked.
func (lg ledgers) reverseTransaction(ctx context.Context, s Store, tx Transaction) error {
	invEntries, err := s.ActiveInventoryEntries(ctx, tx.ID)
	if err != nil {
		return err
	}
	for _, e := range invEntries {
		if _, err := lg.inventory.Reverse(ctx, e); err != nil {
			return fmt.Errorf("reverse inventory %s: %w", e.ID, err)
		}
	}

	contactEntries, err := s.ActiveContactEntriesByParent(ctx, tx.ID)
	if err != nil {
		return err
	}
	for _, e := range contactEntries {
		if _, err := lg.contacts.Reverse(ctx, e, e.Date, "reversal"); err != nil {
			return fmt.Errorf("reverse contact entry %s: %w", e.ID, err)
		}
	}

	for _, item := range tx.Items {
		weightEntries, err := s.ActiveWeightEntries(ctx, item.ID)
		if err != nil {
			return err
		}
		for _, e := range weightEntries {
			if _, err := lg.weights.Reverse(ctx, e); err != nil {
				return fmt.Errorf("reverse weight entry %s: %w", e.ID, err)
			}
		}
	}
	return nil
}
