/*
weight_ledger.go - Running-total gold obligations per contact and category

PURPOSE:
  Tracks gold owed in kind (750-equivalent grams) per (contact, product
  category) when settlement is physical rather than cash.

RUNNING TOTAL, NOT A SUM:
  Each entry stores balance_after = last balance_after + change. The last
  balance comes from the most recent entry ordered by (entry_date,
  insertion), never from summing the log. entry_date is the posting time,
  held monotonic per key (never earlier than the previous entry's), so the
  order entries are written in is the order they replay in.

  Replaying changes from zero must reproduce every stored balance_after
  exactly; Verify checks this.
*/
package gold

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
)

type WeightLedger struct {
	store WeightLedgerStore
	now   func() time.Time
	newID func() string
}

func NewWeightLedger(store WeightLedgerStore, now func() time.Time, newID func() string) *WeightLedger {
	return &WeightLedger{store: store, now: now, newID: newID}
}

// RecordEntry chains change onto the last balance for key and returns the
// stored entry (BalanceAfter filled).
func (l *WeightLedger) RecordEntry(ctx context.Context, key WeightKey, event WeightEvent, change decimal.Decimal, relatedID string) (WeightEntry, error) {
	return l.record(ctx, WeightEntry{
		ContactID:  key.ContactID,
		CategoryID: key.CategoryID,
		EventType:  event,
		Change:     change,
		RelatedID:  relatedID,
	})
}

func (l *WeightLedger) record(ctx context.Context, e WeightEntry) (WeightEntry, error) {
	verr := &generic.ValidationError{Op: "weight_ledger.record"}
	if e.ContactID == "" {
		verr.Add("contact_id", "required", "")
	}
	if e.CategoryID == "" {
		verr.Add("category_id", "required", "")
	}
	switch e.EventType {
	case WeightEventSettlement, WeightEventTransaction, WeightEventAdjustment:
	default:
		verr.Add("event_type", "oneof=SETTLEMENT TRANSACTION ADJUSTMENT", "")
	}
	if err := verr.OrNil(); err != nil {
		return WeightEntry{}, err
	}

	last, err := l.store.LastWeightEntry(ctx, WeightKey{ContactID: e.ContactID, CategoryID: e.CategoryID})
	if err != nil {
		return WeightEntry{}, err
	}
	e.ID = l.newID()
	e.EntryDate = l.now()
	e.BalanceAfter = e.Change
	if last != nil {
		// a clock step back must not sort the new entry before its predecessor
		if e.EntryDate.Before(last.EntryDate) {
			e.EntryDate = last.EntryDate
		}
		e.BalanceAfter = last.BalanceAfter.Add(e.Change)
	}
	if err := l.store.AppendWeightEntry(ctx, e); err != nil {
		return WeightEntry{}, err
	}
	return e, nil
}

// Reverse posts an ADJUSTMENT that cancels original.
func (l *WeightLedger) Reverse(ctx context.Context, original WeightEntry) (WeightEntry, error) {
	if original.ReversalOf != "" {
		return WeightEntry{}, generic.ErrAlreadyReversed
	}
	return l.record(ctx, WeightEntry{
		ContactID:  original.ContactID,
		CategoryID: original.CategoryID,
		EventType:  WeightEventAdjustment,
		Change:     original.Change.Neg(),
		RelatedID:  original.RelatedID,
		ReversalOf: original.ID,
	})
}

// LastBalance is balance_after of the most recent entry, or zero.
func (l *WeightLedger) LastBalance(ctx context.Context, key WeightKey) (generic.Amount, error) {
	last, err := l.store.LastWeightEntry(ctx, key)
	if err != nil {
		return generic.Amount{}, err
	}
	if last == nil {
		return generic.ZeroOf(generic.UnitGram750), nil
	}
	return generic.Grams750(last.BalanceAfter), nil
}

// WeightDrift is a (contact, category) whose stored running balance
// disagrees with a replay.
type WeightDrift struct {
	Key   WeightKey
	Drift *generic.DriftError
}

// Verify replays every running balance.
func (l *WeightLedger) Verify(ctx context.Context) ([]WeightDrift, error) {
	keys, err := l.store.WeightKeys(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []WeightDrift
	for _, key := range keys {
		entries, err := l.store.WeightEntries(ctx, key)
		if err != nil {
			return nil, err
		}
		if _, err := generic.ReplayRunning(entries, generic.UnitGram750); err != nil {
			drift, _ := err.(*generic.DriftError)
			drifts = append(drifts, WeightDrift{Key: key, Drift: drift})
		}
	}
	return drifts, nil
}
