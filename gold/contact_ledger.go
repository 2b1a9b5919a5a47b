/*
contact_ledger.go - Summed-log ledger of what each contact owes or is owed

PURPOSE:
  Every money- or weight-moving event (transaction completion, payment,
  settlement) appends one entry per contact with Rial, weight and count
  debit/credit columns.

SIGN CONVENTION:
  balance = Σcredit − Σdebit. Positive means the business owes the contact.
    buy item completed    → credit (we owe them for the goods)
    sell item completed   → debit  (they owe us)
    payment inflow        → credit (they paid us)
    payment outflow       → debit  (we paid them)
    settlement inflow     → credit weight (they handed us gold)
    settlement outflow    → debit weight

BALANCE QUERIES:
  BalanceAsOf(contact, nil) reads the materialized cache, which is adjusted
  in the same database transaction as every append. BalanceAsOf with a
  cutoff runs an indexed range query on (contact_id, entry_date) and sums.
  The log is the source of truth; Verify replays it against the cache.
*/
package gold

import (
	"context"
	"time"

	"github.com/warp/gold-ledger/generic"
)

type ContactLedger struct {
	store ContactLedgerStore
	now   func() time.Time
	newID func() string
}

func NewContactLedger(store ContactLedgerStore, now func() time.Time, newID func() string) *ContactLedger {
	return &ContactLedger{store: store, now: now, newID: newID}
}

// RecordEntry appends e and moves the cached balance by its effect.
// Column values must be non-negative; a signed effect goes through Split.
func (l *ContactLedger) RecordEntry(ctx context.Context, e ContactEntry) (ContactEntry, error) {
	if err := validateContactEntry(e); err != nil {
		return ContactEntry{}, err
	}
	if e.ID == "" {
		e.ID = l.newID()
	}
	e.CreatedAt = l.now()

	current, err := l.currentPosition(ctx, e.ContactID)
	if err != nil {
		return ContactEntry{}, err
	}
	next := current.Add(e.Effect())
	if !generic.RialsFit(next.Rial.Value) {
		return ContactEntry{}, generic.NewValidationError("contact_ledger.record", "rial", "lte=max_rials", "contact balance would be out of range")
	}
	if err := l.store.AppendContactEntry(ctx, e); err != nil {
		return ContactEntry{}, err
	}
	if err := l.store.PutCachedPosition(ctx, e.ContactID, next); err != nil {
		return ContactEntry{}, err
	}
	return e, nil
}

func validateContactEntry(e ContactEntry) error {
	verr := &generic.ValidationError{Op: "contact_ledger.record"}
	if e.ContactID == "" {
		verr.Add("contact_id", "required", "")
	}
	if e.Date.IsZero() {
		verr.Add("entry_date", "required", "")
	}
	for name, dc := range map[string]generic.DebitCredit{"rial": e.Rial, "weight": e.Weight, "count": e.Count} {
		if dc.Debit.IsNegative() || dc.Credit.IsNegative() {
			verr.Add(name, "gte=0", "debit and credit columns are non-negative")
		}
	}
	return verr.OrNil()
}

// Reverse appends the mirror image of original, dated on date.
func (l *ContactLedger) Reverse(ctx context.Context, original ContactEntry, date generic.TimePoint, memo string) (ContactEntry, error) {
	if original.ReversalOf != "" {
		return ContactEntry{}, generic.ErrAlreadyReversed
	}
	return l.RecordEntry(ctx, ContactEntry{
		ContactID:  original.ContactID,
		Date:       date,
		Rial:       original.Rial.Swap(),
		Weight:     original.Weight.Swap(),
		Count:      original.Count.Swap(),
		Ref:        original.Ref,
		ReversalOf: original.ID,
		Memo:       memo,
	})
}

// BalanceAsOf sums entries dated on or before cutoff; nil cutoff reads the
// current balance.
func (l *ContactLedger) BalanceAsOf(ctx context.Context, contactID string, cutoff *generic.TimePoint) (generic.Position, error) {
	if cutoff == nil {
		return l.currentPosition(ctx, contactID)
	}
	entries, err := l.store.ContactEntries(ctx, contactID, nil, cutoff)
	if err != nil {
		return generic.Position{}, err
	}
	return generic.BalanceAt(entries, cutoff), nil
}

func (l *ContactLedger) currentPosition(ctx context.Context, contactID string) (generic.Position, error) {
	pos, ok, err := l.store.GetCachedPosition(ctx, contactID)
	if err != nil {
		return generic.Position{}, err
	}
	if ok {
		return pos, nil
	}
	return l.replay(ctx, contactID)
}

func (l *ContactLedger) replay(ctx context.Context, contactID string) (generic.Position, error) {
	entries, err := l.store.ContactEntries(ctx, contactID, nil, nil)
	if err != nil {
		return generic.Position{}, err
	}
	return generic.BalanceAt(entries, nil), nil
}

// =============================================================================
// STATEMENT
// =============================================================================

// Statement is a contact's ledger over a period with running balances.
type Statement struct {
	ContactID string
	Period    generic.Period
	Opening   generic.Position
	Lines     []generic.RunningLine[ContactEntry]
	Closing   generic.Position
}

// Statement returns the opening balance (entries before period start), each
// entry in the period with its running balance, and the closing balance.
func (l *ContactLedger) Statement(ctx context.Context, contactID string, period generic.Period) (Statement, error) {
	if err := period.Validate(); err != nil {
		return Statement{}, err
	}
	opening := generic.ZeroPosition()
	if !period.Start.IsZero() {
		dayBefore := period.Start.AddDays(-1)
		var err error
		opening, err = l.BalanceAsOf(ctx, contactID, &dayBefore)
		if err != nil {
			return Statement{}, err
		}
	}
	var from *generic.TimePoint
	if !period.Start.IsZero() {
		from = &period.Start
	}
	entries, err := l.store.ContactEntries(ctx, contactID, from, &period.End)
	if err != nil {
		return Statement{}, err
	}
	lines, closing := generic.Running(entries, opening)
	return Statement{
		ContactID: contactID,
		Period:    period,
		Opening:   opening,
		Lines:     lines,
		Closing:   closing,
	}, nil
}

// =============================================================================
// CONSISTENCY
// =============================================================================

// ContactDrift is a cache value that disagrees with the log.
type ContactDrift struct {
	ContactID string
	Cached    generic.Position
	Replayed  generic.Position
}

// Verify replays every contact's log and compares it with the cache.
func (l *ContactLedger) Verify(ctx context.Context) ([]ContactDrift, error) {
	ids, err := l.store.LedgerContactIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []ContactDrift
	for _, id := range ids {
		replayed, err := l.replay(ctx, id)
		if err != nil {
			return nil, err
		}
		cached, ok, err := l.store.GetCachedPosition(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok || !cached.Equal(replayed) {
			if !ok {
				cached = generic.ZeroPosition()
			}
			drifts = append(drifts, ContactDrift{ContactID: id, Cached: cached, Replayed: replayed})
		}
	}
	return drifts, nil
}

// Rebuild overwrites every cached balance with a replay of the log.
func (l *ContactLedger) Rebuild(ctx context.Context) (int, error) {
	ids, err := l.store.LedgerContactIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		replayed, err := l.replay(ctx, id)
		if err != nil {
			return 0, err
		}
		if err := l.store.PutCachedPosition(ctx, id, replayed); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
