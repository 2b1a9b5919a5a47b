/*
ledger.go - Deriving balances from append-only entry logs

PURPOSE:
  Ledgers in this system are append-only logs. Balances are derived from
  them, never edited in place. Two derivation models exist side by side:

  SUMMED LOG (contact ledger, inventory, bank):
    balance(asOf) = Σ effect over entries dated on or before asOf.
    A materialized cache may hold the current total, but the log is the
    source of truth and the cache must match a fresh replay.

  RUNNING TOTAL (contact weight ledger):
    each entry stores balance_after = previous balance_after + change.
    The latest entry answers "what is the balance" without summing.
    Replaying the changes from zero must reproduce every stored value.

CORRECTIONS:
  A mistake is never edited. A reversal entry with the opposite sign is
  appended; both stay in the log and the net effect is zero.

SEE ALSO:
  - gold/contact_ledger.go: Summed log with cache
  - gold/weight_ledger.go: Running total
*/
package generic

import "fmt"

// =============================================================================
// SUMMED LOG
// =============================================================================

// PositionEntry is any log row with a dated three-unit effect.
type PositionEntry interface {
	EntryDate() TimePoint
	Effect() Position
}

// BalanceAt sums entries dated on or before cutoff. A nil cutoff sums all.
func BalanceAt[E PositionEntry](entries []E, cutoff *TimePoint) Position {
	balance := ZeroPosition()
	for _, e := range entries {
		if cutoff != nil && e.EntryDate().After(*cutoff) {
			continue
		}
		balance = balance.Add(e.Effect())
	}
	return balance
}

// RunningLine pairs an entry with the balance right after it.
type RunningLine[E any] struct {
	Entry   E
	Balance Position
}

// Running returns each entry with the running position, starting at opening.
// Entries must already be in ledger order.
func Running[E PositionEntry](entries []E, opening Position) ([]RunningLine[E], Position) {
	lines := make([]RunningLine[E], 0, len(entries))
	balance := opening
	for _, e := range entries {
		balance = balance.Add(e.Effect())
		lines = append(lines, RunningLine[E]{Entry: e, Balance: balance})
	}
	return lines, balance
}

// =============================================================================
// RUNNING TOTAL
// =============================================================================

// RunningEntry is a log row that stores its own balance after posting.
type RunningEntry interface {
	ChangeAmount() Amount
	BalanceAfterAmount() Amount
}

// DriftError reports the first entry whose stored balance disagrees with
// a replay of the log.
type DriftError struct {
	Index    int
	Stored   Amount
	Replayed Amount
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("running balance drift at entry %d: stored %s, replayed %s", e.Index, e.Stored, e.Replayed)
}

// ReplayRunning replays changes from zero and checks every stored balance.
// Returns the replayed final balance.
func ReplayRunning[E RunningEntry](entries []E, unit Unit) (Amount, error) {
	balance := ZeroOf(unit)
	for i, e := range entries {
		balance = balance.Add(e.ChangeAmount())
		if !balance.Value.Equal(e.BalanceAfterAmount().Value) {
			return balance, &DriftError{Index: i, Stored: e.BalanceAfterAmount(), Replayed: balance}
		}
	}
	return balance, nil
}
