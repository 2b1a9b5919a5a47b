package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// CONTACT LEDGER STORE
// =============================================================================

const contactEntrySelect = `
	SELECT id, contact_id, entry_date, debit_rial, credit_rial, debit_weight, credit_weight,
	       debit_count, credit_count, ref_type, ref_id, parent_id, reversal_of, memo, created_at
	FROM contact_ledger
`

func (r *repo) AppendContactEntry(ctx context.Context, e gold.ContactEntry) error {
	query := `
		INSERT INTO contact_ledger
		(id, contact_id, entry_date, debit_rial, credit_rial, debit_weight, credit_weight,
		 debit_count, credit_count, ref_type, ref_id, parent_id, reversal_of, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		e.ID, e.ContactID, formatDate(e.Date),
		rial(e.Rial.Debit), rial(e.Rial.Credit),
		e.Weight.Debit.String(), e.Weight.Credit.String(),
		e.Count.Debit.String(), e.Count.Credit.String(),
		e.Ref.Type, e.Ref.ID, nullString(e.Ref.ParentID), nullString(e.ReversalOf),
		nullString(e.Memo), formatStamp(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && e.ReversalOf != "" {
			return generic.ErrAlreadyReversed
		}
		return fmt.Errorf("failed to append contact entry: %w", err)
	}
	return nil
}

// ContactEntries returns the contact's entries within [from, to] in ledger
// order. Dates are stored as YYYY-MM-DD, so text comparison is date order.
func (r *repo) ContactEntries(ctx context.Context, contactID string, from, to *generic.TimePoint) ([]gold.ContactEntry, error) {
	query := contactEntrySelect + " WHERE contact_id = ?"
	args := []any{contactID}
	if from != nil {
		query += " AND entry_date >= ?"
		args = append(args, formatDate(*from))
	}
	if to != nil {
		query += " AND entry_date <= ?"
		args = append(args, formatDate(*to))
	}
	query += " ORDER BY entry_date, seq"
	rows, err := r.q.QueryContext(ctx, query, args...)
	return rowsToSlice(rows, err, scanContactEntry)
}

// activeContactFilter keeps rows that are neither reversals nor reversed.
const activeContactFilter = `
	AND reversal_of IS NULL
	AND id NOT IN (SELECT reversal_of FROM contact_ledger WHERE reversal_of IS NOT NULL)
	ORDER BY seq
`

func (r *repo) ActiveContactEntries(ctx context.Context, ref gold.Ref) ([]gold.ContactEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		contactEntrySelect+" WHERE ref_type = ? AND ref_id = ?"+activeContactFilter,
		ref.Type, ref.ID,
	)
	return rowsToSlice(rows, err, scanContactEntry)
}

func (r *repo) ActiveContactEntriesByParent(ctx context.Context, parentID string) ([]gold.ContactEntry, error) {
	rows, err := r.q.QueryContext(ctx, contactEntrySelect+" WHERE parent_id = ?"+activeContactFilter, parentID)
	return rowsToSlice(rows, err, scanContactEntry)
}

func scanContactEntry(rows *sql.Rows) (gold.ContactEntry, error) {
	var (
		e                          gold.ContactEntry
		date                       string
		debitRial, creditRial      int64
		debitWeight, creditWeight  string
		debitCount, creditCount    string
		parentID, reversalOf, memo sql.NullString
		createdAt                  string
	)
	err := rows.Scan(&e.ID, &e.ContactID, &date, &debitRial, &creditRial, &debitWeight, &creditWeight,
		&debitCount, &creditCount, &e.Ref.Type, &e.Ref.ID, &parentID, &reversalOf, &memo, &createdAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan contact entry: %w", err)
	}
	e.Date = parseDate(date)
	e.Rial = generic.DebitCredit{Debit: decFromInt(debitRial), Credit: decFromInt(creditRial)}
	e.Weight = generic.DebitCredit{Debit: parseDec(debitWeight), Credit: parseDec(creditWeight)}
	e.Count = generic.DebitCredit{Debit: parseDec(debitCount), Credit: parseDec(creditCount)}
	e.Ref.ParentID = parentID.String
	e.ReversalOf = reversalOf.String
	e.Memo = memo.String
	e.CreatedAt = parseStamp(createdAt)
	return e, nil
}

func (r *repo) GetCachedPosition(ctx context.Context, contactID string) (generic.Position, bool, error) {
	var rialValue int64
	var weight, count string
	err := r.q.QueryRowContext(ctx,
		"SELECT rial, weight, count FROM contact_balances WHERE contact_id = ?", contactID,
	).Scan(&rialValue, &weight, &count)
	if noRows(err) {
		return generic.Position{}, false, nil
	}
	if err != nil {
		return generic.Position{}, false, err
	}
	return generic.Position{
		Rial:   generic.RialsDec(decFromInt(rialValue)),
		Weight: generic.Grams750(parseDec(weight)),
		Count:  generic.CountDec(parseDec(count)),
	}, true, nil
}

func (r *repo) PutCachedPosition(ctx context.Context, contactID string, p generic.Position) error {
	query := `
		INSERT INTO contact_balances (contact_id, rial, weight, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			rial = excluded.rial,
			weight = excluded.weight,
			count = excluded.count
	`
	_, err := r.q.ExecContext(ctx, query, contactID, rial(p.Rial.Value), p.Weight.Value.String(), p.Count.Value.String())
	return err
}

// LedgerContactIDs lists every contact with entries or a cached balance.
func (r *repo) LedgerContactIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT contact_id FROM contact_ledger
		UNION
		SELECT contact_id FROM contact_balances
		ORDER BY contact_id
	`)
	return rowsToSlice(rows, err, scanString)
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err
}

// =============================================================================
// CONTACT WEIGHT LEDGER STORE
// =============================================================================

const weightEntrySelect = `
	SELECT id, contact_id, category_id, event_type, change_weight, balance_after,
	       related_id, reversal_of, entry_date
	FROM contact_weight_ledger
`

func (r *repo) AppendWeightEntry(ctx context.Context, e gold.WeightEntry) error {
	query := `
		INSERT INTO contact_weight_ledger
		(id, contact_id, category_id, event_type, change_weight, balance_after, related_id, reversal_of, entry_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		e.ID, e.ContactID, e.CategoryID, e.EventType, e.Change.String(), e.BalanceAfter.String(),
		nullString(e.RelatedID), nullString(e.ReversalOf), formatStamp(e.EntryDate),
	)
	if err != nil {
		if isUniqueConstraintError(err) && e.ReversalOf != "" {
			return generic.ErrAlreadyReversed
		}
		return fmt.Errorf("failed to append weight entry: %w", err)
	}
	return nil
}

// LastWeightEntry is the most recent entry for key by (entry_date, seq).
func (r *repo) LastWeightEntry(ctx context.Context, key gold.WeightKey) (*gold.WeightEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		weightEntrySelect+" WHERE contact_id = ? AND category_id = ? ORDER BY entry_date DESC, seq DESC LIMIT 1",
		key.ContactID, key.CategoryID,
	)
	entries, err := rowsToSlice(rows, err, scanWeightEntry)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (r *repo) WeightEntries(ctx context.Context, key gold.WeightKey) ([]gold.WeightEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		weightEntrySelect+" WHERE contact_id = ? AND category_id = ? ORDER BY entry_date, seq",
		key.ContactID, key.CategoryID,
	)
	return rowsToSlice(rows, err, scanWeightEntry)
}

func (r *repo) ActiveWeightEntries(ctx context.Context, relatedID string) ([]gold.WeightEntry, error) {
	rows, err := r.q.QueryContext(ctx, weightEntrySelect+`
		WHERE related_id = ?
		  AND reversal_of IS NULL
		  AND id NOT IN (SELECT reversal_of FROM contact_weight_ledger WHERE reversal_of IS NOT NULL)
		ORDER BY seq
	`, relatedID)
	return rowsToSlice(rows, err, scanWeightEntry)
}

func (r *repo) WeightKeys(ctx context.Context) ([]gold.WeightKey, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT DISTINCT contact_id, category_id FROM contact_weight_ledger ORDER BY contact_id, category_id",
	)
	return rowsToSlice(rows, err, func(rows *sql.Rows) (gold.WeightKey, error) {
		var k gold.WeightKey
		err := rows.Scan(&k.ContactID, &k.CategoryID)
		return k, err
	})
}

func scanWeightEntry(rows *sql.Rows) (gold.WeightEntry, error) {
	var (
		e                     gold.WeightEntry
		change, balanceAfter  string
		relatedID, reversalOf sql.NullString
		entryDate             string
	)
	err := rows.Scan(&e.ID, &e.ContactID, &e.CategoryID, &e.EventType, &change, &balanceAfter,
		&relatedID, &reversalOf, &entryDate)
	if err != nil {
		return e, fmt.Errorf("failed to scan weight entry: %w", err)
	}
	e.Change = parseDec(change)
	e.BalanceAfter = parseDec(balanceAfter)
	e.RelatedID = relatedID.String
	e.ReversalOf = reversalOf.String
	e.EntryDate = parseStamp(entryDate)
	return e, nil
}

// =============================================================================
// INVENTORY STORE
// =============================================================================

const inventorySelect = `
	SELECT id, product_id, change_weight_grams, change_weight750, change_quantity,
	       change_value_rials, source_item_id, transaction_id, reversal_of, created_at
	FROM inventory_ledger
`

func (r *repo) AppendInventoryEntry(ctx context.Context, e gold.InventoryEntry) error {
	query := `
		INSERT INTO inventory_ledger
		(id, product_id, change_weight_grams, change_weight750, change_quantity, change_value_rials,
		 source_item_id, transaction_id, reversal_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		e.ID, e.ProductID, e.ChangeWeightGrams.String(), e.ChangeWeight750.String(), e.ChangeQuantity.String(),
		rial(e.ChangeValueRials), nullString(e.SourceItemID), nullString(e.TransactionID),
		nullString(e.ReversalOf), formatStamp(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && e.ReversalOf != "" {
			return generic.ErrAlreadyReversed
		}
		return fmt.Errorf("failed to append inventory entry: %w", err)
	}
	return nil
}

func (r *repo) InventoryEntries(ctx context.Context, productID string) ([]gold.InventoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, inventorySelect+" WHERE product_id = ? ORDER BY seq", productID)
	return rowsToSlice(rows, err, scanInventoryEntry)
}

func (r *repo) ActiveInventoryEntries(ctx context.Context, transactionID string) ([]gold.InventoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, inventorySelect+`
		WHERE transaction_id = ?
		  AND reversal_of IS NULL
		  AND id NOT IN (SELECT reversal_of FROM inventory_ledger WHERE reversal_of IS NOT NULL)
		ORDER BY seq
	`, transactionID)
	return rowsToSlice(rows, err, scanInventoryEntry)
}

func (r *repo) InventoryProductIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT DISTINCT product_id FROM inventory_ledger ORDER BY product_id")
	return rowsToSlice(rows, err, scanString)
}

func scanInventoryEntry(rows *sql.Rows) (gold.InventoryEntry, error) {
	var (
		e                              gold.InventoryEntry
		weight, weight750, quantity    string
		value                          int64
		sourceItemID, txID, reversalOf sql.NullString
		createdAt                      string
	)
	err := rows.Scan(&e.ID, &e.ProductID, &weight, &weight750, &quantity, &value,
		&sourceItemID, &txID, &reversalOf, &createdAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan inventory entry: %w", err)
	}
	e.ChangeWeightGrams = parseDec(weight)
	e.ChangeWeight750 = parseDec(weight750)
	e.ChangeQuantity = parseDec(quantity)
	e.ChangeValueRials = decFromInt(value)
	e.SourceItemID = sourceItemID.String
	e.TransactionID = txID.String
	e.ReversalOf = reversalOf.String
	e.CreatedAt = parseStamp(createdAt)
	return e, nil
}

// =============================================================================
// BANK STORE
// =============================================================================

const bankTxSelect = `
	SELECT id, bank_account_id, amount, transaction_date, related_payment_id,
	       reversal_of, description, created_at
	FROM bank_transactions
`

func (r *repo) AppendBankTransaction(ctx context.Context, bt gold.BankTransaction) error {
	query := `
		INSERT INTO bank_transactions
		(id, bank_account_id, amount, transaction_date, related_payment_id, reversal_of, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		bt.ID, bt.BankAccountID, rial(bt.Amount), formatDate(bt.TransactionDate),
		nullString(bt.RelatedPaymentID), nullString(bt.ReversalOf), nullString(bt.Description),
		formatStamp(bt.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && bt.ReversalOf != "" {
			return generic.ErrAlreadyReversed
		}
		return fmt.Errorf("failed to append bank transaction: %w", err)
	}
	return nil
}

// AdjustBankBalance adds delta to current_balance in one statement, so
// concurrent payments to one account never lose an update.
func (r *repo) AdjustBankBalance(ctx context.Context, accountID string, delta generic.Amount) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE bank_accounts SET current_balance = current_balance + ? WHERE id = ?",
		rial(delta.Value), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust bank balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NotFound("bank account", accountID)
	}
	return nil
}

func (r *repo) BankTransactions(ctx context.Context, accountID string) ([]gold.BankTransaction, error) {
	rows, err := r.q.QueryContext(ctx, bankTxSelect+" WHERE bank_account_id = ? ORDER BY seq", accountID)
	return rowsToSlice(rows, err, scanBankTransaction)
}

func (r *repo) ActiveBankTransactions(ctx context.Context, paymentID string) ([]gold.BankTransaction, error) {
	rows, err := r.q.QueryContext(ctx, bankTxSelect+`
		WHERE related_payment_id = ?
		  AND reversal_of IS NULL
		  AND id NOT IN (SELECT reversal_of FROM bank_transactions WHERE reversal_of IS NOT NULL)
		ORDER BY seq
	`, paymentID)
	return rowsToSlice(rows, err, scanBankTransaction)
}

func scanBankTransaction(rows *sql.Rows) (gold.BankTransaction, error) {
	var (
		bt                                 gold.BankTransaction
		amount                             int64
		date                               string
		paymentID, reversalOf, description sql.NullString
		createdAt                          string
	)
	err := rows.Scan(&bt.ID, &bt.BankAccountID, &amount, &date, &paymentID, &reversalOf, &description, &createdAt)
	if err != nil {
		return bt, fmt.Errorf("failed to scan bank transaction: %w", err)
	}
	bt.Amount = decFromInt(amount)
	bt.TransactionDate = parseDate(date)
	bt.RelatedPaymentID = paymentID.String
	bt.ReversalOf = reversalOf.String
	bt.Description = description.String
	bt.CreatedAt = parseStamp(createdAt)
	return bt, nil
}
