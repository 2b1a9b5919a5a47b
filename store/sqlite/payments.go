package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// PAYMENT STORE
// =============================================================================

func (r *repo) SavePayment(ctx context.Context, p gold.Payment) error {
	query := `
		INSERT INTO payments
		(id, direction, amount_rials, method, payment_date, paying_contact_id, receiving_contact_id,
		 details, bank_account_id, bank_transaction_id, related_transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.Direction, rial(p.AmountRials), p.Method, formatDate(p.Date),
		nullString(p.PayingContactID), nullString(p.ReceivingContactID), nullString(p.Details),
		nullString(p.BankAccountID), nullString(p.BankTransactionID), nullString(p.RelatedTransactionID),
		formatStamp(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

func (r *repo) GetPayment(ctx context.Context, id string) (*gold.Payment, error) {
	var (
		p                              gold.Payment
		amount                         int64
		date, createdAt                string
		paying, receiving, details     sql.NullString
		bankAccount, bankTx, relatedTx sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, direction, amount_rials, method, payment_date, paying_contact_id, receiving_contact_id,
		       details, bank_account_id, bank_transaction_id, related_transaction_id, created_at
		FROM payments WHERE id = ?
	`, id).Scan(&p.ID, &p.Direction, &amount, &p.Method, &date, &paying, &receiving,
		&details, &bankAccount, &bankTx, &relatedTx, &createdAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.AmountRials = decFromInt(amount)
	p.Date = parseDate(date)
	p.PayingContactID = paying.String
	p.ReceivingContactID = receiving.String
	p.Details = details.String
	p.BankAccountID = bankAccount.String
	p.BankTransactionID = bankTx.String
	p.RelatedTransactionID = relatedTx.String
	p.CreatedAt = parseStamp(createdAt)
	return &p, nil
}

func (r *repo) DeletePayment(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	return err
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

// SaveSettlement inserts the header and its items.
func (r *repo) SaveSettlement(ctx context.Context, s gold.Settlement) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO physical_settlements
		(id, contact_id, direction, settlement_date, primary_category_id, total_weight750, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, s.ContactID, s.Direction, formatDate(s.Date), s.PrimaryCategoryID,
		s.TotalWeight750.String(), nullString(s.Notes), formatStamp(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	for i, it := range s.Items {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO settlement_items (id, settlement_id, line_no, product_id, weight_grams, purity, weight750)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, it.ID, s.ID, i, it.ProductID, it.WeightGrams.String(), it.Purity.String(), it.Weight750.String())
		if err != nil {
			return fmt.Errorf("failed to save settlement item: %w", err)
		}
	}
	return nil
}

func (r *repo) GetSettlement(ctx context.Context, id string) (*gold.Settlement, error) {
	var (
		s                      gold.Settlement
		date, total, createdAt string
		notes                  sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, contact_id, direction, settlement_date, primary_category_id, total_weight750, notes, created_at
		FROM physical_settlements WHERE id = ?
	`, id).Scan(&s.ID, &s.ContactID, &s.Direction, &date, &s.PrimaryCategoryID, &total, &notes, &createdAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Date = parseDate(date)
	s.TotalWeight750 = parseDec(total)
	s.Notes = notes.String
	s.CreatedAt = parseStamp(createdAt)

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, settlement_id, product_id, weight_grams, purity, weight750
		FROM settlement_items WHERE settlement_id = ? ORDER BY line_no
	`, id)
	s.Items, err = rowsToSlice(rows, err, func(rows *sql.Rows) (gold.SettlementItem, error) {
		var it gold.SettlementItem
		var weight, purity, w750 string
		if err := rows.Scan(&it.ID, &it.SettlementID, &it.ProductID, &weight, &purity, &w750); err != nil {
			return it, err
		}
		it.WeightGrams = parseDec(weight)
		it.Purity = parseDec(purity)
		it.Weight750 = parseDec(w750)
		return it, nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSettlement removes the header; items go with it (ON DELETE CASCADE).
func (r *repo) DeleteSettlement(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM physical_settlements WHERE id = ?", id)
	return err
}
