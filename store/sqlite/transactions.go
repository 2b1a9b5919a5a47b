package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// TRANSACTION STORE
// =============================================================================

// SaveTransaction upserts the header and replaces its items.
func (r *repo) SaveTransaction(ctx context.Context, tx gold.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, tx_type, contact_id, tx_date, delivery_status, adjustment_rials,
		 final_payable_rials, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tx_type = excluded.tx_type,
			contact_id = excluded.contact_id,
			tx_date = excluded.tx_date,
			delivery_status = excluded.delivery_status,
			adjustment_rials = excluded.adjustment_rials,
			final_payable_rials = excluded.final_payable_rials,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		tx.ID, tx.Type, tx.ContactID, formatDate(tx.Date), tx.Status,
		rial(tx.AdjustmentRials), rial(tx.FinalPayableRials), nullString(tx.Notes),
		formatStamp(tx.CreatedAt), formatStamp(tx.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, "DELETE FROM transaction_items WHERE transaction_id = ?", tx.ID); err != nil {
		return fmt.Errorf("failed to replace transaction items: %w", err)
	}
	for i, it := range tx.Items {
		if err := r.insertItem(ctx, tx.ID, i, it); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) insertItem(ctx context.Context, txID string, lineNo int, it gold.TransactionItem) error {
	query := `
		INSERT INTO transaction_items
		(id, transaction_id, line_no, product_id, category_id, base_category, settlement_mode,
		 weight_grams, purity, quantity, coin_year, bank_coin,
		 unit_price_rials, market_rate_rials, fee_percent, fee_flat_rials, profit_percent, profit_flat_rials,
		 apply_general_tax, apply_vat,
		 weight750, total_value_rials, fee_amount_rials, profit_amount_rials,
		 general_tax_rials, vat_rials, final_value_rials)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		it.ID, txID, lineNo, it.ProductID, it.CategoryID, it.Category.String(), it.SettlementMode,
		it.WeightGrams.String(), it.Purity.String(), it.Quantity.String(), it.CoinYear, it.BankCoin,
		it.UnitPriceRials.String(), it.MarketRateRials.String(),
		it.FeePercent.String(), it.FeeFlatRials.String(), it.ProfitPercent.String(), it.ProfitFlatRials.String(),
		it.ApplyGeneralTax, it.ApplyVAT,
		it.Weight750.String(), rial(it.TotalValueRials), rial(it.FeeAmountRials), rial(it.ProfitAmountRials),
		rial(it.GeneralTaxRials), rial(it.VATRials), rial(it.FinalValueRials),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction item: %w", err)
	}
	return nil
}

const transactionSelect = `
	SELECT id, tx_type, contact_id, tx_date, delivery_status, adjustment_rials,
	       final_payable_rials, notes, created_at, updated_at
	FROM transactions
`

// GetTransaction returns the header with its items, or nil.
func (r *repo) GetTransaction(ctx context.Context, id string) (*gold.Transaction, error) {
	row := r.q.QueryRowContext(ctx, transactionSelect+" WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tx.Items, err = r.transactionItems(ctx, tx.ID); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions returns headers with items, newest first. An empty
// contactID lists every transaction.
func (r *repo) ListTransactions(ctx context.Context, contactID string) ([]gold.Transaction, error) {
	query := transactionSelect + " ORDER BY tx_date DESC, created_at DESC"
	args := []any{}
	if contactID != "" {
		query = transactionSelect + " WHERE contact_id = ? ORDER BY tx_date DESC, created_at DESC"
		args = append(args, contactID)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	txs, err := rowsToSlice(rows, err, func(rows *sql.Rows) (gold.Transaction, error) { return scanTransaction(rows) })
	if err != nil {
		return nil, err
	}
	for i := range txs {
		if txs[i].Items, err = r.transactionItems(ctx, txs[i].ID); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

// UpdateTransactionStatus moves id from one status to another only if it
// is still in from. It reports whether the row changed.
func (r *repo) UpdateTransactionStatus(ctx context.Context, id string, from, to gold.DeliveryStatus) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE transactions SET delivery_status = ? WHERE id = ? AND delivery_status = ?",
		to, id, from,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteTransaction removes the header; items go with it (ON DELETE CASCADE).
func (r *repo) DeleteTransaction(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	return err
}

func scanTransaction(row scanner) (gold.Transaction, error) {
	var (
		tx                   gold.Transaction
		date                 string
		adjustment, final    int64
		notes                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&tx.ID, &tx.Type, &tx.ContactID, &date, &tx.Status, &adjustment,
		&final, &notes, &createdAt, &updatedAt)
	if err != nil {
		return tx, err
	}
	tx.Date = parseDate(date)
	tx.AdjustmentRials = decFromInt(adjustment)
	tx.FinalPayableRials = decFromInt(final)
	tx.Notes = notes.String
	tx.CreatedAt = parseStamp(createdAt)
	tx.UpdatedAt = parseStamp(updatedAt)
	return tx, nil
}

func (r *repo) transactionItems(ctx context.Context, txID string) ([]gold.TransactionItem, error) {
	query := `
		SELECT id, transaction_id, product_id, category_id, base_category, settlement_mode,
		       weight_grams, purity, quantity, coin_year, bank_coin,
		       unit_price_rials, market_rate_rials, fee_percent, fee_flat_rials, profit_percent, profit_flat_rials,
		       apply_general_tax, apply_vat,
		       weight750, total_value_rials, fee_amount_rials, profit_amount_rials,
		       general_tax_rials, vat_rials, final_value_rials
		FROM transaction_items
		WHERE transaction_id = ?
		ORDER BY line_no
	`
	rows, err := r.q.QueryContext(ctx, query, txID)
	return rowsToSlice(rows, err, scanItem)
}

func scanItem(rows *sql.Rows) (gold.TransactionItem, error) {
	var (
		it                                                    gold.TransactionItem
		base                                                  string
		weight, purity, quantity                              string
		coinYear                                              sql.NullInt64
		unitPrice, marketRate, feePct, feeFlat, profitPct, pf string
		w750                                                  string
		total, fee, profit, generalTax, vat, final            int64
	)
	err := rows.Scan(
		&it.ID, &it.TransactionID, &it.ProductID, &it.CategoryID, &base, &it.SettlementMode,
		&weight, &purity, &quantity, &coinYear, &it.BankCoin,
		&unitPrice, &marketRate, &feePct, &feeFlat, &profitPct, &pf,
		&it.ApplyGeneralTax, &it.ApplyVAT,
		&w750, &total, &fee, &profit, &generalTax, &vat, &final,
	)
	if err != nil {
		return it, fmt.Errorf("failed to scan transaction item: %w", err)
	}
	it.Category, _ = gold.ParseCategory(base)
	it.WeightGrams = parseDec(weight)
	it.Purity = parseDec(purity)
	it.Quantity = parseDec(quantity)
	it.CoinYear = int(coinYear.Int64)
	it.UnitPriceRials = parseDec(unitPrice)
	it.MarketRateRials = parseDec(marketRate)
	it.FeePercent = parseDec(feePct)
	it.FeeFlatRials = parseDec(feeFlat)
	it.ProfitPercent = parseDec(profitPct)
	it.ProfitFlatRials = parseDec(pf)
	it.Weight750 = parseDec(w750)
	it.TotalValueRials = decFromInt(total)
	it.FeeAmountRials = decFromInt(fee)
	it.ProfitAmountRials = decFromInt(profit)
	it.GeneralTaxRials = decFromInt(generalTax)
	it.VATRials = decFromInt(vat)
	it.FinalValueRials = decFromInt(final)
	return it, nil
}
