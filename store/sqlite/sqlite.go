/*
Package sqlite provides a SQLite-backed implementation of gold.TxStore.

PURPOSE:
  Implements every persistence interface the ledger engine consumes over
  database/sql. In production the same schema runs on any relational store
  with transactions; only minor dialect differences apply.

KEY TABLES:
  contacts, product_categories, products, bank_accounts   catalog
  transactions, transaction_items                          trades
  contact_ledger, contact_balances                         summed log + cache
  contact_weight_ledger                                    running totals
  inventory_ledger                                         stock movements
  bank_transactions                                        cash movements
  payments, physical_settlements, settlement_items         source records

APPEND-ONLY ENFORCEMENT:
  Ledger tables only receive INSERTs. Corrections are reversal rows whose
  reversal_of points at the row they cancel; Active* queries exclude both.

NUMBERS:
  Rial amounts are whole numbers and live in INTEGER columns, so balance
  increments can be done in SQL. Weights, purities, quantities and rates
  keep their decimal text form and are summed in Go with decimal.Decimal.

INDEXES:
  - idx_contact_ledger_contact_date: balance as of a date (hot path)
  - idx_weight_ledger_key: last running balance per (contact, category)
  - idx_inventory_product: stock per product

CONCURRENCY:
  One connection, and every transaction starts with BEGIN IMMEDIATE
  (_txlock=immediate), so writers serialize on the database lock rather
  than an in-process mutex. Bank balances move with a single
  UPDATE ... SET current_balance = current_balance + ? statement.

  Inside WithTx all reads and writes go through the *sql.Tx; nothing in
  the transactional store touches the pool.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/gold.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := gold.NewEngine(store, logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - gold/store.go: Interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo implements gold.Store over a querier.
type repo struct {
	q querier
}

// Store implements gold.TxStore using SQLite.
type Store struct {
	*repo
	db *sql.DB
}

var (
	_ gold.TxStore = (*Store)(nil)
	_ gold.Store   = (*repo)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	store := &Store{repo: &repo{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Catalog
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS product_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category_id TEXT NOT NULL REFERENCES product_categories(id),
		default_purity TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		account_number TEXT,
		initial_balance INTEGER NOT NULL DEFAULT 0,
		current_balance INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Trades
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		tx_type TEXT NOT NULL,
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		tx_date TEXT NOT NULL,
		delivery_status TEXT NOT NULL,
		adjustment_rials INTEGER NOT NULL DEFAULT 0,
		final_payable_rials INTEGER NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_contact
		ON transactions(contact_id, tx_date);

	CREATE TABLE IF NOT EXISTS transaction_items (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		category_id TEXT NOT NULL,
		base_category TEXT NOT NULL,
		settlement_mode TEXT NOT NULL,
		weight_grams TEXT NOT NULL,
		purity TEXT NOT NULL,
		quantity TEXT NOT NULL,
		coin_year INTEGER,
		bank_coin BOOLEAN DEFAULT FALSE,
		unit_price_rials TEXT NOT NULL,
		market_rate_rials TEXT NOT NULL,
		fee_percent TEXT NOT NULL,
		fee_flat_rials TEXT NOT NULL,
		profit_percent TEXT NOT NULL,
		profit_flat_rials TEXT NOT NULL,
		apply_general_tax BOOLEAN DEFAULT FALSE,
		apply_vat BOOLEAN DEFAULT FALSE,
		weight750 TEXT NOT NULL,
		total_value_rials INTEGER NOT NULL,
		fee_amount_rials INTEGER NOT NULL,
		profit_amount_rials INTEGER NOT NULL,
		general_tax_rials INTEGER NOT NULL,
		vat_rials INTEGER NOT NULL,
		final_value_rials INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_items_tx
		ON transaction_items(transaction_id, line_no);

	-- Contact ledger (summed log)
	CREATE TABLE IF NOT EXISTS contact_ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		entry_date TEXT NOT NULL,
		debit_rial INTEGER NOT NULL DEFAULT 0,
		credit_rial INTEGER NOT NULL DEFAULT 0,
		debit_weight TEXT NOT NULL DEFAULT '0',
		credit_weight TEXT NOT NULL DEFAULT '0',
		debit_count TEXT NOT NULL DEFAULT '0',
		credit_count TEXT NOT NULL DEFAULT '0',
		ref_type TEXT NOT NULL,
		ref_id TEXT NOT NULL,
		parent_id TEXT,
		reversal_of TEXT,
		memo TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance as of a date (hot path)
	CREATE INDEX IF NOT EXISTS idx_contact_ledger_contact_date
		ON contact_ledger(contact_id, entry_date, seq);
	CREATE INDEX IF NOT EXISTS idx_contact_ledger_ref
		ON contact_ledger(ref_type, ref_id);
	CREATE INDEX IF NOT EXISTS idx_contact_ledger_parent
		ON contact_ledger(parent_id) WHERE parent_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_contact_ledger_reversal
		ON contact_ledger(reversal_of) WHERE reversal_of IS NOT NULL;

	-- Materialized current balance, moved in the same transaction as each append
	CREATE TABLE IF NOT EXISTS contact_balances (
		contact_id TEXT PRIMARY KEY REFERENCES contacts(id),
		rial INTEGER NOT NULL,
		weight TEXT NOT NULL,
		count TEXT NOT NULL
	);

	-- Contact weight ledger (running totals)
	CREATE TABLE IF NOT EXISTS contact_weight_ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		category_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		change_weight TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		related_id TEXT,
		reversal_of TEXT,
		entry_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_weight_ledger_key
		ON contact_weight_ledger(contact_id, category_id, entry_date, seq);
	CREATE INDEX IF NOT EXISTS idx_weight_ledger_related
		ON contact_weight_ledger(related_id) WHERE related_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_weight_ledger_reversal
		ON contact_weight_ledger(reversal_of) WHERE reversal_of IS NOT NULL;

	-- Inventory ledger
	CREATE TABLE IF NOT EXISTS inventory_ledger (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		product_id TEXT NOT NULL REFERENCES products(id),
		change_weight_grams TEXT NOT NULL,
		change_weight750 TEXT NOT NULL,
		change_quantity TEXT NOT NULL,
		change_value_rials INTEGER NOT NULL,
		source_item_id TEXT,
		transaction_id TEXT,
		reversal_of TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inventory_product
		ON inventory_ledger(product_id, seq);
	CREATE INDEX IF NOT EXISTS idx_inventory_transaction
		ON inventory_ledger(transaction_id) WHERE transaction_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_reversal
		ON inventory_ledger(reversal_of) WHERE reversal_of IS NOT NULL;

	-- Bank ledger
	CREATE TABLE IF NOT EXISTS bank_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		bank_account_id TEXT NOT NULL REFERENCES bank_accounts(id),
		amount INTEGER NOT NULL,
		transaction_date TEXT NOT NULL,
		related_payment_id TEXT,
		reversal_of TEXT,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_transactions_account
		ON bank_transactions(bank_account_id, seq);
	CREATE INDEX IF NOT EXISTS idx_bank_transactions_payment
		ON bank_transactions(related_payment_id) WHERE related_payment_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bank_transactions_reversal
		ON bank_transactions(reversal_of) WHERE reversal_of IS NOT NULL;

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		amount_rials INTEGER NOT NULL,
		method TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		paying_contact_id TEXT,
		receiving_contact_id TEXT,
		details TEXT,
		bank_account_id TEXT,
		bank_transaction_id TEXT,
		related_transaction_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Physical settlements
	CREATE TABLE IF NOT EXISTS physical_settlements (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		direction TEXT NOT NULL,
		settlement_date TEXT NOT NULL,
		primary_category_id TEXT NOT NULL,
		total_weight750 TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settlement_items (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL REFERENCES physical_settlements(id) ON DELETE CASCADE,
		line_no INTEGER NOT NULL,
		product_id TEXT NOT NULL REFERENCES products(id),
		weight_grams TEXT NOT NULL,
		purity TEXT NOT NULL,
		weight750 TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (gold.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The Store handed to fn
// reads and writes through that transaction only.
func (s *Store) WithTx(ctx context.Context, fn func(store gold.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset deletes all rows. For demo scenarios and tests.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"settlement_items", "physical_settlements", "payments", "bank_transactions",
		"inventory_ledger", "contact_weight_ledger", "contact_balances", "contact_ledger",
		"transaction_items", "transactions", "bank_accounts", "products",
		"product_categories", "contacts",
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()
	for _, t := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

// stampLayout is fixed-width so text order equals time order.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatStamp(t time.Time) string { return t.UTC().Format(stampLayout) }

func parseStamp(s string) time.Time {
	t, _ := time.Parse(stampLayout, s)
	return t
}

func formatDate(tp generic.TimePoint) string { return tp.Time.Format(generic.DateLayout) }

func parseDate(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// rial converts a whole-Rial decimal to its INTEGER column value.
func rial(d decimal.Decimal) int64 { return d.Round(generic.RialPlaces).IntPart() }

func decFromInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// rowsToSlice drains rows with scan, closing them.
func rowsToSlice[T any](rows *sql.Rows, err error, scan func(*sql.Rows) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func noRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
