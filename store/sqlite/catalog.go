package sqlite

import (
	"context"
	"database/sql"

	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// CATALOG STORE
// =============================================================================

func (r *repo) SaveContact(ctx context.Context, c gold.Contact) error {
	query := `
		INSERT INTO contacts (id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone
	`
	_, err := r.q.ExecContext(ctx, query, c.ID, c.Name, nullString(c.Phone), formatStamp(c.CreatedAt))
	return err
}

// GetContact retrieves a contact by ID.
func (r *repo) GetContact(ctx context.Context, id string) (*gold.Contact, error) {
	row := r.q.QueryRowContext(ctx, "SELECT id, name, phone, created_at FROM contacts WHERE id = ?", id)
	c, err := scanContact(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) ListContacts(ctx context.Context) ([]gold.Contact, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, name, phone, created_at FROM contacts ORDER BY name")
	return rowsToSlice(rows, err, func(rows *sql.Rows) (gold.Contact, error) { return scanContact(rows) })
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (gold.Contact, error) {
	var c gold.Contact
	var phone sql.NullString
	var createdAt string
	if err := row.Scan(&c.ID, &c.Name, &phone, &createdAt); err != nil {
		return c, err
	}
	c.Phone = phone.String
	c.CreatedAt = parseStamp(createdAt)
	return c, nil
}

func (r *repo) SaveCategory(ctx context.Context, c gold.ProductCategory) error {
	query := `
		INSERT INTO product_categories (id, name, base_category)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_category = excluded.base_category
	`
	_, err := r.q.ExecContext(ctx, query, c.ID, c.Name, c.Base.String())
	return err
}

func (r *repo) GetCategory(ctx context.Context, id string) (*gold.ProductCategory, error) {
	row := r.q.QueryRowContext(ctx, "SELECT id, name, base_category FROM product_categories WHERE id = ?", id)
	c, err := scanCategory(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) ListCategories(ctx context.Context) ([]gold.ProductCategory, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, name, base_category FROM product_categories ORDER BY name")
	return rowsToSlice(rows, err, func(rows *sql.Rows) (gold.ProductCategory, error) { return scanCategory(rows) })
}

func scanCategory(row scanner) (gold.ProductCategory, error) {
	var c gold.ProductCategory
	var base string
	if err := row.Scan(&c.ID, &c.Name, &base); err != nil {
		return c, err
	}
	// an unknown stored name stays CategoryUnknown and is rejected at pricing
	c.Base, _ = gold.ParseCategory(base)
	return c, nil
}

func (r *repo) SaveProduct(ctx context.Context, p gold.Product) error {
	query := `
		INSERT INTO products (id, name, category_id, default_purity, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			default_purity = excluded.default_purity
	`
	_, err := r.q.ExecContext(ctx, query, p.ID, p.Name, p.CategoryID, p.DefaultPurity.String(), formatStamp(p.CreatedAt))
	return err
}

const productSelect = `
	SELECT p.id, p.name, p.category_id, p.default_purity, p.created_at,
	       c.id, c.name, c.base_category
	FROM products p
	JOIN product_categories c ON c.id = p.category_id
`

// GetProduct returns the product resolved with its category.
func (r *repo) GetProduct(ctx context.Context, id string) (*gold.ProductInfo, error) {
	row := r.q.QueryRowContext(ctx, productSelect+" WHERE p.id = ?", id)
	info, err := scanProduct(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *repo) ListProducts(ctx context.Context) ([]gold.ProductInfo, error) {
	rows, err := r.q.QueryContext(ctx, productSelect+" ORDER BY p.name")
	return rowsToSlice(rows, err, func(rows *sql.Rows) (gold.ProductInfo, error) { return scanProduct(rows) })
}

func scanProduct(row scanner) (gold.ProductInfo, error) {
	var info gold.ProductInfo
	var purity, createdAt, base string
	err := row.Scan(
		&info.Product.ID, &info.Product.Name, &info.Product.CategoryID, &purity, &createdAt,
		&info.Category.ID, &info.Category.Name, &base,
	)
	if err != nil {
		return info, err
	}
	info.Product.DefaultPurity = parseDec(purity)
	info.Product.CreatedAt = parseStamp(createdAt)
	info.Category.Base, _ = gold.ParseCategory(base)
	return info, nil
}

// SaveBankAccount inserts an account or renames it. Balances are never
// overwritten here; they only move through AdjustBankBalance.
func (r *repo) SaveBankAccount(ctx context.Context, a gold.BankAccount) error {
	query := `
		INSERT INTO bank_accounts (id, name, account_number, initial_balance, current_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			account_number = excluded.account_number
	`
	_, err := r.q.ExecContext(ctx, query,
		a.ID, a.Name, nullString(a.AccountNumber),
		rial(a.InitialBalance), rial(a.CurrentBalance), formatStamp(a.CreatedAt),
	)
	return err
}

const bankAccountSelect = `SELECT id, name, account_number, initial_balance, current_balance, created_at FROM bank_accounts`

func (r *repo) GetBankAccount(ctx context.Context, id string) (*gold.BankAccount, error) {
	row := r.q.QueryRowContext(ctx, bankAccountSelect+" WHERE id = ?", id)
	a, err := scanBankAccount(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) ListBankAccounts(ctx context.Context) ([]gold.BankAccount, error) {
	rows, err := r.q.QueryContext(ctx, bankAccountSelect+" ORDER BY name")
	return rowsToSlice(rows, err, func(rows *sql.Rows) (gold.BankAccount, error) { return scanBankAccount(rows) })
}

func scanBankAccount(row scanner) (gold.BankAccount, error) {
	var a gold.BankAccount
	var number sql.NullString
	var initial, current int64
	var createdAt string
	if err := row.Scan(&a.ID, &a.Name, &number, &initial, &current, &createdAt); err != nil {
		return a, err
	}
	a.AccountNumber = number.String
	a.InitialBalance = decFromInt(initial)
	a.CurrentBalance = decFromInt(current)
	a.CreatedAt = parseStamp(createdAt)
	return a, nil
}
