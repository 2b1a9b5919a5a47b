/*
store.go - Persistence interfaces consumed by the ledger engine

PURPOSE:
  Defines the boundary between ledger logic and the database. The engine
  only sees these interfaces; store/sqlite implements them.

APPEND-ONLY CONTRACT:
  Ledger tables (contact_ledger, contact_weight_ledger, inventory_ledger,
  bank_transactions) only receive inserts. Corrections are reversal rows
  whose ReversalOf points at the row they cancel. The Active* queries
  return rows that are neither reversals nor already reversed.

ATOMIC OPERATIONS:
  Every multi-step write runs inside TxStore.WithTx. If fn returns an error
  the whole database transaction rolls back: no header without its items,
  no ledger row without its balance update.

  Bank balances use an atomic increment (AdjustBankBalance) rather than
  read-then-write, so concurrent payments to one account never lose an
  update.

NOT FOUND:
  Get* methods return (nil, nil) for a missing record.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
*/
package gold

import (
	"context"

	"github.com/warp/gold-ledger/generic"
)

// CatalogStore resolves contacts, products, categories and bank accounts.
type CatalogStore interface {
	SaveContact(ctx context.Context, c Contact) error
	GetContact(ctx context.Context, id string) (*Contact, error)
	ListContacts(ctx context.Context) ([]Contact, error)

	SaveCategory(ctx context.Context, c ProductCategory) error
	GetCategory(ctx context.Context, id string) (*ProductCategory, error)
	ListCategories(ctx context.Context) ([]ProductCategory, error)

	SaveProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (*ProductInfo, error)
	ListProducts(ctx context.Context) ([]ProductInfo, error)

	SaveBankAccount(ctx context.Context, a BankAccount) error
	GetBankAccount(ctx context.Context, id string) (*BankAccount, error)
	ListBankAccounts(ctx context.Context) ([]BankAccount, error)
}

// TransactionStore persists transaction headers with their items.
type TransactionStore interface {
	// SaveTransaction upserts the header and replaces its items.
	SaveTransaction(ctx context.Context, tx Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, from, to DeliveryStatus) (bool, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, contactID string) ([]Transaction, error)
}

// ContactLedgerStore is the summed-log contact ledger plus its balance cache.
type ContactLedgerStore interface {
	AppendContactEntry(ctx context.Context, e ContactEntry) error
	// ContactEntries returns entries in ledger order (date, then insertion)
	// within [from, to]; nil bounds are open.
	ContactEntries(ctx context.Context, contactID string, from, to *generic.TimePoint) ([]ContactEntry, error)
	ActiveContactEntries(ctx context.Context, ref Ref) ([]ContactEntry, error)
	ActiveContactEntriesByParent(ctx context.Context, parentID string) ([]ContactEntry, error)

	GetCachedPosition(ctx context.Context, contactID string) (generic.Position, bool, error)
	PutCachedPosition(ctx context.Context, contactID string, p generic.Position) error
	LedgerContactIDs(ctx context.Context) ([]string, error)
}

// WeightKey identifies one running weight balance.
type WeightKey struct {
	ContactID  string
	CategoryID string
}

// WeightLedgerStore is the running-total contact weight ledger.
type WeightLedgerStore interface {
	AppendWeightEntry(ctx context.Context, e WeightEntry) error
	// LastWeightEntry is the most recent entry by (entry_date, insertion).
	LastWeightEntry(ctx context.Context, key WeightKey) (*WeightEntry, error)
	WeightEntries(ctx context.Context, key WeightKey) ([]WeightEntry, error)
	ActiveWeightEntries(ctx context.Context, relatedID string) ([]WeightEntry, error)
	WeightKeys(ctx context.Context) ([]WeightKey, error)
}

// InventoryStore is the per-product stock ledger.
type InventoryStore interface {
	AppendInventoryEntry(ctx context.Context, e InventoryEntry) error
	InventoryEntries(ctx context.Context, productID string) ([]InventoryEntry, error)
	ActiveInventoryEntries(ctx context.Context, transactionID string) ([]InventoryEntry, error)
	InventoryProductIDs(ctx context.Context) ([]string, error)
}

// BankStore is the per-account cash ledger.
type BankStore interface {
	AppendBankTransaction(ctx context.Context, bt BankTransaction) error
	// AdjustBankBalance adds delta to current_balance in one statement.
	AdjustBankBalance(ctx context.Context, accountID string, delta generic.Amount) error
	BankTransactions(ctx context.Context, accountID string) ([]BankTransaction, error)
	ActiveBankTransactions(ctx context.Context, paymentID string) ([]BankTransaction, error)
}

type PaymentStore interface {
	SavePayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	DeletePayment(ctx context.Context, id string) error
}

type SettlementStore interface {
	// SaveSettlement inserts the header and its items.
	SaveSettlement(ctx context.Context, s Settlement) error
	GetSettlement(ctx context.Context, id string) (*Settlement, error)
	DeleteSettlement(ctx context.Context, id string) error
}

// Store is everything the engine reads and writes.
type Store interface {
	CatalogStore
	TransactionStore
	ContactLedgerStore
	WeightLedgerStore
	InventoryStore
	BankStore
	PaymentStore
	SettlementStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a database transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
