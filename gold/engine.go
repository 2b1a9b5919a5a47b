/*
engine.go - The ledger engine facade

PURPOSE:
  Engine is the single entry point the API layer calls. It owns one store,
  one logger and the processors, which all share the same clock and id
  source. Every collaborator is injected at construction; nothing is looked
  up at call time.

OPERATIONS:
  Trades:       CreateOrUpdateTransaction, CompleteDelivery,
                CancelTransaction, DeleteTransaction
  Cash:         RecordPayment, DeletePayment
  Gold in kind: RecordSettlement, DeleteSettlement
  Balances:     GetContactBalance, GetWeightBalance, GetInventoryBalance,
                GetBankBalance, ContactStatement
  Maintenance:  VerifyConsistency, RebuildContactBalances
*/
package gold

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

type Engine struct {
	env          *env
	transactions *TransactionProcessor
	delivery     *DeliveryMachine
	payments     *PaymentProcessor
	settlements  *SettlementProcessor
}

type Option func(*env)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// WithIDs replaces uuid generation.
func WithIDs(newID func() string) Option {
	return func(e *env) { e.newID = newID }
}

// WithValuer replaces average-cost valuation of sales.
func WithValuer(v CostValuer) Option {
	return func(e *env) { e.valuer = v }
}

func WithItemConfig(cfg ItemConfig) Option {
	return func(e *env) { e.items = NewItemProcessor(cfg) }
}

func NewEngine(store TxStore, logger *logrus.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	e := &env{
		store:  store,
		log:    logger,
		now:    time.Now,
		newID:  uuid.NewString,
		items:  NewItemProcessor(DefaultItemConfig()),
		valuer: AverageCost{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return &Engine{
		env:          e,
		transactions: &TransactionProcessor{env: e},
		delivery:     &DeliveryMachine{env: e},
		payments:     &PaymentProcessor{env: e},
		settlements:  &SettlementProcessor{env: e},
	}
}

// Items returns the line pricer, for previews that must not persist.
func (e *Engine) Items() *ItemProcessor { return e.env.items }

// =============================================================================
// TRADES
// =============================================================================

// CreateOrUpdateTransaction saves a new transaction (id empty) or replaces
// transaction id.
func (e *Engine) CreateOrUpdateTransaction(ctx context.Context, in TransactionInput, id string) (TransactionResult, error) {
	return e.transactions.Save(ctx, in, id)
}

// CompleteDelivery applies a receipt or delivery action. The second
// completion of one transaction returns false with a StateError.
func (e *Engine) CompleteDelivery(ctx context.Context, id string, action DeliveryAction) (bool, error) {
	return e.delivery.Complete(ctx, id, action)
}

func (e *Engine) CancelTransaction(ctx context.Context, id string) error {
	return e.delivery.Cancel(ctx, id)
}

func (e *Engine) DeleteTransaction(ctx context.Context, id string) error {
	return e.transactions.Delete(ctx, id)
}

func (e *Engine) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	tx, err := e.env.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, generic.WrapPersistence("get_transaction", err)
	}
	if tx == nil {
		return nil, generic.NotFound("transaction", id)
	}
	return tx, nil
}

func (e *Engine) ListTransactions(ctx context.Context, contactID string) ([]Transaction, error) {
	txs, err := e.env.store.ListTransactions(ctx, contactID)
	return txs, generic.WrapPersistence("list_transactions", err)
}

// =============================================================================
// PAYMENTS AND SETTLEMENTS
// =============================================================================

func (e *Engine) RecordPayment(ctx context.Context, in PaymentInput) (string, error) {
	return e.payments.Record(ctx, in)
}

func (e *Engine) DeletePayment(ctx context.Context, id string) error {
	return e.payments.Delete(ctx, id)
}

func (e *Engine) RecordSettlement(ctx context.Context, in SettlementInput) (string, error) {
	return e.settlements.Record(ctx, in)
}

func (e *Engine) DeleteSettlement(ctx context.Context, id string) error {
	return e.settlements.Delete(ctx, id)
}

// =============================================================================
// BALANCES
// =============================================================================

// GetContactBalance returns the contact's position as of asOf (inclusive),
// or the current position when asOf is nil.
func (e *Engine) GetContactBalance(ctx context.Context, contactID string, asOf *generic.TimePoint) (generic.Position, error) {
	if err := e.requireContact(ctx, "get_contact_balance", contactID); err != nil {
		return generic.Position{}, err
	}
	pos, err := e.env.ledgers(e.env.store).contacts.BalanceAsOf(ctx, contactID, asOf)
	return pos, generic.WrapPersistence("get_contact_balance", err)
}

// GetWeightBalance is the running in-kind balance of (contact, category).
func (e *Engine) GetWeightBalance(ctx context.Context, contactID, categoryID string) (generic.Amount, error) {
	if err := e.requireContact(ctx, "get_weight_balance", contactID); err != nil {
		return generic.Amount{}, err
	}
	amount, err := e.env.ledgers(e.env.store).weights.LastBalance(ctx, WeightKey{ContactID: contactID, CategoryID: categoryID})
	return amount, generic.WrapPersistence("get_weight_balance", err)
}

// GetInventoryBalance returns booked stock; pending trades are excluded.
func (e *Engine) GetInventoryBalance(ctx context.Context, productID string) (InventoryBalance, error) {
	info, err := e.env.store.GetProduct(ctx, productID)
	if err != nil {
		return InventoryBalance{}, generic.WrapPersistence("get_inventory_balance", err)
	}
	if info == nil {
		return InventoryBalance{}, generic.NotFound("product", productID)
	}
	b, err := e.env.ledgers(e.env.store).inventory.CurrentBalance(ctx, productID)
	return b, generic.WrapPersistence("get_inventory_balance", err)
}

func (e *Engine) GetBankBalance(ctx context.Context, accountID string) (generic.Amount, error) {
	amount, err := e.env.ledgers(e.env.store).bank.Balance(ctx, accountID)
	return amount, generic.WrapPersistence("get_bank_balance", err)
}

func (e *Engine) BankTransactions(ctx context.Context, accountID string) ([]BankTransaction, error) {
	if _, err := e.GetBankBalance(ctx, accountID); err != nil {
		return nil, err
	}
	txs, err := e.env.store.BankTransactions(ctx, accountID)
	return txs, generic.WrapPersistence("bank_transactions", err)
}

// ContactStatement lists the contact's entries in period with running
// balances.
func (e *Engine) ContactStatement(ctx context.Context, contactID string, period generic.Period) (Statement, error) {
	if err := e.requireContact(ctx, "contact_statement", contactID); err != nil {
		return Statement{}, err
	}
	st, err := e.env.ledgers(e.env.store).contacts.Statement(ctx, contactID, period)
	return st, generic.WrapPersistence("contact_statement", err)
}

func (e *Engine) requireContact(ctx context.Context, op, id string) error {
	c, err := e.env.store.GetContact(ctx, id)
	if err != nil {
		return generic.WrapPersistence(op, err)
	}
	if c == nil {
		return generic.NotFound("contact", id)
	}
	return nil
}

// =============================================================================
// CONSISTENCY
// =============================================================================

// ConsistencyReport lists every derived balance that disagrees with its log.
type ConsistencyReport struct {
	CheckedAt time.Time
	Contacts  []ContactDrift
	Weights   []WeightDrift
	Banks     []BankDrift
}

func (r ConsistencyReport) OK() bool {
	return len(r.Contacts) == 0 && len(r.Weights) == 0 && len(r.Banks) == 0
}

// VerifyConsistency re-derives contact balance caches, weight running
// balances and bank balances from their logs.
func (e *Engine) VerifyConsistency(ctx context.Context) (ConsistencyReport, error) {
	op := "verify_consistency"
	lg := e.env.ledgers(e.env.store)
	report := ConsistencyReport{CheckedAt: e.env.now()}

	var err error
	if report.Contacts, err = lg.contacts.Verify(ctx); err != nil {
		return ConsistencyReport{}, generic.WrapPersistence(op, err)
	}
	if report.Weights, err = lg.weights.Verify(ctx); err != nil {
		return ConsistencyReport{}, generic.WrapPersistence(op, err)
	}
	accounts, err := e.env.store.ListBankAccounts(ctx)
	if err != nil {
		return ConsistencyReport{}, generic.WrapPersistence(op, err)
	}
	for _, a := range accounts {
		drift, err := lg.bank.Verify(ctx, a)
		if err != nil {
			return ConsistencyReport{}, generic.WrapPersistence(op, err)
		}
		if drift != nil {
			report.Banks = append(report.Banks, *drift)
		}
	}

	entry := e.env.log.WithFields(logrus.Fields{
		"module": "gold", "op": op,
		"contact_drift": len(report.Contacts), "weight_drift": len(report.Weights), "bank_drift": len(report.Banks),
	})
	if report.OK() {
		entry.Debug("ledgers consistent")
	} else {
		entry.Warn("ledger drift detected")
	}
	return report, nil
}

// RebuildContactBalances overwrites the contact balance cache from the log.
func (e *Engine) RebuildContactBalances(ctx context.Context) (int, error) {
	var n int
	err := e.env.inTx(ctx, "rebuild_contact_balances", func(s Store) error {
		var err error
		n, err = e.env.ledgers(s).contacts.Rebuild(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.env.log.WithFields(logrus.Fields{"module": "gold", "op": "rebuild_contact_balances", "contacts": n}).Info("contact balances rebuilt")
	return n, nil
}
