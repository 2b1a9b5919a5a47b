/*
Package gold is the multi-dimensional ledger and settlement engine of a gold
and jewelry trading desk.

PURPOSE:
  Keeps three units of value consistent across trades, payments, bank cash
  movements and physical gold settlements:
    - Rial currency
    - gold weight, normalized to 750/1000 purity
    - item counts (coins, jewelry pieces)

FLOW:
  1. ItemProcessor prices each raw line (per category)
  2. TransactionProcessor saves header + items and assigns a delivery status
  3. DeliveryMachine completes the goods exchange later and posts inventory
     and contact ledger effects in the same database transaction
  4. PaymentProcessor and SettlementProcessor are separate entry points that
     write to the bank ledger and contact weight ledger

KEY INVARIANT:
  Pending transactions never touch inventory or contact balances. Only a
  completed transaction is "booked".

SEE ALSO:
  - engine.go: The facade the API layer calls
  - store.go: Persistence interfaces
*/
package gold

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
)

// =============================================================================
// TRANSACTION TYPES AND STATES
// =============================================================================

type TxType string

const (
	TxBuy  TxType = "buy"  // we receive goods from the contact
	TxSell TxType = "sell" // we hand goods to the contact
)

func (t TxType) Valid() bool { return t == TxBuy || t == TxSell }

type DeliveryStatus string

const (
	StatusPendingReceipt  DeliveryStatus = "pending_receipt"
	StatusPendingDelivery DeliveryStatus = "pending_delivery"
	StatusCompleted       DeliveryStatus = "completed"
	StatusCancelled       DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) IsPending() bool {
	return s == StatusPendingReceipt || s == StatusPendingDelivery
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type DeliveryAction string

const (
	ActionReceipt  DeliveryAction = "receipt"
	ActionDelivery DeliveryAction = "delivery"
)

// SettlementMode says how an item's value is owed.
type SettlementMode string

const (
	// SettleRial owes the full final value in Rial.
	SettleRial SettlementMode = "rial"
	// SettleInKind owes the gold itself (750-equivalent grams, or pieces
	// for count-priced items); only fee, profit and taxes are owed in Rial.
	SettleInKind SettlementMode = "in_kind"
)

type Direction string

const (
	Inflow  Direction = "inflow"  // the business receives
	Outflow Direction = "outflow" // the business pays out
)

func (d Direction) Valid() bool { return d == Inflow || d == Outflow }

// Sign returns +1 for inflow and -1 for outflow.
func (d Direction) Sign() decimal.Decimal {
	if d == Outflow {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// RefType names what produced a ledger row.
type RefType string

const (
	RefTransaction     RefType = "transaction" // header adjustment
	RefTransactionItem RefType = "transaction_item"
	RefPayment         RefType = "payment"
	RefSettlement      RefType = "settlement"
)

// Ref points a ledger row back at its source record.
type Ref struct {
	Type RefType
	ID   string
	// ParentID is the owning transaction for item refs.
	ParentID string
}

// =============================================================================
// CATALOG
// =============================================================================

type Contact struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}

// ProductCategory groups products; Base selects the pricing rules.
type ProductCategory struct {
	ID   string
	Name string
	Base Category
}

type Product struct {
	ID            string
	Name          string
	CategoryID    string
	DefaultPurity decimal.Decimal
	CreatedAt     time.Time
}

// ProductInfo is a product resolved with its category.
type ProductInfo struct {
	Product  Product
	Category ProductCategory
}

type BankAccount struct {
	ID             string
	Name           string
	AccountNumber  string
	InitialBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
}

// =============================================================================
// TRANSACTION
// =============================================================================

type Transaction struct {
	ID                string
	Type              TxType
	ContactID         string
	Date              generic.TimePoint
	Status            DeliveryStatus
	AdjustmentRials   decimal.Decimal // discounts (negative) or surcharges
	FinalPayableRials decimal.Decimal
	Notes             string
	Items             []TransactionItem
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TransactionItem is a priced line. Computed fields are filled by
// ItemProcessor and never accepted from callers.
type TransactionItem struct {
	ID             string
	TransactionID  string
	ProductID      string
	CategoryID     string
	Category       Category
	SettlementMode SettlementMode

	WeightGrams     decimal.Decimal
	Purity          decimal.Decimal
	Quantity        decimal.Decimal
	CoinYear        int
	BankCoin        bool
	UnitPriceRials  decimal.Decimal
	MarketRateRials decimal.Decimal
	FeePercent      decimal.Decimal
	FeeFlatRials    decimal.Decimal
	ProfitPercent   decimal.Decimal
	ProfitFlatRials decimal.Decimal
	ApplyGeneralTax bool
	ApplyVAT        bool

	// Computed
	Weight750         decimal.Decimal
	TotalValueRials   decimal.Decimal // base value, before fee and profit
	FeeAmountRials    decimal.Decimal
	ProfitAmountRials decimal.Decimal
	GeneralTaxRials   decimal.Decimal
	VATRials          decimal.Decimal
	FinalValueRials   decimal.Decimal // total + fee + profit + taxes
}

// ChargesRials is everything on top of the base value.
func (it TransactionItem) ChargesRials() decimal.Decimal {
	return it.FinalValueRials.Sub(it.TotalValueRials)
}

// BaseUnits is what the line trades in its pricing unit: 750-equivalent
// grams for weight-priced categories, pieces for count-priced ones.
func (it TransactionItem) BaseUnits() generic.Amount {
	if it.Category.WeightPriced() {
		return generic.Grams750(it.Weight750)
	}
	return generic.CountDec(it.Quantity)
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// ContactEntry is one row of the contact ledger. Balance = Σcredit − Σdebit.
type ContactEntry struct {
	ID         string
	ContactID  string
	Date       generic.TimePoint
	Rial       generic.DebitCredit
	Weight     generic.DebitCredit // 750-equivalent grams
	Count      generic.DebitCredit
	Ref        Ref
	ReversalOf string
	Memo       string
	CreatedAt  time.Time
}

func (e ContactEntry) Effect() generic.Position {
	return generic.Position{
		Rial:   generic.RialsDec(e.Rial.Net()),
		Weight: generic.Grams750(e.Weight.Net()),
		Count:  generic.CountDec(e.Count.Net()),
	}
}

func (e ContactEntry) EntryDate() generic.TimePoint { return e.Date }

type WeightEvent string

const (
	WeightEventSettlement  WeightEvent = "SETTLEMENT"
	WeightEventTransaction WeightEvent = "TRANSACTION"
	WeightEventAdjustment  WeightEvent = "ADJUSTMENT"
)

// WeightEntry is one row of the contact weight ledger (running total).
type WeightEntry struct {
	ID           string
	ContactID    string
	CategoryID   string
	EventType    WeightEvent
	Change       decimal.Decimal // signed, 750-equivalent grams
	BalanceAfter decimal.Decimal
	RelatedID    string
	ReversalOf   string
	EntryDate    time.Time // insertion time; orders the running total
}

func (e WeightEntry) ChangeAmount() generic.Amount       { return generic.Grams750(e.Change) }
func (e WeightEntry) BalanceAfterAmount() generic.Amount { return generic.Grams750(e.BalanceAfter) }

// InventoryEntry is one signed stock movement of a product.
type InventoryEntry struct {
	ID                string
	ProductID         string
	ChangeWeightGrams decimal.Decimal
	ChangeWeight750   decimal.Decimal
	ChangeQuantity    decimal.Decimal
	ChangeValueRials  decimal.Decimal
	SourceItemID      string
	TransactionID     string
	ReversalOf        string
	CreatedAt         time.Time
}

// InventoryBalance is the booked stock of one product.
type InventoryBalance struct {
	ProductID   string
	WeightGrams generic.Amount
	Weight750   generic.Amount
	Quantity    generic.Amount
	ValueRials  generic.Amount
}

// BankTransaction is one signed cash movement (positive = inflow).
type BankTransaction struct {
	ID               string
	BankAccountID    string
	Amount           decimal.Decimal
	TransactionDate  generic.TimePoint
	RelatedPaymentID string
	ReversalOf       string
	Description      string
	CreatedAt        time.Time
}

// =============================================================================
// PAYMENT AND SETTLEMENT
// =============================================================================

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodBank   PaymentMethod = "bank"
	MethodCard   PaymentMethod = "card"
	MethodCheque PaymentMethod = "cheque"
)

type Payment struct {
	ID                   string
	Direction            Direction
	AmountRials          decimal.Decimal
	Method               PaymentMethod
	Date                 generic.TimePoint
	PayingContactID      string
	ReceivingContactID   string
	Details              string
	BankAccountID        string
	BankTransactionID    string
	RelatedTransactionID string
	CreatedAt            time.Time
}

// CounterpartyID is the contact on the other side of the cash movement.
func (p Payment) CounterpartyID() string {
	if p.Direction == Inflow {
		return p.PayingContactID
	}
	return p.ReceivingContactID
}

type Settlement struct {
	ID                string
	ContactID         string
	Direction         Direction
	Date              generic.TimePoint
	PrimaryCategoryID string
	TotalWeight750    decimal.Decimal
	Notes             string
	Items             []SettlementItem
	CreatedAt         time.Time
}

type SettlementItem struct {
	ID           string
	SettlementID string
	ProductID    string
	WeightGrams  decimal.Decimal
	Purity       decimal.Decimal
	Weight750    decimal.Decimal
}
