/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the gold domain model from the external API contract. Decimals travel as
  JSON strings so no precision is lost on the way to the client.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Trades:      TransactionRequest, TransactionDTO, TransactionItemDTO,
               TransactionResultDTO, CompleteRequest
  Cash:        PaymentRequest, BankTransactionDTO
  Gold:        SettlementRequest
  Balances:    PositionDTO, AmountDTO, InventoryDTO, StatementDTO
  Catalog:     ContactDTO, CategoryDTO, ProductDTO, BankAccountDTO
  Maintenance: ConsistencyDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request bodies embed the engine's input types, which carry validator
  tags. Only the date field is handled here because the engine works on
  generic.TimePoint.

SEE ALSO:
  - handlers.go: Uses these types
  - gold/transaction.go, gold/payment.go, gold/settlement.go: input types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// REQUESTS
// =============================================================================

// TransactionRequest creates or replaces a transaction. Date is YYYY-MM-DD;
// empty means today.
type TransactionRequest struct {
	gold.TransactionInput
	Date string `json:"date"`
}

// CompleteRequest names the delivery action: "receipt" or "delivery".
type CompleteRequest struct {
	Action gold.DeliveryAction `json:"action"`
}

type PaymentRequest struct {
	gold.PaymentInput
	Date string `json:"date"`
}

type SettlementRequest struct {
	gold.SettlementInput
	Date string `json:"date"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// CreatedResponse is returned by endpoints that only produce an id.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is every non-2xx body.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details []generic.FieldError `json:"details,omitempty"`
}

// =============================================================================
// BALANCES
// =============================================================================

type AmountDTO struct {
	Value decimal.Decimal `json:"value"`
	Unit  generic.Unit    `json:"unit"`
}

func toAmountDTO(a generic.Amount) AmountDTO {
	return AmountDTO{Value: a.Value, Unit: a.Unit}
}

// PositionDTO is a three-unit contact balance. Positive values mean the
// business owes the contact.
type PositionDTO struct {
	Rial      decimal.Decimal `json:"rial"`
	Weight750 decimal.Decimal `json:"weight750"`
	Count     decimal.Decimal `json:"count"`
}

func toPositionDTO(p generic.Position) PositionDTO {
	return PositionDTO{Rial: p.Rial.Value, Weight750: p.Weight.Value, Count: p.Count.Value}
}

type ContactBalanceDTO struct {
	ContactID string      `json:"contact_id"`
	AsOf      string      `json:"as_of,omitempty"`
	Balance   PositionDTO `json:"balance"`
}

type WeightBalanceDTO struct {
	ContactID  string          `json:"contact_id"`
	CategoryID string          `json:"category_id"`
	Weight750  decimal.Decimal `json:"weight750"`
}

type InventoryDTO struct {
	ProductID   string          `json:"product_id"`
	WeightGrams decimal.Decimal `json:"weight_grams"`
	Weight750   decimal.Decimal `json:"weight750"`
	Quantity    decimal.Decimal `json:"quantity"`
	ValueRials  decimal.Decimal `json:"value_rials"`
}

func toInventoryDTO(b gold.InventoryBalance) InventoryDTO {
	return InventoryDTO{
		ProductID:   b.ProductID,
		WeightGrams: b.WeightGrams.Value,
		Weight750:   b.Weight750.Value,
		Quantity:    b.Quantity.Value,
		ValueRials:  b.ValueRials.Value,
	}
}

type BankBalanceDTO struct {
	AccountID    string               `json:"account_id"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []BankTransactionDTO `json:"transactions"`
}

type BankTransactionDTO struct {
	ID               string          `json:"id"`
	Amount           decimal.Decimal `json:"amount"`
	Date             string          `json:"date"`
	RelatedPaymentID string          `json:"related_payment_id,omitempty"`
	ReversalOf       string          `json:"reversal_of,omitempty"`
	Description      string          `json:"description,omitempty"`
}

func toBankTransactionDTOs(txs []gold.BankTransaction) []BankTransactionDTO {
	dtos := make([]BankTransactionDTO, 0, len(txs))
	for _, bt := range txs {
		dtos = append(dtos, BankTransactionDTO{
			ID:               bt.ID,
			Amount:           bt.Amount,
			Date:             bt.TransactionDate.String(),
			RelatedPaymentID: bt.RelatedPaymentID,
			ReversalOf:       bt.ReversalOf,
			Description:      bt.Description,
		})
	}
	return dtos
}

// StatementDTO is a contact's ledger over a period.
type StatementDTO struct {
	ContactID string             `json:"contact_id"`
	From      string             `json:"from,omitempty"`
	To        string             `json:"to"`
	Opening   PositionDTO        `json:"opening"`
	Lines     []StatementLineDTO `json:"lines"`
	Closing   PositionDTO        `json:"closing"`
}

type StatementLineDTO struct {
	EntryID       string          `json:"entry_id"`
	Date          string          `json:"date"`
	RefType       gold.RefType    `json:"ref_type"`
	RefID         string          `json:"ref_id"`
	Memo          string          `json:"memo,omitempty"`
	ReversalOf    string          `json:"reversal_of,omitempty"`
	DebitRial     decimal.Decimal `json:"debit_rial"`
	CreditRial    decimal.Decimal `json:"credit_rial"`
	DebitWeight   decimal.Decimal `json:"debit_weight750"`
	CreditWeight  decimal.Decimal `json:"credit_weight750"`
	DebitCount    decimal.Decimal `json:"debit_count"`
	CreditCount   decimal.Decimal `json:"credit_count"`
	RunningRial   decimal.Decimal `json:"running_rial"`
	RunningWeight decimal.Decimal `json:"running_weight750"`
	RunningCount  decimal.Decimal `json:"running_count"`
}

func toStatementDTO(st gold.Statement) StatementDTO {
	dto := StatementDTO{
		ContactID: st.ContactID,
		To:        st.Period.End.String(),
		Opening:   toPositionDTO(st.Opening),
		Lines:     make([]StatementLineDTO, 0, len(st.Lines)),
		Closing:   toPositionDTO(st.Closing),
	}
	if !st.Period.Start.IsZero() {
		dto.From = st.Period.Start.String()
	}
	for _, line := range st.Lines {
		e := line.Entry
		dto.Lines = append(dto.Lines, StatementLineDTO{
			EntryID:       e.ID,
			Date:          e.Date.String(),
			RefType:       e.Ref.Type,
			RefID:         e.Ref.ID,
			Memo:          e.Memo,
			ReversalOf:    e.ReversalOf,
			DebitRial:     e.Rial.Debit,
			CreditRial:    e.Rial.Credit,
			DebitWeight:   e.Weight.Debit,
			CreditWeight:  e.Weight.Credit,
			DebitCount:    e.Count.Debit,
			CreditCount:   e.Count.Credit,
			RunningRial:   line.Balance.Rial.Value,
			RunningWeight: line.Balance.Weight.Value,
			RunningCount:  line.Balance.Count.Value,
		})
	}
	return dto
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionResultDTO struct {
	TransactionID  string              `json:"transaction_id"`
	FinalAmount    AmountDTO           `json:"final_amount"`
	DeliveryStatus gold.DeliveryStatus `json:"delivery_status"`
}

type TransactionDTO struct {
	ID                string               `json:"id"`
	Type              gold.TxType          `json:"type"`
	ContactID         string               `json:"contact_id"`
	Date              string               `json:"date"`
	Status            gold.DeliveryStatus  `json:"delivery_status"`
	AdjustmentRials   decimal.Decimal      `json:"adjustment_rials"`
	FinalPayableRials decimal.Decimal      `json:"final_payable_rials"`
	Notes             string               `json:"notes,omitempty"`
	Items             []TransactionItemDTO `json:"items"`
	CreatedAt         string               `json:"created_at"`
	UpdatedAt         string               `json:"updated_at"`
}

type TransactionItemDTO struct {
	ID                string              `json:"id"`
	ProductID         string              `json:"product_id"`
	CategoryID        string              `json:"category_id"`
	BaseCategory      gold.Category       `json:"base_category"`
	SettlementMode    gold.SettlementMode `json:"settlement_mode"`
	WeightGrams       decimal.Decimal     `json:"weight_grams"`
	Purity            decimal.Decimal     `json:"purity"`
	Quantity          decimal.Decimal     `json:"quantity"`
	Weight750         decimal.Decimal     `json:"weight750"`
	TotalValueRials   decimal.Decimal     `json:"total_value_rials"`
	FeeAmountRials    decimal.Decimal     `json:"fee_amount_rials"`
	ProfitAmountRials decimal.Decimal     `json:"profit_amount_rials"`
	GeneralTaxRials   decimal.Decimal     `json:"general_tax_rials"`
	VATRials          decimal.Decimal     `json:"vat_rials"`
	FinalValueRials   decimal.Decimal     `json:"final_value_rials"`
}

func toTransactionDTO(tx gold.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                tx.ID,
		Type:              tx.Type,
		ContactID:         tx.ContactID,
		Date:              tx.Date.String(),
		Status:            tx.Status,
		AdjustmentRials:   tx.AdjustmentRials,
		FinalPayableRials: tx.FinalPayableRials,
		Notes:             tx.Notes,
		Items:             make([]TransactionItemDTO, 0, len(tx.Items)),
		CreatedAt:         tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         tx.UpdatedAt.Format(time.RFC3339),
	}
	for _, it := range tx.Items {
		dto.Items = append(dto.Items, TransactionItemDTO{
			ID:                it.ID,
			ProductID:         it.ProductID,
			CategoryID:        it.CategoryID,
			BaseCategory:      it.Category,
			SettlementMode:    it.SettlementMode,
			WeightGrams:       it.WeightGrams,
			Purity:            it.Purity,
			Quantity:          it.Quantity,
			Weight750:         it.Weight750,
			TotalValueRials:   it.TotalValueRials,
			FeeAmountRials:    it.FeeAmountRials,
			ProfitAmountRials: it.ProfitAmountRials,
			GeneralTaxRials:   it.GeneralTaxRials,
			VATRials:          it.VATRials,
			FinalValueRials:   it.FinalValueRials,
		})
	}
	return dto
}

// =============================================================================
// CATALOG
// =============================================================================

type ContactDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type CategoryDTO struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	BaseCategory gold.Category `json:"base_category"`
}

type ProductDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CategoryID    string          `json:"category_id"`
	BaseCategory  gold.Category   `json:"base_category"`
	DefaultPurity decimal.Decimal `json:"default_purity"`
}

type BankAccountDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AccountNumber  string          `json:"account_number,omitempty"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

func toBankAccountDTO(a gold.BankAccount) BankAccountDTO {
	return BankAccountDTO{
		ID:             a.ID,
		Name:           a.Name,
		AccountNumber:  a.AccountNumber,
		InitialBalance: a.InitialBalance,
		CurrentBalance: a.CurrentBalance,
	}
}

// =============================================================================
// MAINTENANCE
// =============================================================================

type ConsistencyDTO struct {
	CheckedAt string            `json:"checked_at"`
	OK        bool              `json:"ok"`
	Contacts  []ContactDriftDTO `json:"contact_drift"`
	Weights   []WeightDriftDTO  `json:"weight_drift"`
	Banks     []BankDriftDTO    `json:"bank_drift"`
}

type ContactDriftDTO struct {
	ContactID string      `json:"contact_id"`
	Cached    PositionDTO `json:"cached"`
	Replayed  PositionDTO `json:"replayed"`
}

type WeightDriftDTO struct {
	ContactID  string `json:"contact_id"`
	CategoryID string `json:"category_id"`
	Error      string `json:"error"`
}

type BankDriftDTO struct {
	AccountID string          `json:"account_id"`
	Stored    decimal.Decimal `json:"stored"`
	Replayed  decimal.Decimal `json:"replayed"`
}

func toConsistencyDTO(r gold.ConsistencyReport) ConsistencyDTO {
	dto := ConsistencyDTO{
		CheckedAt: r.CheckedAt.Format(time.RFC3339),
		OK:        r.OK(),
		Contacts:  []ContactDriftDTO{},
		Weights:   []WeightDriftDTO{},
		Banks:     []BankDriftDTO{},
	}
	for _, d := range r.Contacts {
		dto.Contacts = append(dto.Contacts, ContactDriftDTO{
			ContactID: d.ContactID, Cached: toPositionDTO(d.Cached), Replayed: toPositionDTO(d.Replayed),
		})
	}
	for _, d := range r.Weights {
		wd := WeightDriftDTO{ContactID: d.Key.ContactID, CategoryID: d.Key.CategoryID}
		if d.Drift != nil {
			wd.Error = d.Drift.Error()
		}
		dto.Weights = append(dto.Weights, wd)
	}
	for _, d := range r.Banks {
		dto.Banks = append(dto.Banks, BankDriftDTO{AccountID: d.AccountID, Stored: d.Stored, Replayed: d.Replayed})
	}
	return dto
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
