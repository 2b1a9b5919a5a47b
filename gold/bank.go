package gold

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
)

// BankLedger is the per-account cash ledger. Every row moves
// bank_accounts.current_balance by its amount in the same database
// transaction, so current_balance = initial_balance + Σamount holds.
type BankLedger struct {
	store interface {
		BankStore
		GetBankAccount(ctx context.Context, id string) (*BankAccount, error)
	}
	now   func() time.Time
	newID func() string
}

func NewBankLedger(store Store, now func() time.Time, newID func() string) *BankLedger {
	return &BankLedger{store: store, now: now, newID: newID}
}

// RecordTransaction appends a signed cash movement (positive = inflow) and
// applies it to the account balance atomically.
func (l *BankLedger) RecordTransaction(ctx context.Context, bt BankTransaction) (BankTransaction, error) {
	verr := &generic.ValidationError{Op: "bank_ledger.record"}
	if bt.BankAccountID == "" {
		verr.Add("bank_account_id", "required", "")
	}
	if bt.Amount.IsZero() {
		verr.Add("amount", "ne=0", "a bank transaction must move money")
	}
	if !bt.Amount.Equal(bt.Amount.Round(generic.RialPlaces)) {
		verr.Add("amount", "integer", "amounts are whole Rial")
	}
	if err := verr.OrNil(); err != nil {
		return BankTransaction{}, err
	}
	account, err := l.store.GetBankAccount(ctx, bt.BankAccountID)
	if err != nil {
		return BankTransaction{}, err
	}
	if account == nil {
		return BankTransaction{}, generic.NotFound("bank account", bt.BankAccountID)
	}
	if !generic.RialsFit(account.CurrentBalance.Add(bt.Amount)) {
		return BankTransaction{}, generic.NewValidationError("bank_ledger.record", "amount", "lte=max_rials", "account balance would be out of range")
	}

	bt.ID = l.newID()
	bt.CreatedAt = l.now()
	if err := l.store.AppendBankTransaction(ctx, bt); err != nil {
		return BankTransaction{}, err
	}
	if err := l.store.AdjustBankBalance(ctx, bt.BankAccountID, generic.RialsDec(bt.Amount)); err != nil {
		return BankTransaction{}, err
	}
	return bt, nil
}

// Reverse appends the negation of original and moves the balance back.
func (l *BankLedger) Reverse(ctx context.Context, original BankTransaction, date generic.TimePoint) (BankTransaction, error) {
	if original.ReversalOf != "" {
		return BankTransaction{}, generic.ErrAlreadyReversed
	}
	return l.RecordTransaction(ctx, BankTransaction{
		BankAccountID:    original.BankAccountID,
		Amount:           original.Amount.Neg(),
		TransactionDate:  date,
		RelatedPaymentID: original.RelatedPaymentID,
		ReversalOf:       original.ID,
		Description:      "reversal of " + original.ID,
	})
}

// Balance returns the account's current balance.
func (l *BankLedger) Balance(ctx context.Context, accountID string) (generic.Amount, error) {
	account, err := l.store.GetBankAccount(ctx, accountID)
	if err != nil {
		return generic.Amount{}, err
	}
	if account == nil {
		return generic.Amount{}, generic.NotFound("bank account", accountID)
	}
	return generic.RialsDec(account.CurrentBalance), nil
}

// BankDrift is an account whose stored balance disagrees with its ledger.
type BankDrift struct {
	AccountID string
	Stored    decimal.Decimal
	Replayed  decimal.Decimal
}

// Verify checks current_balance = initial_balance + Σamount for account.
func (l *BankLedger) Verify(ctx context.Context, account BankAccount) (*BankDrift, error) {
	txs, err := l.store.BankTransactions(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	replayed := account.InitialBalance
	for _, bt := range txs {
		replayed = replayed.Add(bt.Amount)
	}
	if replayed.Equal(account.CurrentBalance) {
		return nil, nil
	}
	return &BankDrift{AccountID: account.ID, Stored: account.CurrentBalance, Replayed: replayed}, nil
}
