/*
payment.go - Cash movements between the business and a counterparty

PURPOSE:
  A payment moves Rial in (inflow: the contact pays us) or out (outflow: we
  pay the contact). It writes up to three things in one database
  transaction:
    1. the payment row
    2. a bank transaction plus atomic balance update, for bank and card
       methods
    3. a contact ledger row (inflow credits, outflow debits) when the
       counterparty is a known contact

COUNTERPARTY:
  inflow  → PayingContactID, or free-text Details when the payer is not a
            contact
  outflow → ReceivingContactID, or Details
  The field for the other side is rejected: the business is always that side.
  Only bank and card payments may name a bank account.

DELETE:
  Reverses the bank transaction (balance moves back) and the contact row,
  then removes the payment.
*/
package gold

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

// PaymentInput is the command to record a payment.
type PaymentInput struct {
	Direction            Direction         `json:"direction" validate:"required,oneof=inflow outflow"`
	AmountRials          decimal.Decimal   `json:"amount_rials" validate:"gt=0"`
	Method               PaymentMethod     `json:"method" validate:"required,oneof=cash bank card cheque"`
	Date                 generic.TimePoint `json:"-"`
	PayingContactID      string            `json:"paying_contact_id"`
	ReceivingContactID   string            `json:"receiving_contact_id"`
	Details              string            `json:"details" validate:"max=500"`
	BankAccountID        string            `json:"bank_account_id" validate:"required_if=Method bank,required_if=Method card"`
	RelatedTransactionID string            `json:"related_transaction_id"`
}

type PaymentProcessor struct {
	*env
}

func usesBank(m PaymentMethod) bool {
	return m == MethodBank || m == MethodCard
}

// Record validates in and posts the payment. It returns the payment id.
func (p *PaymentProcessor) Record(ctx context.Context, in PaymentInput) (string, error) {
	op := "record_payment"
	payment, err := p.build(ctx, op, in)
	if err != nil {
		return "", err
	}

	err = p.inTx(ctx, op, func(s Store) error {
		lg := p.ledgers(s)
		if usesBank(payment.Method) {
			bt, err := lg.bank.RecordTransaction(ctx, BankTransaction{
				BankAccountID:    payment.BankAccountID,
				Amount:           payment.AmountRials.Mul(payment.Direction.Sign()),
				TransactionDate:  payment.Date,
				RelatedPaymentID: payment.ID,
				Description:      string(payment.Direction) + " " + string(payment.Method),
			})
			if err != nil {
				return err
			}
			payment.BankTransactionID = bt.ID
		}
		if err := s.SavePayment(ctx, payment); err != nil {
			return err
		}
		if contactID := payment.CounterpartyID(); contactID != "" {
			_, err := lg.contacts.RecordEntry(ctx, ContactEntry{
				ContactID: contactID,
				Date:      payment.Date,
				Rial:      generic.Split(payment.AmountRials.Mul(payment.Direction.Sign())),
				Ref:       Ref{Type: RefPayment, ID: payment.ID},
				Memo:      "payment " + string(payment.Method),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	p.log.WithFields(logrus.Fields{
		"module": "gold", "op": op, "payment_id": payment.ID,
		"direction": payment.Direction, "amount_rials": payment.AmountRials.String(),
		"bank_account_id": payment.BankAccountID,
	}).Info("payment recorded")
	return payment.ID, nil
}

func (p *PaymentProcessor) build(ctx context.Context, op string, in PaymentInput) (Payment, error) {
	verr := structErrors(p.items.validate, op, in)
	if !in.AmountRials.Equal(in.AmountRials.Round(generic.RialPlaces)) {
		verr.Add("amount_rials", "integer", "amounts are whole Rial")
	}
	verr.CheckRials("amount_rials", in.AmountRials)

	payment := Payment{
		ID:                   p.newID(),
		Direction:            in.Direction,
		AmountRials:          in.AmountRials,
		Method:               in.Method,
		Date:                 in.Date,
		PayingContactID:      in.PayingContactID,
		ReceivingContactID:   in.ReceivingContactID,
		Details:              in.Details,
		BankAccountID:        in.BankAccountID,
		RelatedTransactionID: in.RelatedTransactionID,
		CreatedAt:            p.now(),
	}
	if payment.Date.IsZero() {
		payment.Date = p.today()
	}

	counterpartyField, otherField, otherID := "paying_contact_id", "receiving_contact_id", in.ReceivingContactID
	if in.Direction == Outflow {
		counterpartyField, otherField, otherID = "receiving_contact_id", "paying_contact_id", in.PayingContactID
	}
	if in.Direction.Valid() && payment.CounterpartyID() == "" && in.Details == "" {
		verr.Add(counterpartyField, "required_without=details", "name a contact or describe the counterparty")
	}
	// the business is always the other side
	if in.Direction.Valid() && otherID != "" {
		verr.Add(otherField, "excluded_if=direction "+string(in.Direction), "only the "+counterpartyField+" side names a contact")
	}
	if in.BankAccountID != "" && !usesBank(in.Method) {
		verr.Add("bank_account_id", "excluded_unless=method bank card", "cash and cheque payments do not move a bank account")
	}

	for field, id := range map[string]string{"paying_contact_id": in.PayingContactID, "receiving_contact_id": in.ReceivingContactID} {
		if id == "" {
			continue
		}
		c, err := p.store.GetContact(ctx, id)
		if err != nil {
			return Payment{}, generic.WrapPersistence(op, err)
		}
		if c == nil {
			verr.Add(field, "exists", "unknown contact "+id)
		}
	}
	if in.BankAccountID != "" {
		a, err := p.store.GetBankAccount(ctx, in.BankAccountID)
		if err != nil {
			return Payment{}, generic.WrapPersistence(op, err)
		}
		if a == nil {
			verr.Add("bank_account_id", "exists", "unknown bank account "+in.BankAccountID)
		}
	}
	if in.RelatedTransactionID != "" {
		tx, err := p.store.GetTransaction(ctx, in.RelatedTransactionID)
		if err != nil {
			return Payment{}, generic.WrapPersistence(op, err)
		}
		if tx == nil {
			verr.Add("related_transaction_id", "exists", "unknown transaction "+in.RelatedTransactionID)
		}
	}
	if err := verr.OrNil(); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// Delete reverses the payment's bank and contact effects and removes it.
func (p *PaymentProcessor) Delete(ctx context.Context, id string) error {
	op := "delete_payment"
	err := p.inTx(ctx, op, func(s Store) error {
		payment, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return generic.NotFound("payment", id)
		}
		lg := p.ledgers(s)

		bankTxs, err := s.ActiveBankTransactions(ctx, id)
		if err != nil {
			return err
		}
		for _, bt := range bankTxs {
			if _, err := lg.bank.Reverse(ctx, bt, bt.TransactionDate); err != nil {
				return err
			}
		}

		entries, err := s.ActiveContactEntries(ctx, Ref{Type: RefPayment, ID: id})
		if err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := lg.contacts.Reverse(ctx, e, e.Date, "payment deleted"); err != nil {
				return err
			}
		}
		return s.DeletePayment(ctx, id)
	})
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"module": "gold", "op": op, "payment_id": id}).Info("payment deleted")
	return nil
}
