/*
transaction.go - Saving, editing and deleting trades (TransactionProcessor)

PURPOSE:
  Persists a transaction header with its priced items and decides whether
  the trade is booked now (completed) or deferred until the goods move.

INITIAL STATUS:
  buy  → pending_receipt   (we have not received the goods)
  sell → pending_delivery  (we have not handed them over)
  CompleteImmediately → completed, effects posted in the same transaction

EDIT AFTER COMPLETION:
  Editing a completed trade is delete-then-recreate of its ledger effects:
  every active inventory, contact and weight row is reversed, the new
  header and items are saved, and the new effects are posted. All of it
  runs in one database transaction.

DELETE:
  Reverses posted effects, then removes the header and items.
*/
package gold

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

// TransactionInput is the command to create or replace a transaction.
type TransactionInput struct {
	Type                TxType            `json:"type" validate:"required,oneof=buy sell"`
	ContactID           string            `json:"contact_id" validate:"required"`
	Date                generic.TimePoint `json:"-"`
	AdjustmentRials     decimal.Decimal   `json:"adjustment_rials"`
	Notes               string            `json:"notes" validate:"max=1000"`
	CompleteImmediately bool              `json:"complete_immediately"`
	Items               []ItemInput       `json:"items" validate:"min=1"`
}

// TransactionResult reports what was saved.
type TransactionResult struct {
	TransactionID  string
	FinalAmount    generic.Amount
	DeliveryStatus DeliveryStatus
}

type TransactionProcessor struct {
	*env
}

// InitialStatus is the delivery status of a new, not yet exchanged trade.
func InitialStatus(t TxType) DeliveryStatus {
	if t == TxSell {
		return StatusPendingDelivery
	}
	return StatusPendingReceipt
}

// Save creates a transaction, or replaces transaction existingID when it is
// non-empty.
func (p *TransactionProcessor) Save(ctx context.Context, in TransactionInput, existingID string) (TransactionResult, error) {
	tx, err := p.build(ctx, in)
	if err != nil {
		return TransactionResult{}, err
	}

	op := "create_transaction"
	if existingID != "" {
		op = "update_transaction"
	}
	err = p.inTx(ctx, op, func(s Store) error {
		lg := p.ledgers(s)
		tx.Status = InitialStatus(tx.Type)
		tx.ID = p.newID()
		tx.CreatedAt = p.now()

		if existingID != "" {
			old, err := s.GetTransaction(ctx, existingID)
			if err != nil {
				return err
			}
			if old == nil {
				return generic.NotFound("transaction", existingID)
			}
			if old.Status == StatusCancelled {
				return generic.NewStateError(op, string(old.Status), "edit")
			}
			if old.Status == StatusCompleted {
				if err := lg.reverseTransaction(ctx, s, *old); err != nil {
					return err
				}
				tx.Status = StatusCompleted
			}
			tx.ID = old.ID
			tx.CreatedAt = old.CreatedAt
		}
		if in.CompleteImmediately {
			tx.Status = StatusCompleted
		}
		tx.UpdatedAt = p.now()
		for i := range tx.Items {
			tx.Items[i].ID = p.newID()
			tx.Items[i].TransactionID = tx.ID
		}

		if err := s.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		if tx.Status == StatusCompleted {
			return lg.postTransaction(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return TransactionResult{}, err
	}

	p.log.WithFields(logrus.Fields{
		"module": "gold", "op": op, "transaction_id": tx.ID,
		"status": tx.Status, "final_rials": tx.FinalPayableRials.String(),
	}).Info("transaction saved")

	return TransactionResult{
		TransactionID:  tx.ID,
		FinalAmount:    generic.RialsDec(tx.FinalPayableRials),
		DeliveryStatus: tx.Status,
	}, nil
}

// build validates the header, resolves products and prices every line.
// Nothing is written; all field errors are reported together.
func (p *TransactionProcessor) build(ctx context.Context, in TransactionInput) (Transaction, error) {
	verr := structErrors(p.items.validate, "save_transaction", in)
	if in.Date.IsZero() {
		in.Date = p.today()
	}
	if !in.AdjustmentRials.Equal(in.AdjustmentRials.Round(generic.RialPlaces)) {
		verr.Add("adjustment_rials", "integer", "amounts are whole Rial")
	}
	verr.CheckRials("adjustment_rials", in.AdjustmentRials)
	if in.ContactID != "" {
		contact, err := p.store.GetContact(ctx, in.ContactID)
		if err != nil {
			return Transaction{}, generic.WrapPersistence("save_transaction", err)
		}
		if contact == nil {
			verr.Add("contact_id", "exists", "unknown contact "+in.ContactID)
		}
	}

	tx := Transaction{
		Type:            in.Type,
		ContactID:       in.ContactID,
		Date:            in.Date,
		AdjustmentRials: in.AdjustmentRials,
		Notes:           in.Notes,
	}
	final := in.AdjustmentRials
	for i, line := range in.Items {
		prefix := "items[" + strconv.Itoa(i) + "]"
		info, err := p.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return Transaction{}, generic.WrapPersistence("save_transaction", err)
		}
		if info == nil {
			verr.Add(prefix+".product_id", "exists", "unknown product "+line.ProductID)
			continue
		}
		item, err := p.items.Process(line, info.Category)
		if err != nil {
			if lineErr, ok := err.(*generic.ValidationError); ok {
				verr.Merge(prefix, lineErr)
				continue
			}
			return Transaction{}, err
		}
		tx.Items = append(tx.Items, item)
		final = final.Add(item.FinalValueRials)
	}
	if err := verr.OrNil(); err != nil {
		return Transaction{}, err
	}
	if !generic.RialsFit(final) {
		return Transaction{}, generic.NewValidationError("save_transaction", "final_payable_rials", "lte=max_rials", "transaction value is out of range")
	}
	if final.IsNegative() {
		return Transaction{}, generic.NewValidationError("save_transaction", "adjustment_rials", "gte=-total", "adjustment exceeds the transaction value")
	}
	tx.FinalPayableRials = final
	return tx, nil
}

// Delete reverses any posted effects and removes the transaction.
func (p *TransactionProcessor) Delete(ctx context.Context, id string) error {
	err := p.inTx(ctx, "delete_transaction", func(s Store) error {
		tx, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return generic.NotFound("transaction", id)
		}
		if tx.Status == StatusCompleted {
			if err := p.ledgers(s).reverseTransaction(ctx, s, *tx); err != nil {
				return err
			}
		}
		return s.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"module": "gold", "op": "delete_transaction", "transaction_id": id}).Info("transaction deleted")
	return nil
}
