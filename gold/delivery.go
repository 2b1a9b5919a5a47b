/*
delivery.go - Delivery status machine (DeliveryMachine)

STATES:
  pending_receipt ──receipt──▶ completed     (buy only)
  pending_delivery ─delivery─▶ completed     (sell only)
  pending_*  ──cancel──▶ cancelled
  completed, cancelled: terminal

COMPLETION:
  Moving to completed posts the transaction's inventory and contact ledger
  effects in the same database transaction as the status change. The status
  update is conditional on the status read (compare-and-set), so a second
  completion of the same transaction changes nothing and reports false.
*/
package gold

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

type DeliveryMachine struct {
	*env
}

// transitionFrom returns the status action may complete from, for a
// transaction of type t.
func transitionFrom(t TxType, action DeliveryAction) (DeliveryStatus, bool) {
	switch {
	case action == ActionReceipt && t == TxBuy:
		return StatusPendingReceipt, true
	case action == ActionDelivery && t == TxSell:
		return StatusPendingDelivery, true
	}
	return "", false
}

// Complete applies action to transaction id. It returns (true, nil) when
// the transaction was completed and its effects posted. A transition the
// current state does not allow returns (false, *StateError) and writes
// nothing.
func (m *DeliveryMachine) Complete(ctx context.Context, id string, action DeliveryAction) (bool, error) {
	op := "complete_delivery"
	if action != ActionReceipt && action != ActionDelivery {
		return false, generic.NewValidationError(op, "action", "oneof=receipt delivery", "")
	}

	var tx *Transaction
	err := m.inTx(ctx, op, func(s Store) error {
		var err error
		tx, err = s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return generic.NotFound("transaction", id)
		}
		from, ok := transitionFrom(tx.Type, action)
		if !ok || tx.Status != from {
			return generic.NewStateError(op, string(tx.Status), string(action))
		}
		changed, err := s.UpdateTransactionStatus(ctx, id, from, StatusCompleted)
		if err != nil {
			return err
		}
		if !changed {
			// completed concurrently between the read and the update
			return generic.NewStateError(op, string(StatusCompleted), string(action))
		}
		tx.Status = StatusCompleted
		return m.ledgers(s).postTransaction(ctx, *tx)
	})
	if err != nil {
		return false, err
	}

	m.log.WithFields(logrus.Fields{
		"module": "gold", "op": op, "transaction_id": id,
		"action": action, "items": len(tx.Items),
	}).Info("delivery completed")
	return true, nil
}

// Cancel moves a pending transaction to cancelled. Nothing was posted for
// it, so nothing is reversed.
func (m *DeliveryMachine) Cancel(ctx context.Context, id string) error {
	op := "cancel_transaction"
	err := m.inTx(ctx, op, func(s Store) error {
		tx, err := s.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return generic.NotFound("transaction", id)
		}
		if !tx.Status.IsPending() {
			return generic.NewStateError(op, string(tx.Status), "cancel")
		}
		changed, err := s.UpdateTransactionStatus(ctx, id, tx.Status, StatusCancelled)
		if err != nil {
			return err
		}
		if !changed {
			return generic.NewStateError(op, "changed concurrently", "cancel")
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"module": "gold", "op": op, "transaction_id": id}).Info("transaction cancelled")
	return nil
}
