/*
settlement.go - Physical gold settlements (SettlementProcessor)

PURPOSE:
  Records gold handed over in kind to clear a weight-denominated balance.
  Each line is normalized to 750-equivalent grams; the lines are summed and
  posted as ONE contact weight ledger entry for (contact, primary category).

SIGN:
  inflow  (we receive gold)  → change = +total, contact credited
  outflow (we hand gold out) → change = −total, contact debited
  An inflow followed by an equal outflow returns the running balance to
  where it started.

LINES:
  Blank lines (no product, weight or purity) are skipped. Every other line
  must have weight > 0, purity in (0, 1000] and a known product, otherwise
  the whole settlement is rejected with the offending fields. A settlement
  with no remaining lines is a StateError.

  The primary category is the category of the first line's product.

ATOMICITY:
  Header, items, weight entry and contact entry are one database
  transaction.
*/
package gold

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

type SettlementLineInput struct {
	ProductID   string          `json:"product_id"`
	WeightGrams decimal.Decimal `json:"weight_grams"`
	Purity      decimal.Decimal `json:"purity"`
}

func (l SettlementLineInput) blank() bool {
	return l.ProductID == "" && l.WeightGrams.IsZero() && l.Purity.IsZero()
}

// SettlementInput is the command to record a settlement.
type SettlementInput struct {
	ContactID string                `json:"contact_id" validate:"required"`
	Direction Direction             `json:"direction" validate:"required,oneof=inflow outflow"`
	Date      generic.TimePoint     `json:"-"`
	Notes     string                `json:"notes" validate:"max=1000"`
	Lines     []SettlementLineInput `json:"lines"`
}

type SettlementProcessor struct {
	*env
}

// Record validates and posts a settlement and returns its id.
func (p *SettlementProcessor) Record(ctx context.Context, in SettlementInput) (string, error) {
	op := "record_settlement"
	s, err := p.build(ctx, op, in)
	if err != nil {
		return "", err
	}

	err = p.inTx(ctx, op, func(st Store) error {
		lg := p.ledgers(st)
		if err := st.SaveSettlement(ctx, s); err != nil {
			return err
		}
		change := s.TotalWeight750.Mul(s.Direction.Sign())
		key := WeightKey{ContactID: s.ContactID, CategoryID: s.PrimaryCategoryID}
		if _, err := lg.weights.RecordEntry(ctx, key, WeightEventSettlement, change, s.ID); err != nil {
			return err
		}
		_, err := lg.contacts.RecordEntry(ctx, ContactEntry{
			ContactID: s.ContactID,
			Date:      s.Date,
			Weight:    generic.Split(change),
			Ref:       Ref{Type: RefSettlement, ID: s.ID},
			Memo:      "settlement " + string(s.Direction),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	p.log.WithFields(logrus.Fields{
		"module": "gold", "op": op, "settlement_id": s.ID, "contact_id": s.ContactID,
		"direction": s.Direction, "weight750": s.TotalWeight750.String(), "lines": len(s.Items),
	}).Info("settlement recorded")
	return s.ID, nil
}

func (p *SettlementProcessor) build(ctx context.Context, op string, in SettlementInput) (Settlement, error) {
	verr := structErrors(p.items.validate, op, in)
	if in.ContactID != "" {
		c, err := p.store.GetContact(ctx, in.ContactID)
		if err != nil {
			return Settlement{}, generic.WrapPersistence(op, err)
		}
		if c == nil {
			verr.Add("contact_id", "exists", "unknown contact "+in.ContactID)
		}
	}

	s := Settlement{
		ID:             p.newID(),
		ContactID:      in.ContactID,
		Direction:      in.Direction,
		Date:           in.Date,
		Notes:          in.Notes,
		TotalWeight750: decimal.Zero,
		CreatedAt:      p.now(),
	}
	if s.Date.IsZero() {
		s.Date = p.today()
	}

	for i, line := range in.Lines {
		if line.blank() {
			continue
		}
		prefix := "lines[" + strconv.Itoa(i) + "]"
		if !line.WeightGrams.IsPositive() {
			verr.Add(prefix+".weight_grams", "gt=0", "")
		}
		if !line.Purity.IsPositive() || line.Purity.GreaterThan(thousand) {
			verr.Add(prefix+".purity", "gt=0,lte=1000", "")
		}
		if line.ProductID == "" {
			verr.Add(prefix+".product_id", "required", "")
			continue
		}
		info, err := p.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return Settlement{}, generic.WrapPersistence(op, err)
		}
		if info == nil {
			verr.Add(prefix+".product_id", "exists", "unknown product "+line.ProductID)
			continue
		}
		if !line.WeightGrams.IsPositive() || !line.Purity.IsPositive() {
			continue
		}
		w750, err := Normalize(line.WeightGrams, line.Purity, p.items.cfg.ReferencePurity)
		if err != nil {
			return Settlement{}, err
		}
		w750 = w750.Round(generic.WeightPlaces)
		if s.PrimaryCategoryID == "" {
			s.PrimaryCategoryID = info.Category.ID
		}
		s.Items = append(s.Items, SettlementItem{
			ID:           p.newID(),
			SettlementID: s.ID,
			ProductID:    line.ProductID,
			WeightGrams:  line.WeightGrams,
			Purity:       line.Purity,
			Weight750:    w750,
		})
		s.TotalWeight750 = s.TotalWeight750.Add(w750)
	}
	if err := verr.OrNil(); err != nil {
		return Settlement{}, err
	}
	if len(s.Items) == 0 {
		return Settlement{}, generic.NewNoLinesError(op)
	}
	return s, nil
}

// Delete reverses the settlement's weight and contact entries and removes
// it.
func (p *SettlementProcessor) Delete(ctx context.Context, id string) error {
	op := "delete_settlement"
	err := p.inTx(ctx, op, func(st Store) error {
		s, err := st.GetSettlement(ctx, id)
		if err != nil {
			return err
		}
		if s == nil {
			return generic.NotFound("settlement", id)
		}
		lg := p.ledgers(st)

		weightEntries, err := st.ActiveWeightEntries(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range weightEntries {
			if _, err := lg.weights.Reverse(ctx, e); err != nil {
				return err
			}
		}
		entries, err := st.ActiveContactEntries(ctx, Ref{Type: RefSettlement, ID: id})
		if err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := lg.contacts.Reverse(ctx, e, e.Date, "settlement deleted"); err != nil {
				return err
			}
		}
		return st.DeleteSettlement(ctx, id)
	})
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"module": "gold", "op": op, "settlement_id": id}).Info("settlement deleted")
	return nil
}
