/*
item.go - Per-line pricing (TransactionItemProcessor)

PURPOSE:
  Turns one raw line into a priced TransactionItem: base value, fee
  (manufacturing wage), profit, general tax, VAT and the 750-equivalent
  weight. Pricing depends on the product's base category:

  melted, bullion (assay priced):
    base = weight × purity/1000 × unit price      (price per fine gram)
    or, from a market rate quoted per mithqal on the 750 basis:
    base = weight750 × rate / MithqalFactor

  manufactured (priced as-is):
    base = weight × unit price
    or unit price = rate / MithqalFactor × purity/750

  coin:    base = quantity × unit price; carries coin year and bank flag
  jewelry: base = quantity × unit price; weight is optional, kept for display
           and the 750-equivalent, and needs a purity when given

CHARGES:
  fee    = base × fee%      XOR flat fee
  profit = (base + fee) × profit%  XOR flat profit
  taxes apply to fee + profit (the value added), not to the gold itself

ROUNDING:
  Rial figures round half away from zero to whole Rial. Weights round to
  milligrams (3 places) once, after normalization.
*/
package gold

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
)

// DefaultMithqalFactor converts a per-mithqal market quote to per-gram on
// the 750 basis.
var DefaultMithqalFactor = decimal.RequireFromString("4.3318")

var hundred = decimal.NewFromInt(100)
var thousand = decimal.NewFromInt(1000)

// ItemInput is a raw line as entered by the desk.
type ItemInput struct {
	ProductID       string          `json:"product_id" validate:"required"`
	SettlementMode  SettlementMode  `json:"settlement_mode" validate:"omitempty,oneof=rial in_kind"`
	WeightGrams     decimal.Decimal `json:"weight_grams" validate:"gte=0"`
	Purity          decimal.Decimal `json:"purity" validate:"gte=0,lte=1000"`
	Quantity        decimal.Decimal `json:"quantity" validate:"gte=0"`
	CoinYear        int             `json:"coin_year" validate:"gte=0,lte=9999"`
	BankCoin        bool            `json:"bank_coin"`
	UnitPriceRials  decimal.Decimal `json:"unit_price_rials" validate:"gte=0"`
	MarketRateRials decimal.Decimal `json:"market_rate_rials" validate:"gte=0"`
	FeePercent      decimal.Decimal `json:"fee_percent" validate:"gte=0,lte=100"`
	FeeFlatRials    decimal.Decimal `json:"fee_flat_rials" validate:"gte=0"`
	ProfitPercent   decimal.Decimal `json:"profit_percent" validate:"gte=0,lte=100"`
	ProfitFlatRials decimal.Decimal `json:"profit_flat_rials" validate:"gte=0"`
	ApplyGeneralTax bool            `json:"apply_general_tax"`
	ApplyVAT        bool            `json:"apply_vat"`
}

// ItemConfig holds the rates pricing depends on.
type ItemConfig struct {
	ReferencePurity   decimal.Decimal
	MithqalFactor     decimal.Decimal
	VATPercent        decimal.Decimal
	GeneralTaxPercent decimal.Decimal
}

func DefaultItemConfig() ItemConfig {
	return ItemConfig{
		ReferencePurity:   ReferencePurity,
		MithqalFactor:     DefaultMithqalFactor,
		VATPercent:        decimal.NewFromInt(10),
		GeneralTaxPercent: decimal.Zero,
	}
}

// ItemProcessor prices transaction lines. Safe for concurrent use.
type ItemProcessor struct {
	cfg      ItemConfig
	validate *validator.Validate
}

func NewItemProcessor(cfg ItemConfig) *ItemProcessor {
	return &ItemProcessor{cfg: cfg, validate: NewValidator()}
}

// NewValidator returns a validator that understands decimal.Decimal fields
// and reports json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// structErrors runs tag validation and converts failures to field errors.
func structErrors(v *validator.Validate, op string, s any) *generic.ValidationError {
	verr := &generic.ValidationError{Op: op}
	err := v.Struct(s)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", "invalid", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		verr.Add(fe.Field(), rule, "")
	}
	return verr
}

// Process validates in and prices it under category cat.
func (p *ItemProcessor) Process(in ItemInput, cat ProductCategory) (TransactionItem, error) {
	verr := structErrors(p.validate, "process_item", in)

	if !cat.Base.Valid() {
		verr.Add("category", "oneof", "unknown category "+cat.Base.String())
		return TransactionItem{}, verr
	}
	if in.FeePercent.IsPositive() && in.FeeFlatRials.IsPositive() {
		verr.Add("fee_percent", "excluded_with=fee_flat_rials", "fee is either a percentage or a flat amount")
	}
	if in.ProfitPercent.IsPositive() && in.ProfitFlatRials.IsPositive() {
		verr.Add("profit_percent", "excluded_with=profit_flat_rials", "profit is either a percentage or a flat amount")
	}
	verr.CheckRials("unit_price_rials", in.UnitPriceRials)
	verr.CheckRials("market_rate_rials", in.MarketRateRials)
	verr.CheckRials("fee_flat_rials", in.FeeFlatRials)
	verr.CheckRials("profit_flat_rials", in.ProfitFlatRials)
	if err := verr.OrNil(); err != nil {
		return TransactionItem{}, err
	}

	item := TransactionItem{
		ProductID:       in.ProductID,
		CategoryID:      cat.ID,
		Category:        cat.Base,
		SettlementMode:  in.SettlementMode,
		WeightGrams:     in.WeightGrams,
		Purity:          in.Purity,
		Quantity:        in.Quantity,
		CoinYear:        in.CoinYear,
		BankCoin:        in.BankCoin,
		UnitPriceRials:  in.UnitPriceRials,
		MarketRateRials: in.MarketRateRials,
		FeePercent:      in.FeePercent,
		FeeFlatRials:    in.FeeFlatRials,
		ProfitPercent:   in.ProfitPercent,
		ProfitFlatRials: in.ProfitFlatRials,
		ApplyGeneralTax: in.ApplyGeneralTax,
		ApplyVAT:        in.ApplyVAT,
	}
	if item.SettlementMode == "" {
		item.SettlementMode = SettleRial
	}

	var base decimal.Decimal
	var err error
	switch cat.Base {
	case CategoryMelted, CategoryBullion:
		base, err = p.priceAssay(&item)
	case CategoryManufactured:
		base, err = p.priceManufactured(&item)
	case CategoryCoin:
		base, err = p.priceCoin(&item)
	case CategoryJewelry:
		base, err = p.priceJewelry(&item)
	default:
		return TransactionItem{}, generic.NewValidationError("process_item", "category", "oneof", "unknown category")
	}
	if err != nil {
		return TransactionItem{}, err
	}

	p.applyCharges(&item, base)
	// every charge is non-negative, so the final value bounds the rest
	if !generic.RialsFit(item.FinalValueRials) {
		return TransactionItem{}, generic.NewValidationError("process_item", "final_value_rials", "lte=max_rials", "line value is out of range")
	}
	return item, nil
}

// requireWeight checks weight and purity and fills Weight750.
func (p *ItemProcessor) requireWeight(item *TransactionItem) *generic.ValidationError {
	verr := &generic.ValidationError{Op: "process_item"}
	if !item.WeightGrams.IsPositive() {
		verr.Add("weight_grams", "gt=0", "weight is required for "+item.Category.String())
	}
	if !item.Purity.IsPositive() {
		verr.Add("purity", "gt=0", "purity is required for "+item.Category.String())
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	w750, _ := Normalize(item.WeightGrams, item.Purity, p.cfg.ReferencePurity)
	item.Weight750 = w750.Round(generic.WeightPlaces)
	return nil
}

func (p *ItemProcessor) requirePrice(item *TransactionItem, allowMarket bool) *generic.ValidationError {
	if item.UnitPriceRials.IsPositive() {
		return nil
	}
	if allowMarket && item.MarketRateRials.IsPositive() {
		return nil
	}
	if allowMarket {
		return generic.NewValidationError("process_item", "unit_price_rials", "required_without=market_rate_rials", "unit price or market rate is required")
	}
	return generic.NewValidationError("process_item", "unit_price_rials", "gt=0", "unit price is required")
}

func (p *ItemProcessor) requireQuantity(item *TransactionItem) *generic.ValidationError {
	if !item.Quantity.IsPositive() {
		return generic.NewValidationError("process_item", "quantity", "gt=0", "quantity is required for "+item.Category.String())
	}
	if !item.Quantity.Equal(item.Quantity.Truncate(0)) {
		return generic.NewValidationError("process_item", "quantity", "integer", "quantity must be a whole number of pieces")
	}
	return nil
}

func (p *ItemProcessor) priceAssay(item *TransactionItem) (decimal.Decimal, error) {
	if verr := p.requireWeight(item); verr != nil {
		return decimal.Zero, verr
	}
	if verr := p.requirePrice(item, true); verr != nil {
		return decimal.Zero, verr
	}
	if item.UnitPriceRials.IsPositive() {
		fine := item.WeightGrams.Mul(item.Purity).Div(thousand)
		return fine.Mul(item.UnitPriceRials), nil
	}
	exact, _ := Normalize(item.WeightGrams, item.Purity, p.cfg.ReferencePurity)
	return exact.Mul(item.MarketRateRials).Div(p.cfg.MithqalFactor), nil
}

func (p *ItemProcessor) priceManufactured(item *TransactionItem) (decimal.Decimal, error) {
	if verr := p.requireWeight(item); verr != nil {
		return decimal.Zero, verr
	}
	if verr := p.requirePrice(item, true); verr != nil {
		return decimal.Zero, verr
	}
	price := item.UnitPriceRials
	if !price.IsPositive() {
		price = item.MarketRateRials.Div(p.cfg.MithqalFactor).Mul(item.Purity).Div(p.cfg.ReferencePurity)
	}
	return item.WeightGrams.Mul(price), nil
}

func (p *ItemProcessor) priceCoin(item *TransactionItem) (decimal.Decimal, error) {
	if verr := p.requireQuantity(item); verr != nil {
		return decimal.Zero, verr
	}
	if verr := p.requirePrice(item, false); verr != nil {
		return decimal.Zero, verr
	}
	// coins are tracked by piece; purity does not apply
	item.Weight750 = decimal.Zero
	return item.Quantity.Mul(item.UnitPriceRials), nil
}

func (p *ItemProcessor) priceJewelry(item *TransactionItem) (decimal.Decimal, error) {
	if verr := p.requireQuantity(item); verr != nil {
		return decimal.Zero, verr
	}
	if verr := p.requirePrice(item, false); verr != nil {
		return decimal.Zero, verr
	}
	// weight is optional, but a weight without purity has no 750-equivalent
	switch {
	case item.WeightGrams.IsPositive() && !item.Purity.IsPositive():
		return decimal.Zero, generic.NewValidationError("process_item", "purity", "required_with=weight_grams", "purity is required when a weight is given")
	case item.Purity.IsPositive() && !item.WeightGrams.IsPositive():
		return decimal.Zero, generic.NewValidationError("process_item", "weight_grams", "required_with=purity", "weight is required when a purity is given")
	case item.WeightGrams.IsPositive():
		w750, _ := Normalize(item.WeightGrams, item.Purity, p.cfg.ReferencePurity)
		item.Weight750 = w750.Round(generic.WeightPlaces)
	}
	return item.Quantity.Mul(item.UnitPriceRials), nil
}

func (p *ItemProcessor) applyCharges(item *TransactionItem, base decimal.Decimal) {
	base = base.Round(generic.RialPlaces)

	fee := item.FeeFlatRials
	if item.FeePercent.IsPositive() {
		fee = base.Mul(item.FeePercent).Div(hundred)
	}
	fee = fee.Round(generic.RialPlaces)

	profit := item.ProfitFlatRials
	if item.ProfitPercent.IsPositive() {
		profit = base.Add(fee).Mul(item.ProfitPercent).Div(hundred)
	}
	profit = profit.Round(generic.RialPlaces)

	taxBase := fee.Add(profit)
	generalTax, vat := decimal.Zero, decimal.Zero
	if item.ApplyGeneralTax {
		generalTax = taxBase.Mul(p.cfg.GeneralTaxPercent).Div(hundred).Round(generic.RialPlaces)
	}
	if item.ApplyVAT {
		vat = taxBase.Mul(p.cfg.VATPercent).Div(hundred).Round(generic.RialPlaces)
	}

	item.TotalValueRials = base
	item.FeeAmountRials = fee
	item.ProfitAmountRials = profit
	item.GeneralTaxRials = generalTax
	item.VATRials = vat
	item.FinalValueRials = base.Add(fee).Add(profit).Add(generalTax).Add(vat)
}
