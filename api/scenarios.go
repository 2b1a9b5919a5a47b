/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	desk activity. Each scenario seeds the default catalog and then runs
	trades, payments and settlements through the engine, so every ledger
	row is produced exactly as production traffic would produce it.

AVAILABLE SCENARIOS:

	catalog-only:      Default catalog, no activity
	melted-purchase:   Melted gold bought from a refinery and paid by bank
	in-kind-sale:      Bangle sold in kind, customer settles with melted gold
	coin-desk:         Coins bought in, a coin sale still awaiting delivery

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the catalog from factory.DefaultCatalogJSON
 3. Post the scenario's operations, dated over the last two weeks

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "in-kind-sale"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/catalog.go: Default catalog
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/factory"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(h *Handler, ctx context.Context) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "catalog-only",
			Name:        "Catalog Only",
			Description: "Default categories, products, contacts and bank account",
		},
		load: func(h *Handler, ctx context.Context) error { return nil },
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "melted-purchase",
			Name:        "Melted Gold Purchase",
			Description: "10g of 700 melted gold bought at 5,000,000/g fine, paid in two bank transfers",
		},
		load: (*Handler).loadMeltedPurchase,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "in-kind-sale",
			Name:        "In-Kind Sale",
			Description: "18k bangle sold against gold; the customer brings melted gold to settle",
		},
		load: (*Handler).loadInKindSale,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "coin-desk",
			Name:        "Coin Desk",
			Description: "Emami coins bought and a coin sale still pending delivery",
		},
		load: (*Handler).loadCoinDesk,
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		dtos = append(dtos, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		h.respondError(w, "LoadScenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var sc *scenario
	for i := range scenarios {
		if scenarios[i].ID == id {
			sc = &scenarios[i]
		}
	}
	if sc == nil {
		return generic.NotFound("scenario", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	h.currentScenario = ""

	catalog, err := h.Catalogs.ParseCatalog(factory.DefaultCatalogJSON)
	if err != nil {
		return err
	}
	if err := h.Catalogs.Seed(ctx, h.Engine, catalog); err != nil {
		return err
	}
	if err := sc.load(h, ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}

	h.currentScenario = id
	h.Log.WithFields(logrus.Fields{"module": "api", "scenario": id}).Info("scenario loaded")
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func daysAgo(n int) generic.TimePoint {
	return generic.Today().AddDays(-n)
}

func (h *Handler) loadMeltedPurchase(ctx context.Context) error {
	// 10g at 700 fine, 5,000,000 per fine gram: 35,000,000 owed to the refinery
	res, err := h.Engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type:                gold.TxBuy,
		ContactID:           "c-supplier",
		Date:                daysAgo(14),
		CompleteImmediately: true,
		Items: []gold.ItemInput{{
			ProductID:      "p-melted",
			WeightGrams:    decimal.NewFromInt(10),
			Purity:         decimal.NewFromInt(700),
			UnitPriceRials: decimal.NewFromInt(5_000_000),
		}},
	}, "")
	if err != nil {
		return err
	}

	for i, amount := range []int64{20_000_000, 15_000_000} {
		_, err := h.Engine.RecordPayment(ctx, gold.PaymentInput{
			Direction:            gold.Outflow,
			AmountRials:          decimal.NewFromInt(amount),
			Method:               gold.MethodBank,
			Date:                 daysAgo(10 - 5*i),
			ReceivingContactID:   "c-supplier",
			BankAccountID:        "bank-main",
			RelatedTransactionID: res.TransactionID,
			Details:              "refinery transfer",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadInKindSale(ctx context.Context) error {
	// the customer owes 20g of 18k in kind plus the making charge in Rial
	res, err := h.Engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type:      gold.TxSell,
		ContactID: "c-customer",
		Date:      daysAgo(12),
		Items: []gold.ItemInput{{
			ProductID:      "p-bangle",
			SettlementMode: gold.SettleInKind,
			WeightGrams:    decimal.NewFromInt(20),
			Purity:         decimal.NewFromInt(750),
			UnitPriceRials: decimal.NewFromInt(4_500_000),
			FeePercent:     decimal.NewFromInt(7),
			ApplyVAT:       true,
		}},
	}, "")
	if err != nil {
		return err
	}
	if _, err := h.Engine.CompleteDelivery(ctx, res.TransactionID, gold.ActionDelivery); err != nil {
		return err
	}

	_, err = h.Engine.RecordSettlement(ctx, gold.SettlementInput{
		ContactID: "c-customer",
		Direction: gold.Inflow,
		Date:      daysAgo(6),
		Notes:     "old gold brought in",
		Lines: []gold.SettlementLineInput{
			{ProductID: "p-melted", WeightGrams: decimal.NewFromInt(12), Purity: decimal.NewFromInt(750)},
			{ProductID: "p-melted", WeightGrams: decimal.NewFromInt(9), Purity: decimal.NewFromInt(666)},
		},
	})
	if err != nil {
		return err
	}

	tx, err := h.Engine.GetTransaction(ctx, res.TransactionID)
	if err != nil {
		return err
	}
	charges := decimal.Zero
	for _, it := range tx.Items {
		charges = charges.Add(it.ChargesRials())
	}
	_, err = h.Engine.RecordPayment(ctx, gold.PaymentInput{
		Direction:            gold.Inflow,
		AmountRials:          charges,
		Method:               gold.MethodCash,
		Date:                 daysAgo(6),
		PayingContactID:      "c-customer",
		RelatedTransactionID: res.TransactionID,
	})
	return err
}

func (h *Handler) loadCoinDesk(ctx context.Context) error {
	_, err := h.Engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type:                gold.TxBuy,
		ContactID:           "c-supplier",
		Date:                daysAgo(9),
		CompleteImmediately: true,
		Items: []gold.ItemInput{{
			ProductID:      "p-emami",
			Quantity:       decimal.NewFromInt(10),
			CoinYear:       1403,
			BankCoin:       true,
			UnitPriceRials: decimal.NewFromInt(480_000_000),
		}},
	}, "")
	if err != nil {
		return err
	}

	_, err = h.Engine.CreateOrUpdateTransaction(ctx, gold.TransactionInput{
		Type:      gold.TxSell,
		ContactID: "c-customer",
		Date:      daysAgo(2),
		Notes:     "collect Saturday",
		Items: []gold.ItemInput{{
			ProductID:       "p-emami",
			Quantity:        decimal.NewFromInt(2),
			CoinYear:        1403,
			BankCoin:        true,
			UnitPriceRials:  decimal.NewFromInt(495_000_000),
			ProfitFlatRials: decimal.NewFromInt(2_000_000),
		}},
	}, "")
	return err
}
