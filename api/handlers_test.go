/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Transaction lifecycle over HTTP (create, complete, double complete)
- Error mapping (400 with details, 404, 409)
- Payments, settlements and balances
- Scenario loading and spreadsheet exports
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/factory"
	"github.com/warp/gold-ledger/gold"
	"github.com/warp/gold-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	engine := gold.NewEngine(store, logger)

	h := NewHandler(engine, store, logger)
	catalog, err := h.Catalogs.ParseCatalog(factory.DefaultCatalogJSON)
	require.NoError(t, err)
	require.NoError(t, h.Catalogs.Seed(context.Background(), engine, catalog))

	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv, h
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var meltedPurchase = map[string]any{
	"type":       "buy",
	"contact_id": "c-supplier",
	"date":       "2025-03-01",
	"items": []map[string]any{{
		"product_id":       "p-melted",
		"weight_grams":     "10",
		"purity":           "700",
		"unit_price_rials": "5000000",
	}},
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestCreateTransaction_ReturnsResult(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/transactions", meltedPurchase)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	res := decode[TransactionResultDTO](t, resp)
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, gold.StatusPendingReceipt, res.DeliveryStatus)
	assert.True(t, res.FinalAmount.Value.Equal(decimal.NewFromInt(35_000_000)))

	resp = do(t, srv, http.MethodGet, "/api/transactions/"+res.TransactionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tx := decode[TransactionDTO](t, resp)
	assert.Equal(t, "2025-03-01", tx.Date)
	assert.Equal(t, gold.TxBuy, tx.Type)
}

func TestCompleteTransaction_SecondTimeConflicts(t *testing.T) {
	// GIVEN: a pending purchase
	// WHEN: receipt is posted twice
	// THEN: 200 then 409, and the supplier is credited once

	srv, _ := newTestServer(t)

	res := decode[TransactionResultDTO](t, do(t, srv, http.MethodPost, "/api/transactions", meltedPurchase))
	path := "/api/transactions/" + res.TransactionID + "/complete"

	resp := do(t, srv, http.MethodPost, path, CompleteRequest{Action: gold.ActionReceipt})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gold.StatusCompleted, decode[TransactionDTO](t, resp).Status)

	resp = do(t, srv, http.MethodPost, path, CompleteRequest{Action: gold.ActionReceipt})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/contacts/c-supplier/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bal := decode[ContactBalanceDTO](t, resp)
	assert.True(t, bal.Balance.Rial.Equal(decimal.NewFromInt(35_000_000)), "got %s", bal.Balance.Rial)
}

func TestCreateTransaction_ValidationDetails(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"type":       "buy",
		"contact_id": "c-supplier",
		"items":      []map[string]any{{"product_id": "p-melted", "unit_price_rials": "5000000"}},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	var fields []string
	for _, d := range body.Details {
		fields = append(fields, d.Field)
	}
	assert.Contains(t, fields, "items[0].weight_grams")
	assert.Contains(t, fields, "items[0].purity")
}

func TestCreateTransaction_BadDate(t *testing.T) {
	srv, _ := newTestServer(t)

	in := map[string]any{}
	for k, v := range meltedPurchase {
		in[k] = v
	}
	in["date"] = "01/03/2025"
	resp := do(t, srv, http.MethodPost, "/api/transactions", in)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "date", decode[ErrorResponse](t, resp).Details[0].Field)
}

func TestCreateTransaction_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/transactions", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransaction_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/transactions/nope", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/transactions/nope", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound,
		do(t, srv, http.MethodPost, "/api/transactions/nope/complete", CompleteRequest{Action: gold.ActionReceipt}).StatusCode)
}

func TestCancelThenDelete(t *testing.T) {
	srv, _ := newTestServer(t)

	res := decode[TransactionResultDTO](t, do(t, srv, http.MethodPost, "/api/transactions", meltedPurchase))

	resp := do(t, srv, http.MethodPost, "/api/transactions/"+res.TransactionID+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gold.StatusCancelled, decode[TransactionDTO](t, resp).Status)

	resp = do(t, srv, http.MethodPost, "/api/transactions/"+res.TransactionID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/api/transactions/"+res.TransactionID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// =============================================================================
// PAYMENTS, SETTLEMENTS, BALANCES
// =============================================================================

func TestRecordPayment_MovesBankBalance(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/payments", map[string]any{
		"direction":         "inflow",
		"amount_rials":      "1000000",
		"method":            "bank",
		"date":              "2025-03-05",
		"paying_contact_id": "c-customer",
		"bank_account_id":   "bank-main",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[CreatedResponse](t, resp)
	assert.NotEmpty(t, created.ID)

	resp = do(t, srv, http.MethodGet, "/api/bank-accounts/bank-main/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bal := decode[BankBalanceDTO](t, resp)
	assert.True(t, bal.Balance.Equal(decimal.NewFromInt(1_000_000)))
	assert.Len(t, bal.Transactions, 1)

	resp = do(t, srv, http.MethodDelete, "/api/payments/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRecordPayment_BankWithoutAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/payments", map[string]any{
		"direction":         "inflow",
		"amount_rials":      "1000000",
		"method":            "card",
		"paying_contact_id": "c-customer",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bank_account_id", decode[ErrorResponse](t, resp).Details[0].Field)
}

func TestRecordSettlement_WeightBalance(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/settlements", map[string]any{
		"contact_id": "c-customer",
		"direction":  "inflow",
		"lines": []map[string]any{
			{"product_id": "p-melted", "weight_grams": "12", "purity": "750"},
			{},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/contacts/c-customer/weight/cat-melted", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	w := decode[WeightBalanceDTO](t, resp)
	assert.True(t, w.Weight750.Equal(decimal.NewFromInt(12)))
}

func TestRecordSettlement_NoLinesConflicts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/settlements", map[string]any{
		"contact_id": "c-customer",
		"direction":  "outflow",
		"lines":      []map[string]any{{}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestContactBalance_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/contacts/nope/balance", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/contacts/c-supplier/balance?as_of=yesterday", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodGet, "/api/contacts/c-supplier/statement?from=2025-03-10&to=2025-03-01", nil).StatusCode)
}

func TestStatement_Lines(t *testing.T) {
	srv, _ := newTestServer(t)

	in := map[string]any{"complete_immediately": true}
	for k, v := range meltedPurchase {
		in[k] = v
	}
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", in).StatusCode)

	resp := do(t, srv, http.MethodGet, "/api/contacts/c-supplier/statement?from=2025-03-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[StatementDTO](t, resp)
	require.Len(t, st.Lines, 1)
	assert.True(t, st.Lines[0].CreditRial.Equal(decimal.NewFromInt(35_000_000)))
	assert.True(t, st.Closing.Rial.Equal(decimal.NewFromInt(35_000_000)))
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalogEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/contacts", map[string]any{"id": "c-new", "name": "Bazaar Shop"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/contacts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]ContactDTO](t, resp), 3)

	resp = do(t, srv, http.MethodPost, "/api/products", map[string]any{"name": "Orphan", "category_id": "cat-nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]ProductDTO](t, resp), 5)
}

// =============================================================================
// ADMIN, SCENARIOS, EXPORTS
// =============================================================================

func TestConsistencyAndRebuild(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/admin/consistency", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[ConsistencyDTO](t, resp).OK)

	resp = do(t, srv, http.MethodPost, "/api/admin/rebuild-balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[map[string]int](t, resp)["contacts_rebuilt"])
}

func TestLoadScenario(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			resp := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			resp = do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, sc.ID, decode[ScenarioDTO](t, resp).ID)

			resp = do(t, srv, http.MethodGet, "/api/admin/consistency", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, decode[ConsistencyDTO](t, resp).OK)
		})
	}

	resp := do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScenario_InKindSaleClosesCustomer(t *testing.T) {
	// GIVEN: the in-kind scenario, where the customer returns gold and pays charges
	// THEN: the customer's rial balance is settled and the bangle weight is reduced

	srv, _ := newTestServer(t)
	require.Equal(t, http.StatusOK,
		do(t, srv, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "in-kind-sale"}).StatusCode)

	resp := do(t, srv, http.MethodGet, "/api/contacts/c-customer/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bal := decode[ContactBalanceDTO](t, resp)
	assert.True(t, bal.Balance.Rial.IsZero(), "got %s", bal.Balance.Rial)
	// 20g owed, 12 + 7.992 returned
	assert.True(t, bal.Balance.Weight750.Equal(decimal.RequireFromString("-0.008")), "got %s", bal.Balance.Weight750)
}

func TestExports_AreSpreadsheets(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/inventory.xlsx", "/api/contacts/c-supplier/statement.xlsx"} {
		resp := do(t, srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, []byte("PK")), "xlsx is a zip archive")
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", nil).StatusCode)
}
