/*
handlers.go - HTTP API handlers for the gold ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to gold.Engine.

ENDPOINTS:
  Transactions:
    GET    /api/transactions                   List (optional ?contact_id=)
    POST   /api/transactions                   Create a buy or sell
    GET    /api/transactions/{id}              Get with priced items
    PUT    /api/transactions/{id}              Replace (reverses posted effects first)
    DELETE /api/transactions/{id}              Reverse effects and delete
    POST   /api/transactions/{id}/complete     Complete receipt or delivery
    POST   /api/transactions/{id}/cancel       Cancel a pending transaction

  Payments and settlements:
    POST   /api/payments                       Record a cash movement
    DELETE /api/payments/{id}                  Reverse and delete
    POST   /api/settlements                    Record physical gold in or out
    DELETE /api/settlements/{id}               Reverse and delete

  Balances:
    GET    /api/contacts/{id}/balance          ?as_of=YYYY-MM-DD
    GET    /api/contacts/{id}/weight/{categoryId}
    GET    /api/contacts/{id}/statement        ?from=&to=
    GET    /api/contacts/{id}/statement.xlsx
    GET    /api/products/{id}/inventory
    GET    /api/inventory.xlsx
    GET    /api/bank-accounts/{id}/balance

  Catalog:
    GET/POST /api/contacts, /api/categories, /api/products, /api/bank-accounts

  Admin:
    GET    /api/admin/consistency              Verify derived balances
    POST   /api/admin/rebuild-balances         Rebuild contact balance cache

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Engine: every ledger operation
  - Store: only for scenario resets
  - Catalogs: JSON catalog parsing and seeding

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (field details included)
  - 404: Resource not found
  - 409: State forbids the operation (double completion, no valid lines)
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - export.go: Spreadsheet exports
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/config"
	"github.com/warp/gold-ledger/factory"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
	"github.com/warp/gold-ledger/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *gold.Engine
	Store    *sqlite.Store
	Catalogs *factory.CatalogFactory
	Log      *logrus.Logger

	// Scheduler is optional; when set its last report can be served.
	Scheduler *ConsistencyScheduler

	mu              sync.Mutex
	currentScenario string
}

func NewHandler(engine *gold.Engine, store *sqlite.Store, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		Engine:   engine,
		Store:    store,
		Catalogs: factory.NewCatalogFactory(),
		Log:      logger,
	}
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// ListTransactions returns transactions, newest first.
// GET /api/transactions?contact_id=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Engine.ListTransactions(r.Context(), r.URL.Query().Get("contact_id"))
	if err != nil {
		h.respondError(w, "ListTransactions", err)
		return
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction prices and saves a new transaction.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	h.saveTransaction(w, r, "", http.StatusCreated)
}

// UpdateTransaction replaces a transaction. A completed transaction has its
// effects reversed and reposted.
// PUT /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	h.saveTransaction(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (h *Handler) saveTransaction(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := dateParam("save_transaction", "date", req.Date)
	if err != nil {
		h.respondError(w, "SaveTransaction", err)
		return
	}
	req.TransactionInput.Date = date

	res, err := h.Engine.CreateOrUpdateTransaction(r.Context(), req.TransactionInput, id)
	if err != nil {
		h.respondError(w, "SaveTransaction", err)
		return
	}
	writeJSON(w, status, TransactionResultDTO{
		TransactionID:  res.TransactionID,
		FinalAmount:    toAmountDTO(res.FinalAmount),
		DeliveryStatus: res.DeliveryStatus,
	})
}

// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Engine.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "GetTransaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// DeleteTransaction reverses every posted effect, then removes the rows.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "DeleteTransaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTransaction applies a receipt or delivery action.
// POST /api/transactions/{id}/complete
func (h *Handler) CompleteTransaction(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Engine.CompleteDelivery(r.Context(), id, req.Action); err != nil {
		h.respondError(w, "CompleteTransaction", err)
		return
	}
	h.writeTransaction(w, r, id)
}

// CancelTransaction moves a pending transaction to cancelled.
// POST /api/transactions/{id}/cancel
func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.CancelTransaction(r.Context(), id); err != nil {
		h.respondError(w, "CancelTransaction", err)
		return
	}
	h.writeTransaction(w, r, id)
}

func (h *Handler) writeTransaction(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.Engine.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, "GetTransaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx))
}

// =============================================================================
// PAYMENT AND SETTLEMENT ENDPOINTS
// =============================================================================

// POST /api/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := dateParam("record_payment", "date", req.Date)
	if err != nil {
		h.respondError(w, "RecordPayment", err)
		return
	}
	req.PaymentInput.Date = date

	id, err := h.Engine.RecordPayment(r.Context(), req.PaymentInput)
	if err != nil {
		h.respondError(w, "RecordPayment", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeletePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "DeletePayment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/settlements
func (h *Handler) RecordSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := dateParam("record_settlement", "date", req.Date)
	if err != nil {
		h.respondError(w, "RecordSettlement", err)
		return
	}
	req.SettlementInput.Date = date

	id, err := h.Engine.RecordSettlement(r.Context(), req.SettlementInput)
	if err != nil {
		h.respondError(w, "RecordSettlement", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// DELETE /api/settlements/{id}
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteSettlement(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "DeleteSettlement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BALANCE ENDPOINTS
// =============================================================================

// GetContactBalance returns the three-unit position, optionally as of a date.
// GET /api/contacts/{id}/balance?as_of=YYYY-MM-DD
func (h *Handler) GetContactBalance(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "id")
	asOfParam := r.URL.Query().Get("as_of")

	var asOf *generic.TimePoint
	if asOfParam != "" {
		tp, err := dateParam("get_contact_balance", "as_of", asOfParam)
		if err != nil {
			h.respondError(w, "GetContactBalance", err)
			return
		}
		asOf = &tp
	}

	pos, err := h.Engine.GetContactBalance(r.Context(), contactID, asOf)
	if err != nil {
		h.respondError(w, "GetContactBalance", err)
		return
	}
	writeJSON(w, http.StatusOK, ContactBalanceDTO{ContactID: contactID, AsOf: asOfParam, Balance: toPositionDTO(pos)})
}

// GET /api/contacts/{id}/weight/{categoryId}
func (h *Handler) GetWeightBalance(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "id")
	categoryID := chi.URLParam(r, "categoryId")
	amount, err := h.Engine.GetWeightBalance(r.Context(), contactID, categoryID)
	if err != nil {
		h.respondError(w, "GetWeightBalance", err)
		return
	}
	writeJSON(w, http.StatusOK, WeightBalanceDTO{ContactID: contactID, CategoryID: categoryID, Weight750: amount.Value})
}

// GetStatement returns the contact's entries in [from, to] with running
// balances. to defaults to today; an empty from starts at the first entry.
// GET /api/contacts/{id}/statement?from=&to=
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.statement(r)
	if err != nil {
		h.respondError(w, "GetStatement", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

func (h *Handler) statement(r *http.Request) (gold.Statement, error) {
	period, err := periodParams(r)
	if err != nil {
		return gold.Statement{}, err
	}
	return h.Engine.ContactStatement(r.Context(), chi.URLParam(r, "id"), period)
}

// GET /api/products/{id}/inventory
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.GetInventoryBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "GetInventory", err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(b))
}

// GetBankBalance returns the current balance and the account history.
// GET /api/bank-accounts/{id}/balance
func (h *Handler) GetBankBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	balance, err := h.Engine.GetBankBalance(r.Context(), accountID)
	if err != nil {
		h.respondError(w, "GetBankBalance", err)
		return
	}
	txs, err := h.Engine.BankTransactions(r.Context(), accountID)
	if err != nil {
		h.respondError(w, "GetBankBalance", err)
		return
	}
	writeJSON(w, http.StatusOK, BankBalanceDTO{
		AccountID:    accountID,
		Balance:      balance.Value,
		Transactions: toBankTransactionDTOs(txs),
	})
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

// GET /api/contacts
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Engine.ListContacts(r.Context())
	if err != nil {
		h.respondError(w, "ListContacts", err)
		return
	}
	dtos := make([]ContactDTO, 0, len(contacts))
	for _, c := range contacts {
		dtos = append(dtos, ContactDTO{ID: c.ID, Name: c.Name, Phone: c.Phone})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/contacts
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req factory.ContactJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Engine.AddContact(r.Context(), gold.Contact{ID: req.ID, Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.respondError(w, "CreateContact", err)
		return
	}
	writeJSON(w, http.StatusCreated, ContactDTO{ID: c.ID, Name: c.Name, Phone: c.Phone})
}

// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Engine.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, "ListCategories", err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		dtos = append(dtos, CategoryDTO{ID: c.ID, Name: c.Name, BaseCategory: c.Base})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req factory.CategoryJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// an unknown name stays CategoryUnknown and AddCategory rejects it
	base, _ := gold.ParseCategory(req.BaseCategory)
	c, err := h.Engine.AddCategory(r.Context(), gold.ProductCategory{ID: req.ID, Name: req.Name, Base: base})
	if err != nil {
		h.respondError(w, "CreateCategory", err)
		return
	}
	writeJSON(w, http.StatusCreated, CategoryDTO{ID: c.ID, Name: c.Name, BaseCategory: c.Base})
}

// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Engine.ListProducts(r.Context())
	if err != nil {
		h.respondError(w, "ListProducts", err)
		return
	}
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, ProductDTO{
			ID:            p.Product.ID,
			Name:          p.Product.Name,
			CategoryID:    p.Product.CategoryID,
			BaseCategory:  p.Category.Base,
			DefaultPurity: p.Product.DefaultPurity,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req factory.ProductJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	p, err := h.Engine.AddProduct(r.Context(), gold.Product{
		ID: req.ID, Name: req.Name, CategoryID: req.CategoryID, DefaultPurity: req.DefaultPurity,
	})
	if err != nil {
		h.respondError(w, "CreateProduct", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductDTO{
		ID: p.ID, Name: p.Name, CategoryID: p.CategoryID, DefaultPurity: p.DefaultPurity,
	})
}

// GET /api/bank-accounts
func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Engine.ListBankAccounts(r.Context())
	if err != nil {
		h.respondError(w, "ListBankAccounts", err)
		return
	}
	dtos := make([]BankAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toBankAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/bank-accounts
func (h *Handler) CreateBankAccount(w http.ResponseWriter, r *http.Request) {
	var req factory.BankAccountJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	a, err := h.Engine.AddBankAccount(r.Context(), gold.BankAccount{
		ID: req.ID, Name: req.Name, AccountNumber: req.AccountNumber, InitialBalance: req.InitialBalance,
	})
	if err != nil {
		h.respondError(w, "CreateBankAccount", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBankAccountDTO(a))
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// CheckConsistency re-derives every cached balance and reports drift.
// With ?cached=true the scheduler's last report is returned when there is one.
// GET /api/admin/consistency
func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("cached") == "true" && h.Scheduler != nil {
		if last := h.Scheduler.LastReport(); last != nil {
			writeJSON(w, http.StatusOK, toConsistencyDTO(*last))
			return
		}
	}
	report, err := h.Engine.VerifyConsistency(r.Context())
	if err != nil {
		h.respondError(w, "CheckConsistency", err)
		return
	}
	writeJSON(w, http.StatusOK, toConsistencyDTO(report))
}

// POST /api/admin/rebuild-balances
func (h *Handler) RebuildBalances(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.RebuildContactBalances(r.Context())
	if err != nil {
		h.respondError(w, "RebuildBalances", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"contacts_rebuilt": n})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Error = message + ": " + err.Error()
	}
	writeJSON(w, status, resp)
}

// respondError maps an engine error to its status code. Only unexpected
// failures are logged here; rejected requests are logged by the engine.
func (h *Handler) respondError(w http.ResponseWriter, funcName string, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Details: verr.Fields})
	case generic.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case generic.IsStateError(err):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		config.LogError(h.Log, "api", funcName, nil, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// dateParam parses a YYYY-MM-DD value; empty yields the zero TimePoint.
func dateParam(op, field, value string) (generic.TimePoint, error) {
	if value == "" {
		return generic.TimePoint{}, nil
	}
	tp, err := generic.ParseDate(value)
	if err != nil {
		return generic.TimePoint{}, generic.NewValidationError(op, field, "date", "expected YYYY-MM-DD")
	}
	return tp, nil
}

func periodParams(r *http.Request) (generic.Period, error) {
	q := r.URL.Query()
	from, err := dateParam("contact_statement", "from", q.Get("from"))
	if err != nil {
		return generic.Period{}, err
	}
	to, err := dateParam("contact_statement", "to", q.Get("to"))
	if err != nil {
		return generic.Period{}, err
	}
	if to.IsZero() {
		to = generic.Today()
	}
	return generic.Period{Start: from, End: to}, nil
}
