package gold

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/gold-ledger/generic"
)

// =============================================================================
// CATALOG - Contacts, categories, products, bank accounts
// =============================================================================

// AddContact stores c, assigning an id when it has none.
func (e *Engine) AddContact(ctx context.Context, c Contact) (Contact, error) {
	if c.Name == "" {
		return Contact{}, generic.NewValidationError("add_contact", "name", "required", "")
	}
	if c.ID == "" {
		c.ID = e.env.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = e.env.now()
	}
	if err := e.env.store.SaveContact(ctx, c); err != nil {
		return Contact{}, generic.WrapPersistence("add_contact", err)
	}
	e.env.log.WithFields(logrus.Fields{"module": "gold", "op": "add_contact", "contact_id": c.ID}).Debug("contact saved")
	return c, nil
}

func (e *Engine) AddCategory(ctx context.Context, c ProductCategory) (ProductCategory, error) {
	verr := &generic.ValidationError{Op: "add_category"}
	if c.Name == "" {
		verr.Add("name", "required", "")
	}
	if !c.Base.Valid() {
		verr.Add("base_category", "oneof=melted manufactured coin bullion jewelry", "")
	}
	if err := verr.OrNil(); err != nil {
		return ProductCategory{}, err
	}
	if c.ID == "" {
		c.ID = e.env.newID()
	}
	if err := e.env.store.SaveCategory(ctx, c); err != nil {
		return ProductCategory{}, generic.WrapPersistence("add_category", err)
	}
	return c, nil
}

func (e *Engine) AddProduct(ctx context.Context, p Product) (Product, error) {
	verr := &generic.ValidationError{Op: "add_product"}
	if p.Name == "" {
		verr.Add("name", "required", "")
	}
	if p.DefaultPurity.IsNegative() || p.DefaultPurity.GreaterThan(thousand) {
		verr.Add("default_purity", "gte=0,lte=1000", "")
	}
	if p.CategoryID == "" {
		verr.Add("category_id", "required", "")
	} else {
		cat, err := e.env.store.GetCategory(ctx, p.CategoryID)
		if err != nil {
			return Product{}, generic.WrapPersistence("add_product", err)
		}
		if cat == nil {
			verr.Add("category_id", "exists", "unknown category "+p.CategoryID)
		}
	}
	if err := verr.OrNil(); err != nil {
		return Product{}, err
	}
	if p.ID == "" {
		p.ID = e.env.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = e.env.now()
	}
	if err := e.env.store.SaveProduct(ctx, p); err != nil {
		return Product{}, generic.WrapPersistence("add_product", err)
	}
	return p, nil
}

// AddBankAccount opens an account whose current balance starts at its
// initial balance.
func (e *Engine) AddBankAccount(ctx context.Context, a BankAccount) (BankAccount, error) {
	verr := &generic.ValidationError{Op: "add_bank_account"}
	if a.Name == "" {
		verr.Add("name", "required", "")
	}
	if !a.InitialBalance.Equal(a.InitialBalance.Round(generic.RialPlaces)) {
		verr.Add("initial_balance", "integer", "amounts are whole Rial")
	}
	verr.CheckRials("initial_balance", a.InitialBalance)
	if err := verr.OrNil(); err != nil {
		return BankAccount{}, err
	}
	if a.ID == "" {
		a.ID = e.env.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = e.env.now()
	}
	a.CurrentBalance = a.InitialBalance
	if err := e.env.store.SaveBankAccount(ctx, a); err != nil {
		return BankAccount{}, generic.WrapPersistence("add_bank_account", err)
	}
	return a, nil
}

func (e *Engine) ListContacts(ctx context.Context) ([]Contact, error) {
	cs, err := e.env.store.ListContacts(ctx)
	return cs, generic.WrapPersistence("list_contacts", err)
}

func (e *Engine) ListCategories(ctx context.Context) ([]ProductCategory, error) {
	cs, err := e.env.store.ListCategories(ctx)
	return cs, generic.WrapPersistence("list_categories", err)
}

func (e *Engine) ListProducts(ctx context.Context) ([]ProductInfo, error) {
	ps, err := e.env.store.ListProducts(ctx)
	return ps, generic.WrapPersistence("list_products", err)
}

func (e *Engine) ListBankAccounts(ctx context.Context) ([]BankAccount, error) {
	as, err := e.env.store.ListBankAccounts(ctx)
	return as, generic.WrapPersistence("list_bank_accounts", err)
}

func (e *Engine) GetContact(ctx context.Context, id string) (*Contact, error) {
	c, err := e.env.store.GetContact(ctx, id)
	if err != nil {
		return nil, generic.WrapPersistence("get_contact", err)
	}
	if c == nil {
		return nil, generic.NotFound("contact", id)
	}
	return c, nil
}
