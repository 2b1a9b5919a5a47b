/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog definitions (product categories, products,
  contacts, bank accounts) into gold records and seeds them through the
  engine. The desk can define its catalog in a file without code changes.

JSON SCHEMA:
  {
    "categories": [
      {"id": "cat-melted", "name": "Melted gold", "base_category": "melted"}
    ],
    "products": [
      {"id": "p-melted-750", "name": "Melted 18k", "category_id": "cat-melted",
       "default_purity": "750"}
    ],
    "contacts": [
      {"id": "c-ali", "name": "Ali Rezaei", "phone": "+98 912 000 0000"}
    ],
    "bank_accounts": [
      {"id": "bank-a", "name": "Mellat", "account_number": "6104-...",
       "initial_balance": "0"}
    ]
  }

  Numbers are JSON strings or numbers; both parse exactly into decimals.

KEY FEATURES:
  - Validates every record with struct tags before anything is written
  - Reports all problems at once with their JSON path
  - Seeds categories before products so references resolve

USAGE:
  f := factory.NewCatalogFactory()
  catalog, err := f.ParseCatalog(jsonString)
  if err != nil { ... }
  err = f.Seed(ctx, engine, catalog)

SEE ALSO:
  - gold/catalog.go: Engine catalog operations
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a catalog.
type CatalogJSON struct {
	Categories   []CategoryJSON    `json:"categories"`
	Products     []ProductJSON     `json:"products"`
	Contacts     []ContactJSON     `json:"contacts"`
	BankAccounts []BankAccountJSON `json:"bank_accounts"`
}

type CategoryJSON struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	BaseCategory string `json:"base_category" validate:"required,oneof=melted manufactured coin bullion jewelry"`
}

type ProductJSON struct {
	ID            string          `json:"id" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	CategoryID    string          `json:"category_id" validate:"required"`
	DefaultPurity decimal.Decimal `json:"default_purity" validate:"gte=0,lte=1000"`
}

type ContactJSON struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone,omitempty"`
}

type BankAccountJSON struct {
	ID             string          `json:"id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	AccountNumber  string          `json:"account_number,omitempty"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// Catalog is a parsed, validated catalog ready to seed.
type Catalog struct {
	Categories   []gold.ProductCategory
	Products     []gold.Product
	Contacts     []gold.Contact
	BankAccounts []gold.BankAccount
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogFactory converts JSON catalogs to gold records.
type CatalogFactory struct {
	validate *validator.Validate
}

func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{validate: gold.NewValidator()}
}

// ParseCatalog parses and validates a JSON catalog.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON validates cj and converts it. Every invalid record is reported.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (*Catalog, error) {
	verr := &generic.ValidationError{Op: "parse_catalog"}
	c := &Catalog{}

	known := make(map[string]bool)
	for i, cat := range cj.Categories {
		if !f.check(verr, "categories", i, cat) {
			continue
		}
		base, _ := gold.ParseCategory(cat.BaseCategory)
		c.Categories = append(c.Categories, gold.ProductCategory{ID: cat.ID, Name: cat.Name, Base: base})
		known[cat.ID] = true
	}
	for i, p := range cj.Products {
		if !f.check(verr, "products", i, p) {
			continue
		}
		if !known[p.CategoryID] {
			verr.Add(path("products", i)+".category_id", "exists", "category "+p.CategoryID+" is not in the catalog")
			continue
		}
		c.Products = append(c.Products, gold.Product{
			ID: p.ID, Name: p.Name, CategoryID: p.CategoryID, DefaultPurity: p.DefaultPurity,
		})
	}
	for i, ct := range cj.Contacts {
		if !f.check(verr, "contacts", i, ct) {
			continue
		}
		c.Contacts = append(c.Contacts, gold.Contact{ID: ct.ID, Name: ct.Name, Phone: ct.Phone})
	}
	for i, a := range cj.BankAccounts {
		if !f.check(verr, "bank_accounts", i, a) {
			continue
		}
		c.BankAccounts = append(c.BankAccounts, gold.BankAccount{
			ID: a.ID, Name: a.Name, AccountNumber: a.AccountNumber, InitialBalance: a.InitialBalance,
		})
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return c, nil
}

// check validates one record and merges its failures under its JSON path.
func (f *CatalogFactory) check(verr *generic.ValidationError, list string, i int, record any) bool {
	err := f.validate.Struct(record)
	if err == nil {
		return true
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.Add(path(list, i), "invalid", err.Error())
		return false
	}
	for _, fe := range ve {
		verr.Add(path(list, i)+"."+fe.Field(), fe.Tag(), "")
	}
	return false
}

func path(list string, i int) string {
	return list + "[" + strconv.Itoa(i) + "]"
}

// ToJSON converts catalog records back to their JSON form.
func (f *CatalogFactory) ToJSON(c *Catalog) CatalogJSON {
	var cj CatalogJSON
	for _, cat := range c.Categories {
		cj.Categories = append(cj.Categories, CategoryJSON{ID: cat.ID, Name: cat.Name, BaseCategory: cat.Base.String()})
	}
	for _, p := range c.Products {
		cj.Products = append(cj.Products, ProductJSON{
			ID: p.ID, Name: p.Name, CategoryID: p.CategoryID, DefaultPurity: p.DefaultPurity,
		})
	}
	for _, ct := range c.Contacts {
		cj.Contacts = append(cj.Contacts, ContactJSON{ID: ct.ID, Name: ct.Name, Phone: ct.Phone})
	}
	for _, a := range c.BankAccounts {
		cj.BankAccounts = append(cj.BankAccounts, BankAccountJSON{
			ID: a.ID, Name: a.Name, AccountNumber: a.AccountNumber, InitialBalance: a.InitialBalance,
		})
	}
	return cj
}

// =============================================================================
// SEEDING
// =============================================================================

// Seeder is the part of the engine that stores catalog records.
type Seeder interface {
	AddCategory(ctx context.Context, c gold.ProductCategory) (gold.ProductCategory, error)
	AddProduct(ctx context.Context, p gold.Product) (gold.Product, error)
	AddContact(ctx context.Context, c gold.Contact) (gold.Contact, error)
	AddBankAccount(ctx context.Context, a gold.BankAccount) (gold.BankAccount, error)
}

// Seed stores c, categories first.
func (f *CatalogFactory) Seed(ctx context.Context, s Seeder, c *Catalog) error {
	for _, cat := range c.Categories {
		if _, err := s.AddCategory(ctx, cat); err != nil {
			return fmt.Errorf("seed category %s: %w", cat.ID, err)
		}
	}
	for _, p := range c.Products {
		if _, err := s.AddProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, ct := range c.Contacts {
		if _, err := s.AddContact(ctx, ct); err != nil {
			return fmt.Errorf("seed contact %s: %w", ct.ID, err)
		}
	}
	for _, a := range c.BankAccounts {
		if _, err := s.AddBankAccount(ctx, a); err != nil {
			return fmt.Errorf("seed bank account %s: %w", a.ID, err)
		}
	}
	return nil
}

// =============================================================================
// PRESET CATALOG
// =============================================================================

// DefaultCatalogJSON is a small desk catalog: one category per base
// category, one product each, two contacts and one bank account.
const DefaultCatalogJSON = `{
  "categories": [
    {"id": "cat-melted", "name": "Melted gold", "base_category": "melted"},
    {"id": "cat-manufactured", "name": "Manufactured gold", "base_category": "manufactured"},
    {"id": "cat-coin", "name": "Coins", "base_category": "coin"},
    {"id": "cat-bullion", "name": "Bullion", "base_category": "bullion"},
    {"id": "cat-jewelry", "name": "Jewelry", "base_category": "jewelry"}
  ],
  "products": [
    {"id": "p-melted", "name": "Melted gold", "category_id": "cat-melted", "default_purity": "750"},
    {"id": "p-bangle", "name": "18k bangle", "category_id": "cat-manufactured", "default_purity": "750"},
    {"id": "p-emami", "name": "Emami coin", "category_id": "cat-coin"},
    {"id": "p-bar", "name": "Gold bar", "category_id": "cat-bullion", "default_purity": "995"},
    {"id": "p-ring", "name": "Diamond ring", "category_id": "cat-jewelry", "default_purity": "750"}
  ],
  "contacts": [
    {"id": "c-supplier", "name": "Tehran Refinery"},
    {"id": "c-customer", "name": "Sara Ahmadi", "phone": "+98 912 555 0101"}
  ],
  "bank_accounts": [
    {"id": "bank-main", "name": "Main account", "account_number": "0100-2233-44", "initial_balance": "0"}
  ]
}`
