package factory_test

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gold-ledger/factory"
	"github.com/warp/gold-ledger/generic"
	"github.com/warp/gold-ledger/gold"
	"github.com/warp/gold-ledger/store/sqlite"
)

func TestParseCatalog_Default(t *testing.T) {
	f := factory.NewCatalogFactory()
	c, err := f.ParseCatalog(factory.DefaultCatalogJSON)
	require.NoError(t, err)

	assert.Len(t, c.Categories, len(gold.AllCategories), "one category per base category")
	assert.Len(t, c.Products, 5)
	assert.Len(t, c.Contacts, 2)
	require.Len(t, c.BankAccounts, 1)
	assert.True(t, c.BankAccounts[0].InitialBalance.IsZero())

	bases := map[gold.Category]bool{}
	for _, cat := range c.Categories {
		bases[cat.Base] = true
	}
	for _, base := range gold.AllCategories {
		assert.True(t, bases[base], "missing %s", base)
	}
}

func TestParseCatalog_ReportsEveryInvalidRecord(t *testing.T) {
	// GIVEN: a catalog with a bad category, a dangling product and a nameless contact
	// THEN: each problem is reported under its JSON path

	f := factory.NewCatalogFactory()
	_, err := f.ParseCatalog(`{
		"categories": [
			{"id": "cat-a", "name": "A", "base_category": "melted"},
			{"id": "cat-b", "name": "B", "base_category": "silver"}
		],
		"products": [
			{"id": "p-1", "name": "One", "category_id": "cat-a", "default_purity": "750"},
			{"id": "p-2", "name": "Two", "category_id": "cat-b"},
			{"id": "p-3", "name": "Three", "category_id": "cat-a", "default_purity": "1200"}
		],
		"contacts": [{"id": "c-1"}]
	}`)
	require.Error(t, err)

	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["categories[1].base_category"])
	assert.True(t, fields["products[1].category_id"])
	assert.True(t, fields["products[2].default_purity"])
	assert.True(t, fields["contacts[0].name"])
}

func TestParseCatalog_MalformedJSON(t *testing.T) {
	_, err := factory.NewCatalogFactory().ParseCatalog(`{"categories": [`)
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewCatalogFactory()
	c, err := f.ParseCatalog(factory.DefaultCatalogJSON)
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(c))
	require.NoError(t, err)
	assert.Equal(t, c.Categories, again.Categories)
	assert.Equal(t, len(c.Products), len(again.Products))
}

func TestSeed_StoresEveryRecord(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	engine := gold.NewEngine(store, logger)
	ctx := context.Background()

	f := factory.NewCatalogFactory()
	c, err := f.ParseCatalog(factory.DefaultCatalogJSON)
	require.NoError(t, err)
	require.NoError(t, f.Seed(ctx, engine, c))

	products, err := engine.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 5)

	contact, err := engine.GetContact(ctx, "c-customer")
	require.NoError(t, err)
	assert.Equal(t, "Sara Ahmadi", contact.Name)

	bal, err := engine.GetBankBalance(ctx, "bank-main")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	// seeding again updates in place
	require.NoError(t, f.Seed(ctx, engine, c))
	contacts, err := engine.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
}
