package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/internal/store"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	products *store.Products
	invoices *store.Invoices
	catalog  *CatalogService
	issuer   *InvoiceService
}

func newFixture(t *testing.T, policy IssuancePolicy) *fixture {
	t.Helper()
	db := setupTestDB(t)
	serials, err := NewSnowflakeSerials(1)
	require.NoError(t, err)
	f := &fixture{
		products: store.NewProducts(db),
		invoices: store.NewInvoices(db),
	}
	f.catalog = NewCatalogService(f.products, zap.NewNop())
	f.issuer = NewInvoiceService(f.invoices, f.products, serials, policy, zap.NewNop())
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(v int) *int { return &v }

func seedProduct(t *testing.T, f *fixture, name string, qty int, price string) *models.Product {
	t.Helper()
	p, created, err := f.catalog.UpsertProduct(context.Background(), ProductFields{Name: name, Quantity: qty, Price: dec(price)})
	require.NoError(t, err)
	require.True(t, created)
	return p
}
