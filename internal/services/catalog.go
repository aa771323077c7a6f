package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/internal/store"
	"github.com/diewo77/go-billdesk/validation"
)

// ProductStore is the catalog persistence used by the services.
type ProductStore interface {
	Upsert(ctx context.Context, in store.ProductInput) (*models.Product, bool, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Search(ctx context.Context, q string, limit int) ([]models.Product, error)
	Update(ctx context.Context, id string, patch store.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id string) error
	DecrementQuantity(ctx context.Context, id string, amount int) (*models.Product, error)
}

// ProductFields is an add-to-catalog request.
type ProductFields struct {
	Name     string          `json:"name"`
	Variant  string          `json:"variant"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	TaxRate  *int            `json:"gst"`
}

func (f ProductFields) validate() error {
	v := validation.Violations{}
	validation.Required("name", f.Name, v)
	validation.MinInt("quantity", f.Quantity, 0, v)
	amount("price", f.Price, v)
	if f.TaxRate != nil {
		validation.RangeInt("gst", *f.TaxRate, 0, 100, v)
	}
	return invalid(v)
}

// ProductUpdate overwrites only the non-nil fields.
type ProductUpdate struct {
	Name     *string          `json:"name"`
	Variant  *string          `json:"variant"`
	Category *string          `json:"category"`
	Quantity *int             `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
	TaxRate  *int             `json:"gst"`
}

func (u ProductUpdate) validate() error {
	v := validation.Violations{}
	validation.NotBlank("name", u.Name, v)
	validation.NotBlank("variant", u.Variant, v)
	if u.Quantity != nil {
		validation.MinInt("quantity", *u.Quantity, 0, v)
	}
	if u.Price != nil {
		amount("price", *u.Price, v)
	}
	if u.TaxRate != nil {
		validation.RangeInt("gst", *u.TaxRate, 0, 100, v)
	}
	return invalid(v)
}

// CatalogService manages the product catalog.
type CatalogService struct {
	products ProductStore
	logger   *zap.Logger
}

func NewCatalogService(products ProductStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger.Named("catalog")}
}

// UpsertProduct adds f to the catalog, merging into an existing
// (name, variant) record. created reports whether a new record was made.
func (s *CatalogService) UpsertProduct(ctx context.Context, f ProductFields) (p *models.Product, created bool, err error) {
	if err := f.validate(); err != nil {
		return nil, false, err
	}
	p, created, err = s.products.Upsert(ctx, store.ProductInput{
		Name:     f.Name,
		Variant:  f.Variant,
		Category: f.Category,
		Quantity: f.Quantity,
		Price:    f.Price,
		TaxRate:  f.TaxRate,
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("name", p.Name), zap.String("variant", p.Variant))
	} else {
		s.logger.Info("product merged", zap.String("product_id", p.ID), zap.Int("quantity", p.Quantity))
	}
	return p, created, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.List(ctx)
}

// SearchProducts matches names case-insensitively, capped at store.DefaultSearchLimit.
func (s *CatalogService) SearchProducts(ctx context.Context, q string) ([]models.Product, error) {
	return s.products.Search(ctx, strings.TrimSpace(q), store.DefaultSearchLimit)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.products.Get(ctx, id)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, u ProductUpdate) (*models.Product, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	p, err := s.products.Update(ctx, id, store.ProductPatch{
		Name:     u.Name,
		Variant:  u.Variant,
		Category: u.Category,
		Quantity: u.Quantity,
		Price:    u.Price,
		TaxRate:  u.TaxRate,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("product updated", zap.String("product_id", id))
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete product %s", id)
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}
