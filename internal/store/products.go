package store

import (
	"context"
	"strings"

	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultSearchLimit caps product search results.
const DefaultSearchLimit = 10

// ProductInput carries the fields of an add-to-catalog request.
// Zero Variant and Category fall back to the model defaults.
type ProductInput struct {
	Name     string
	Variant  string
	Category string
	Quantity int
	Price    decimal.Decimal
	TaxRate  *int
}

// ProductPatch lists the fields an update may overwrite. Nil means keep.
type ProductPatch struct {
	Name     *string
	Variant  *string
	Category *string
	Quantity *int
	Price    *decimal.Decimal
	TaxRate  *int
}

func (p ProductPatch) columns() map[string]any {
	cols := map[string]any{}
	if p.Name != nil {
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Variant != nil {
		cols["variant"] = strings.TrimSpace(*p.Variant)
	}
	if p.Category != nil {
		cols["category"] = strings.TrimSpace(*p.Category)
	}
	if p.Quantity != nil {
		cols["quantity"] = *p.Quantity
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.TaxRate != nil {
		cols["tax_rate"] = *p.TaxRate
	}
	return cols
}

// Products is the product catalog store.
type Products struct {
	db *gorm.DB
}

func NewProducts(db *gorm.DB) *Products { return &Products{db: db} }

// Upsert adds in to the catalog keyed on (name, variant). An existing record
// gets its quantity incremented and its price and category overwritten; the
// tax rate is only overwritten when supplied. It reports whether a new record
// was created.
func (s *Products) Upsert(ctx context.Context, in ProductInput) (*models.Product, bool, error) {
	name := strings.TrimSpace(in.Name)
	variant := strings.TrimSpace(in.Variant)
	if variant == "" {
		variant = models.DefaultVariant
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	// A concurrent insert of the same key loses the unique race once and is
	// then merged into the winner.
	for attempt := 0; attempt < 2; attempt++ {
		var existing models.Product
		err := s.db.WithContext(ctx).Where("name = ? AND variant = ?", name, variant).First(&existing).Error
		switch {
		case err == nil:
			cols := map[string]any{
				"quantity": gorm.Expr("quantity + ?", in.Quantity),
				"price":    in.Price,
				"category": category,
			}
			if in.TaxRate != nil {
				cols["tax_rate"] = *in.TaxRate
			}
			if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", existing.ID).Updates(cols).Error; err != nil {
				return nil, false, translate(err, "merge product")
			}
			p, err := s.Get(ctx, existing.ID)
			return p, false, err
		case errors.Is(err, gorm.ErrRecordNotFound):
			tax := models.DefaultTaxRate
			if in.TaxRate != nil {
				tax = *in.TaxRate
			}
			p := &models.Product{
				Name:     name,
				Variant:  variant,
				Category: category,
				Quantity: in.Quantity,
				Price:    in.Price,
				TaxRate:  tax,
			}
			if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
				if IsUniqueViolation(err) {
					continue
				}
				return nil, false, translate(err, "create product")
			}
			return p, true, nil
		default:
			return nil, false, translate(err, "find product")
		}
	}
	return nil, false, errors.Wrapf(ErrDuplicateKey, "upsert product %s/%s", name, variant)
}

// Get returns the product with the given id.
func (s *Products) Get(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get product")
	}
	return &p, nil
}

// List returns all products, newest first.
func (s *Products) List(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := s.db.WithContext(ctx).Order("created_at desc, id desc").Find(&out).Error; err != nil {
		return nil, translate(err, "list products")
	}
	return out, nil
}

// Search matches q case-insensitively anywhere in the product name.
// A non-positive limit uses DefaultSearchLimit.
func (s *Products) Search(ctx context.Context, q string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var out []models.Product
	err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(q)).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "search products")
	}
	return out, nil
}

// Update overwrites the supplied fields only.
func (s *Products) Update(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if cols := patch.columns(); len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return nil, translate(err, "update product")
		}
	}
	return s.Get(ctx, id)
}

// Delete removes the product with the given id.
func (s *Products) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "delete product")
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(ErrNotFound, "delete product")
	}
	return nil
}

// DecrementQuantity lowers stock by amount in a single statement, clamping at zero.
func (s *Products) DecrementQuantity(ctx context.Context, id string, amount int) (*models.Product, error) {
	if amount < 0 {
		return nil, errors.Errorf("decrement product %s: negative amount %d", id, amount)
	}
	res := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END", amount, amount))
	if res.Error != nil {
		return nil, translate(res.Error, "decrement product")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "decrement product %s", id)
	}
	return s.Get(ctx, id)
}
