package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Defaults applied to products created without an explicit value.
const (
	DefaultVariant  = "Standard"
	DefaultCategory = "General"
	DefaultTaxRate  = 18
)

// Product is a stock-keeping entry of the catalog.
// (Name, Variant) is unique across the catalog.
type Product struct {
	ID       string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name     string          `gorm:"size:255;not null;uniqueIndex:idx_products_name_variant" json:"name"`
	Variant  string          `gorm:"size:100;not null;uniqueIndex:idx_products_name_variant" json:"variant"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity int             `gorm:"not null" json:"quantity"`
	Category string          `gorm:"size:100;not null" json:"category"`
	// TaxRate is a percentage in [0,100].
	TaxRate   int       `gorm:"not null" json:"gst"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random id when none is set.
func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.ApplyDefaults()
	return nil
}

// ApplyDefaults fills variant and category when empty.
func (p *Product) ApplyDefaults() {
	if p.Variant == "" {
		p.Variant = DefaultVariant
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
}
