package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer identifies who an invoice was issued to.
type Customer struct {
	Name  string `gorm:"size:255;not null" json:"name"`
	Phone string `gorm:"size:32" json:"phone,omitempty"`
}

// Invoice is an issued sale. Once persisted it is never updated or deleted.
type Invoice struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	SerialNo      string          `gorm:"size:64;not null;uniqueIndex" json:"serial_no"`
	InvoiceNumber string          `gorm:"size:64;not null;uniqueIndex" json:"invoice_number"`
	Customer      Customer        `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Items         []LineItem      `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	Tax           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"gst"`
	GrandTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"grand_total"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a random id when none is set.
func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Subtotal is the amount before tax, derived from the stored totals.
func (i *Invoice) Subtotal() decimal.Decimal {
	return i.GrandTotal.Sub(i.Tax)
}

// ItemsTotal sums the line totals.
func (i *Invoice) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range i.Items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// LineItem is a snapshot of one product line at issuance time.
// It keeps no live link to the catalog.
type LineItem struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"-"`
	InvoiceID string          `gorm:"type:varchar(36);index;not null" json:"-"`
	Position  int             `gorm:"not null" json:"-"`
	ProductID string          `gorm:"type:varchar(36);index" json:"product_id,omitempty"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	TaxRate   *int            `json:"gst,omitempty"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
}

// BeforeCreate assigns a random id when none is set.
func (li *LineItem) BeforeCreate(_ *gorm.DB) error {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	return nil
}

// Expected returns price × quantity.
func (li *LineItem) Expected() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
