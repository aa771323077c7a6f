package store

import (
	"context"

	"github.com/diewo77/go-billdesk/internal/models"
	"gorm.io/gorm"
)

// Invoices is the invoice store. Invoices are append-only: there is no
// update or delete.
type Invoices struct {
	db *gorm.DB
}

func NewInvoices(db *gorm.DB) *Invoices { return &Invoices{db: db} }

func itemsInOrder(db *gorm.DB) *gorm.DB { return db.Order("position asc") }

// Create persists inv together with its line items in one transaction.
// A collision on invoice number or serial yields ErrDuplicateKey.
func (s *Invoices) Create(ctx context.Context, inv *models.Invoice) error {
	for i := range inv.Items {
		inv.Items[i].Position = i
	}
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return translate(err, "create invoice "+inv.InvoiceNumber)
	}
	return nil
}

// Get returns the invoice with its items.
func (s *Invoices) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).Preload("Items", itemsInOrder).First(&inv, "id = ?", id).Error; err != nil {
		return nil, translate(err, "get invoice")
	}
	return &inv, nil
}

// List returns all invoices, newest first.
func (s *Invoices) List(ctx context.Context) ([]models.Invoice, error) {
	var out []models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", itemsInOrder).
		Order("created_at desc, id desc").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "list invoices")
	}
	return out, nil
}

// Search matches q case-insensitively against invoice number or customer name.
func (s *Invoices) Search(ctx context.Context, q string) ([]models.Invoice, error) {
	pattern := likePattern(q)
	var out []models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", itemsInOrder).
		Where(`LOWER(invoice_number) LIKE ? ESCAPE '\' OR LOWER(customer_name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("created_at desc, id desc").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "search invoices")
	}
	return out, nil
}
