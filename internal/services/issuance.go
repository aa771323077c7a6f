package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/validation"
)

var tracer = otel.Tracer("billdesk/services")

// InvoiceStore is the invoice persistence used by the services.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Get(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context) ([]models.Invoice, error)
	Search(ctx context.Context, q string) ([]models.Invoice, error)
}

// LineItemInput is one requested invoice line. Total is supplied by the
// caller and trusted unless strict line totals are enabled.
type LineItemInput struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	TaxRate   *int            `json:"gst"`
	Total     decimal.Decimal `json:"total"`
}

// IssueRequest asks for a new invoice. A nil Tax means compute it from the
// default rate; an explicit zero is kept.
type IssueRequest struct {
	InvoiceNumber string           `json:"invoice_number"`
	Customer      models.Customer  `json:"customer"`
	Items         []LineItemInput  `json:"items"`
	Tax           *decimal.Decimal `json:"gst"`
}

// StockIssue records a line whose stock could not be decremented.
type StockIssue struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// Issued is the result of a successful issuance.
type Issued struct {
	Invoice     *models.Invoice
	StockIssues []StockIssue
}

// IssuancePolicy holds the tax and validation knobs of issuance. TaxPercent
// is used as given; zero means no tax.
type IssuancePolicy struct {
	TaxPercent       int64
	StrictLineTotals bool
}

// InvoiceService issues invoices and reconciles catalog stock.
type InvoiceService struct {
	invoices InvoiceStore
	products ProductStore
	serials  SerialGenerator
	policy   IssuancePolicy
	logger   *zap.Logger
}

func NewInvoiceService(invoices InvoiceStore, products ProductStore, serials SerialGenerator, policy IssuancePolicy, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		products: products,
		serials:  serials,
		policy:   policy,
		logger:   logger.Named("invoices"),
	}
}

// ComputeTotals returns the subtotal (sum of line totals), the tax and the
// grand total. Without an override the tax is subtotal × percent / 100
// rounded to two places.
func ComputeTotals(items []LineItemInput, override *decimal.Decimal, percent int64) (subtotal, tax, grand decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total)
	}
	if override != nil {
		tax = *override
	} else {
		tax = subtotal.Mul(decimal.NewFromInt(percent)).Div(decimal.NewFromInt(100)).Round(2)
	}
	return subtotal, tax, subtotal.Add(tax)
}

// maxAmount is the first value a decimal(12,2) column cannot hold.
var maxAmount = decimal.New(1, 10)

// amount checks a money value against the stored column: non-negative,
// whole cents and below maxAmount.
func amount(field string, val decimal.Decimal, v validation.Violations) {
	validation.MaxScale(field, val, 2, v)
	validation.LessThan(field, val, maxAmount, v)
	validation.NonNegativeDecimal(field, val, v)
}

func (s *InvoiceService) validate(req IssueRequest) error {
	v := validation.Violations{}
	validation.PlainText("invoice_number", req.InvoiceNumber, v)
	validation.Required("invoice_number", req.InvoiceNumber, v)
	validation.Required("customer.name", req.Customer.Name, v)
	if len(req.Items) == 0 {
		v["items"] = "at_least_one_required"
	}
	for i, it := range req.Items {
		validation.Required(validation.Item("items", i, "name"), it.Name, v)
		validation.MinInt(validation.Item("items", i, "quantity"), it.Quantity, 1, v)
		amount(validation.Item("items", i, "price"), it.Price, v)
		amount(validation.Item("items", i, "total"), it.Total, v)
		if it.TaxRate != nil {
			validation.RangeInt(validation.Item("items", i, "gst"), *it.TaxRate, 0, 100, v)
		}
		if s.policy.StrictLineTotals {
			line := models.LineItem{Price: it.Price, Quantity: it.Quantity}
			if !it.Total.Equal(line.Expected()) {
				v[validation.Item("items", i, "total")] = "must_equal_price_times_quantity"
			}
		}
	}
	if req.Tax != nil {
		amount("gst", *req.Tax, v)
	}
	if v.Empty() {
		_, _, grand := ComputeTotals(req.Items, req.Tax, s.policy.TaxPercent)
		validation.LessThan("grand_total", grand, maxAmount, v)
	}
	return invalid(v)
}

func (s *InvoiceService) build(req IssueRequest) *models.Invoice {
	_, tax, grand := ComputeTotals(req.Items, req.Tax, s.policy.TaxPercent)
	inv := &models.Invoice{
		SerialNo:      s.serials.Serial(),
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Customer: models.Customer{
			Name:  strings.TrimSpace(req.Customer.Name),
			Phone: strings.TrimSpace(req.Customer.Phone),
		},
		Tax:        tax,
		GrandTotal: grand,
		Items:      make([]models.LineItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		inv.Items = append(inv.Items, models.LineItem{
			ProductID: strings.TrimSpace(it.ProductID),
			Name:      strings.TrimSpace(it.Name),
			Quantity:  it.Quantity,
			Price:     it.Price,
			TaxRate:   it.TaxRate,
			Total:     it.Total,
		})
	}
	return inv
}

// Issue validates req, persists the invoice and then decrements stock for
// every line. Persistence is retried once with fresh identifiers when the
// number or serial collides. Stock failures never fail the issuance; they
// are logged and returned as StockIssues.
func (s *InvoiceService) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	ctx, span := tracer.Start(ctx, "invoice.issue")
	defer span.End()

	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}
	inv := s.build(req)
	if err := s.persist(ctx, inv); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.logger.Error("issue invoice", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("invoice.id", inv.ID),
		attribute.String("invoice.number", inv.InvoiceNumber),
		attribute.Int("invoice.items", len(inv.Items)),
	)
	s.logger.Info("invoice issued",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("grand_total", inv.GrandTotal.StringFixed(2)),
	)

	// The invoice is committed; stock reconciliation must run to the end
	// even if the caller goes away.
	issues := s.reconcileStock(context.WithoutCancel(ctx), inv)
	return &Issued{Invoice: inv, StockIssues: issues}, nil
}

func (s *InvoiceService) persist(ctx context.Context, inv *models.Invoice) error {
	err := s.invoices.Create(ctx, inv)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDuplicateKey) {
		return &IssuanceError{InvoiceNumber: inv.InvoiceNumber, Attempts: 1, Err: err}
	}

	requested := inv.InvoiceNumber
	inv.InvoiceNumber, inv.SerialNo = s.serials.Renumber()
	s.logger.Warn("invoice number collision, renumbering",
		zap.String("requested", requested),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("serial_no", inv.SerialNo),
	)
	if err := s.invoices.Create(ctx, inv); err != nil {
		return &IssuanceError{InvoiceNumber: inv.InvoiceNumber, Attempts: 2, Err: err}
	}
	return nil
}

func (s *InvoiceService) reconcileStock(ctx context.Context, inv *models.Invoice) []StockIssue {
	ctx, span := tracer.Start(ctx, "invoice.reconcile_stock")
	defer span.End()

	var issues []StockIssue
	for _, it := range inv.Items {
		if it.ProductID == "" {
			s.logger.Debug("line has no product reference", zap.String("invoice_number", inv.InvoiceNumber), zap.String("name", it.Name))
			continue
		}
		p, err := s.products.DecrementQuantity(ctx, it.ProductID, it.Quantity)
		if err != nil {
			reason := "not_found"
			if !errors.Is(err, ErrNotFound) {
				reason = err.Error()
			}
			s.logger.Warn("stock decrement failed",
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
			span.RecordError(err)
			issues = append(issues, StockIssue{ProductID: it.ProductID, Name: it.Name, Reason: reason, Err: err})
			continue
		}
		s.logger.Debug("stock decremented", zap.String("product_id", p.ID), zap.Int("remaining", p.Quantity))
	}
	span.SetAttributes(attribute.Int("stock.issues", len(issues)))
	return issues
}

func (s *InvoiceService) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	return s.invoices.List(ctx)
}

func (s *InvoiceService) SearchInvoices(ctx context.Context, q string) ([]models.Invoice, error) {
	return s.invoices.Search(ctx, strings.TrimSpace(q))
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return s.invoices.Get(ctx, id)
}
