package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/internal/store"
)

func TestComputeTotals(t *testing.T) {
	items := []LineItemInput{
		{Total: dec("20")},
		{Total: dec("5.50")},
	}
	sub, tax, grand := ComputeTotals(items, nil, 18)
	assert.True(t, sub.Equal(dec("25.50")))
	assert.True(t, tax.Equal(dec("4.59")))
	assert.True(t, grand.Equal(sub.Add(tax)))

	_, tax, grand = ComputeTotals(items, decPtr("0"), 18)
	assert.True(t, tax.IsZero())
	assert.True(t, grand.Equal(dec("25.50")))

	_, tax, _ = ComputeTotals(items, decPtr("1.25"), 18)
	assert.True(t, tax.Equal(dec("1.25")))
}

func TestIssueParacetamol(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	p := seedProduct(t, f, "Paracetamol", 5, "10")

	res, err := f.issuer.Issue(ctx, IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha", Phone: "919999999999"},
		Items: []LineItemInput{
			{ProductID: p.ID, Name: "Paracetamol", Quantity: 2, Price: dec("10"), Total: dec("20")},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.StockIssues)

	inv := res.Invoice
	assert.Equal(t, "INV-1", inv.InvoiceNumber)
	assert.Contains(t, inv.SerialNo, "SN")
	assert.True(t, inv.Tax.Equal(dec("3.60")), inv.Tax.String())
	assert.True(t, inv.GrandTotal.Equal(dec("23.60")), inv.GrandTotal.String())
	assert.True(t, inv.Subtotal().Equal(inv.ItemsTotal()))

	stored, err := f.issuer.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, p.ID, stored.Items[0].ProductID)

	after, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Quantity)
}

func TestIssueClampsStockAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	p := seedProduct(t, f, "Paracetamol", 5, "10")

	_, err := f.issuer.Issue(ctx, IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items:         []LineItemInput{{ProductID: p.ID, Name: "Paracetamol", Quantity: 9, Price: dec("10"), Total: dec("90")}},
	})
	require.NoError(t, err)

	after, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Quantity)
}

func TestIssueMissingProductDoesNotFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	p := seedProduct(t, f, "Syrup", 4, "5")

	res, err := f.issuer.Issue(ctx, IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items: []LineItemInput{
			{ProductID: "gone", Name: "Ghost", Quantity: 1, Price: dec("1"), Total: dec("1")},
			{Name: "Unlinked", Quantity: 1, Price: dec("1"), Total: dec("1")},
			{ProductID: p.ID, Name: "Syrup", Quantity: 1, Price: dec("5"), Total: dec("5")},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.StockIssues, 1)
	assert.Equal(t, "gone", res.StockIssues[0].ProductID)
	assert.Equal(t, "not_found", res.StockIssues[0].Reason)

	after, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Quantity)
}

func TestIssueRenumbersOnCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	req := IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items:         []LineItemInput{{Name: "Syrup", Quantity: 1, Price: dec("5"), Total: dec("5")}},
	}

	first, err := f.issuer.Issue(ctx, req)
	require.NoError(t, err)
	second, err := f.issuer.Issue(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "INV-1", first.Invoice.InvoiceNumber)
	assert.NotEqual(t, first.Invoice.InvoiceNumber, second.Invoice.InvoiceNumber)
	assert.NotEqual(t, first.Invoice.SerialNo, second.Invoice.SerialNo)
	assert.Regexp(t, `^INV\d+$`, second.Invoice.InvoiceNumber)

	all, err := f.issuer.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	_, err := f.issuer.Issue(context.Background(), IssueRequest{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"customer.name", "invoice_number", "items"}, verr.Violations.Fields())

	_, err = f.issuer.Issue(context.Background(), IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items:         []LineItemInput{{Name: "", Quantity: 0, Price: dec("-1"), Total: dec("-1"), TaxRate: intPtr(200)}},
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"items[0].gst", "items[0].name", "items[0].price", "items[0].quantity", "items[0].total"}, verr.Violations.Fields())

	all, err := f.issuer.ListInvoices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIssueStrictLineTotals(t *testing.T) {
	items := []LineItemInput{{Name: "Syrup", Quantity: 2, Price: dec("5"), Total: dec("9")}}
	req := IssueRequest{InvoiceNumber: "INV-1", Customer: models.Customer{Name: "Asha"}, Items: items}

	lenient := newFixture(t, IssuancePolicy{TaxPercent: 18})
	_, err := lenient.issuer.Issue(context.Background(), req)
	require.NoError(t, err)

	strict := newFixture(t, IssuancePolicy{TaxPercent: 18, StrictLineTotals: true})
	_, err = strict.issuer.Issue(context.Background(), req)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must_equal_price_times_quantity", verr.Violations["items[0].total"])
}

type scriptedInvoices struct {
	errs    []error
	creates []string
}

func (s *scriptedInvoices) Create(_ context.Context, inv *models.Invoice) error {
	s.creates = append(s.creates, inv.InvoiceNumber)
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedInvoices) Get(context.Context, string) (*models.Invoice, error) {
	return nil, store.ErrNotFound
}
func (s *scriptedInvoices) List(context.Context) ([]models.Invoice, error)           { return nil, nil }
func (s *scriptedInvoices) Search(context.Context, string) ([]models.Invoice, error) { return nil, nil }

type fixedSerials struct{}

func (fixedSerials) Serial() string             { return "SN1" }
func (fixedSerials) Renumber() (string, string) { return "INV2", "SN2" }

func TestIssueFailsAfterOneRetry(t *testing.T) {
	dup := errors.Wrap(store.ErrDuplicateKey, "create invoice")
	tests := []struct {
		name     string
		errs     []error
		attempts int
		creates  []string
	}{
		{"second collision", []error{dup, dup}, 2, []string{"INV-1", "INV2"}},
		{"other error", []error{errors.New("disk full")}, 1, []string{"INV-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := &scriptedInvoices{errs: tt.errs}
			svc := NewInvoiceService(invoices, nil, fixedSerials{}, IssuancePolicy{TaxPercent: 18}, zap.NewNop())

			_, err := svc.Issue(context.Background(), IssueRequest{
				InvoiceNumber: "INV-1",
				Customer:      models.Customer{Name: "Asha"},
				Items:         []LineItemInput{{Name: "Syrup", Quantity: 1, Price: dec("5"), Total: dec("5")}},
			})
			require.ErrorIs(t, err, ErrIssuanceFailed)
			var ierr *IssuanceError
			require.True(t, errors.As(err, &ierr))
			assert.Equal(t, tt.attempts, ierr.Attempts)
			assert.Equal(t, tt.creates, invoices.creates)
		})
	}
}

func TestSearchInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	for _, c := range []struct{ number, name string }{{"INV-100", "Asha"}, {"INV-200", "Ravi"}} {
		_, err := f.issuer.Issue(ctx, IssueRequest{
			InvoiceNumber: c.number,
			Customer:      models.Customer{Name: c.name},
			Items:         []LineItemInput{{Name: "Syrup", Quantity: 1, Price: dec("5"), Total: dec("5")}},
		})
		require.NoError(t, err)
	}

	got, err := f.issuer.SearchInvoices(ctx, "ravi")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "INV-200", got[0].InvoiceNumber)

	got, err = f.issuer.SearchInvoices(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Asha", got[0].Customer.Name)
}

func TestIssueWithZeroTaxPolicy(t *testing.T) {
	f := newFixture(t, IssuancePolicy{TaxPercent: 0})
	res, err := f.issuer.Issue(context.Background(), IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items:         []LineItemInput{{Name: "Syrup", Quantity: 1, Price: dec("100"), Total: dec("100")}},
	})
	require.NoError(t, err)
	assert.True(t, res.Invoice.Tax.IsZero(), res.Invoice.Tax.String())
	assert.True(t, res.Invoice.GrandTotal.Equal(dec("100")), res.Invoice.GrandTotal.String())
}

func TestIssueRejectsAmountsTheColumnsCannotHold(t *testing.T) {
	base := func() IssueRequest {
		return IssueRequest{
			InvoiceNumber: "INV-1",
			Customer:      models.Customer{Name: "Asha"},
			Items: []LineItemInput{
				{Name: "Mint", Quantity: 1, Price: dec("0.01"), Total: dec("0.01")},
				{Name: "Mint", Quantity: 1, Price: dec("0.01"), Total: dec("0.01")},
			},
		}
	}
	tests := []struct {
		name  string
		edit  func(*IssueRequest)
		field string
		want  string
	}{
		{"sub-cent price", func(r *IssueRequest) { r.Items[0].Price = dec("0.005") }, "items[0].price", "at_most_2_decimal_places"},
		{"sub-cent total", func(r *IssueRequest) { r.Items[1].Total = dec("0.005") }, "items[1].total", "at_most_2_decimal_places"},
		{"sub-cent tax", func(r *IssueRequest) { r.Tax = decPtr("1.005") }, "gst", "at_most_2_decimal_places"},
		{"line too large", func(r *IssueRequest) { r.Items[0].Total = dec("10000000000") }, "items[0].total", "too_large"},
		{"grand total too large", func(r *IssueRequest) {
			r.Items[0].Total = dec("9000000000")
			r.Items[1].Total = dec("9000000000")
		}, "grand_total", "too_large"},
		{"invoice number with separator", func(r *IssueRequest) { r.InvoiceNumber = "ACME/7" }, "invoice_number", "invalid_characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, IssuancePolicy{TaxPercent: 18})
			req := base()
			tt.edit(&req)
			_, err := f.issuer.Issue(context.Background(), req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "%v", err)
			assert.Equal(t, tt.want, verr.Violations[tt.field])

			all, err := f.issuer.ListInvoices(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestIssuedTotalsMatchStoredInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	res, err := f.issuer.Issue(ctx, IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items: []LineItemInput{
			{Name: "Mint", Quantity: 1, Price: dec("0.01"), Total: dec("0.01")},
			{Name: "Mint", Quantity: 3, Price: dec("0.33"), Total: dec("0.99")},
		},
	})
	require.NoError(t, err)

	stored, err := f.issuer.GetInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.Tax.Equal(res.Invoice.Tax))
	assert.True(t, stored.GrandTotal.Equal(res.Invoice.GrandTotal))
	assert.True(t, stored.GrandTotal.Equal(stored.ItemsTotal().Add(stored.Tax)))
}

// flakyProducts fails every decrement of one product id.
type flakyProducts struct {
	*store.Products
	failID string
	calls  []string
}

func (p *flakyProducts) DecrementQuantity(ctx context.Context, id string, amount int) (*models.Product, error) {
	p.calls = append(p.calls, id)
	if id == p.failID {
		return nil, errors.New("connection reset by peer")
	}
	return p.Products.DecrementQuantity(ctx, id, amount)
}

func TestIssueContinuesAfterDecrementError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, IssuancePolicy{TaxPercent: 18})
	first := seedProduct(t, f, "Paracetamol", 5, "10")
	broken := seedProduct(t, f, "Syrup", 5, "5")
	last := seedProduct(t, f, "Balm", 5, "2")

	products := &flakyProducts{Products: f.products, failID: broken.ID}
	serials, err := NewSnowflakeSerials(2)
	require.NoError(t, err)
	issuer := NewInvoiceService(f.invoices, products, serials, IssuancePolicy{TaxPercent: 18}, zap.NewNop())

	res, err := issuer.Issue(ctx, IssueRequest{
		InvoiceNumber: "INV-1",
		Customer:      models.Customer{Name: "Asha"},
		Items: []LineItemInput{
			{ProductID: first.ID, Name: "Paracetamol", Quantity: 1, Price: dec("10"), Total: dec("10")},
			{ProductID: broken.ID, Name: "Syrup", Quantity: 1, Price: dec("5"), Total: dec("5")},
			{ProductID: last.ID, Name: "Balm", Quantity: 2, Price: dec("2"), Total: dec("4")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, broken.ID, last.ID}, products.calls)

	require.Len(t, res.StockIssues, 1)
	issue := res.StockIssues[0]
	assert.Equal(t, broken.ID, issue.ProductID)
	assert.Equal(t, "Syrup", issue.Name)
	assert.Equal(t, "connection reset by peer", issue.Reason)
	assert.Error(t, issue.Err)

	for id, want := range map[string]int{first.ID: 4, broken.ID: 5, last.ID: 3} {
		p, err := f.catalog.GetProduct(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Quantity, p.Name)
	}
}
