package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/diewo77/go-billdesk/internal/artifact"
	"github.com/diewo77/go-billdesk/internal/messaging"
	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/pdf"
	"github.com/diewo77/go-billdesk/validation"
)

// Renderer turns invoice data into a document.
type Renderer interface {
	Render(w io.Writer, d pdf.InvoiceData) error
}

// InvoiceGetter loads a stored invoice.
type InvoiceGetter interface {
	Get(ctx context.Context, id string) (*models.Invoice, error)
}

// DeliveryOptions controls how invoices are presented to customers.
type DeliveryOptions struct {
	ChatSuffix string
	Currency   string
	TaxPercent int64
	ShopName   string
}

// Ack confirms that both the summary and the document were handed to the
// transport.
type Ack struct {
	InvoiceID   string    `json:"invoice_id"`
	ChatID      string    `json:"chat_id"`
	DocumentRef string    `json:"document_ref"`
	SentAt      time.Time `json:"sent_at"`
}

// Dispatcher delivers stored invoices over the messaging transport. The
// transport is owned by the caller and shared for the whole process.
type Dispatcher struct {
	invoices  InvoiceGetter
	renderer  Renderer
	artifacts artifact.Store
	transport messaging.Transport
	opts      DeliveryOptions
	logger    *zap.Logger
	renders   singleflight.Group
	now       func() time.Time
}

func NewDispatcher(invoices InvoiceGetter, renderer Renderer, artifacts artifact.Store, transport messaging.Transport, opts DeliveryOptions, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		invoices:  invoices,
		renderer:  renderer,
		artifacts: artifacts,
		transport: transport,
		opts:      opts,
		logger:    logger.Named("delivery"),
		now:       time.Now,
	}
}

// DeliverInvoice sends the invoice summary and then its rendered document to
// the chat address derived from phone. The document is only sent once it has
// been rendered to a non-empty artifact.
func (d *Dispatcher) DeliverInvoice(ctx context.Context, invoiceID, phone string) (*Ack, error) {
	ctx, span := tracer.Start(ctx, "invoice.deliver", trace.WithAttributes(attribute.String("invoice.id", invoiceID)))
	defer span.End()

	v := validation.Violations{}
	validation.Required("invoice_id", invoiceID, v)
	validation.Required("phone", phone, v)
	chatID := messaging.ChatID(phone, d.opts.ChatSuffix)
	if _, ok := v["phone"]; !ok && chatID == "" {
		v["phone"] = "invalid"
	}
	if err := invalid(v); err != nil {
		return nil, err
	}

	inv, err := d.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("invoice.number", inv.InvoiceNumber))

	fail := func(stage Stage, err error) (*Ack, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
		d.logger.Error("delivery failed",
			zap.String("invoice_id", inv.ID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return nil, &DeliveryError{InvoiceID: inv.ID, Stage: stage, Err: err}
	}

	if err := d.transport.SendText(ctx, chatID, Summary(inv, d.opts)); err != nil {
		return fail(StageText, err)
	}

	doc, err := d.Document(ctx, inv)
	if err != nil {
		return fail(StageRender, err)
	}
	name := DocumentName(inv)
	ref, err := d.artifacts.Put(ctx, ArtifactName(inv), doc)
	if err != nil {
		return fail(StageRender, err)
	}

	err = d.transport.SendDocument(ctx, chatID, messaging.Document{
		Ref:      ref,
		FileName: name,
		MimeType: pdf.MimeType,
		Size:     len(doc),
	})
	if err != nil {
		return fail(StageDocument, err)
	}

	d.logger.Info("invoice delivered", zap.String("invoice_id", inv.ID), zap.String("chat_id", chatID), zap.String("ref", ref))
	return &Ack{InvoiceID: inv.ID, ChatID: chatID, DocumentRef: ref, SentAt: d.now().UTC()}, nil
}

// Document renders inv. Concurrent renders of the same invoice share one
// result; callers must not modify the returned slice.
func (d *Dispatcher) Document(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	_, span := tracer.Start(ctx, "invoice.render")
	defer span.End()

	v, err, shared := d.renders.Do(inv.ID, func() (any, error) {
		var buf bytes.Buffer
		if err := d.renderer.Render(&buf, DocumentFor(inv, d.opts)); err != nil {
			return nil, err
		}
		if buf.Len() == 0 {
			return nil, ErrEmptyDocument
		}
		return buf.Bytes(), nil
	})
	span.SetAttributes(attribute.Bool("render.shared", shared))
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// DocumentName is the file name a customer sees for inv. Separators, quotes
// and control characters in the number are replaced.
func DocumentName(inv *models.Invoice) string {
	number := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '"' || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, inv.InvoiceNumber)
	return number + ".pdf"
}

// ArtifactName is the storage name of inv's document. It is unique per
// invoice even when two numbers sanitize to the same file name.
func ArtifactName(inv *models.Invoice) string { return inv.ID + "-" + DocumentName(inv) }

// DocumentFor maps a stored invoice onto the renderer input.
func DocumentFor(inv *models.Invoice, opts DeliveryOptions) pdf.InvoiceData {
	data := pdf.InvoiceData{
		ShopName:      opts.ShopName,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.Customer.Name,
		CustomerPhone: inv.Customer.Phone,
		IssuedAt:      inv.CreatedAt,
		Currency:      opts.Currency,
		TaxLabel:      taxLabel(opts.TaxPercent),
		Tax:           inv.Tax,
		GrandTotal:    inv.GrandTotal,
	}
	for _, it := range inv.Items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
			Total:       it.Total,
		})
	}
	return data
}

func taxLabel(percent int64) string { return fmt.Sprintf("GST (%d%%)", percent) }

// Summary formats the chat text sent ahead of the document.
func Summary(inv *models.Invoice, opts DeliveryOptions) string {
	money := func(v decimal.Decimal) string {
		if opts.Currency == "" {
			return v.StringFixed(2)
		}
		return opts.Currency + " " + v.StringFixed(2)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 *Invoice: %s*\n", inv.InvoiceNumber)
	fmt.Fprintf(&b, "👤 *Customer:* %s\n", inv.Customer.Name)
	fmt.Fprintf(&b, "📅 *Date:* %s\n\n", inv.CreatedAt.Format("02/01/2006"))
	for _, it := range inv.Items {
		fmt.Fprintf(&b, "• %s x %d @ %s = %s\n", it.Name, it.Quantity, money(it.Price), money(it.Total))
	}
	fmt.Fprintf(&b, "\n🧮 *Subtotal:* %s\n", money(inv.Subtotal()))
	fmt.Fprintf(&b, "🧾 *%s:* %s\n", taxLabel(opts.TaxPercent), money(inv.Tax))
	fmt.Fprintf(&b, "💰 *Grand Total:* %s\n\n", money(inv.GrandTotal))
	b.WriteString("🙏 Thank you for shopping with us!")
	return b.String()
}
