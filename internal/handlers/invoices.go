package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/httpx"
	"github.com/diewo77/go-billdesk/internal/models"
	"github.com/diewo77/go-billdesk/internal/services"
	"github.com/diewo77/go-billdesk/pdf"
)

type InvoiceHandler struct {
	invoices   *services.InvoiceService
	dispatcher *services.Dispatcher
	logger     *zap.Logger
}

func NewInvoiceHandler(invoices *services.InvoiceService, dispatcher *services.Dispatcher, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, dispatcher: dispatcher, logger: logger}
}

type issuedResponse struct {
	*models.Invoice
	StockWarnings []services.StockIssue `json:"stock_warnings,omitempty"`
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.IssueRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.invoices.Issue(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issuedResponse{Invoice: res.Invoice, StockWarnings: res.StockIssues})
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.ListInvoices(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) Search(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.SearchInvoices(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// PDF streams the rendered document of an invoice.
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := h.dispatcher.Document(r.Context(), inv)
	if err != nil {
		h.logger.Error("render invoice", zap.String("invoice_id", inv.ID), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "render_failed", nil)
		return
	}
	w.Header().Set("Content-Type", pdf.MimeType)
	w.Header().Set("Content-Disposition", `inline; filename="`+services.DocumentName(inv)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

type sendRequest struct {
	Phone     string `json:"phone"`
	InvoiceID string `json:"invoice_id"`
}

// Send delivers an invoice summary and document to the customer's chat.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ack, err := h.dispatcher.DeliverInvoice(r.Context(), req.InvoiceID, req.Phone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ack)
}
