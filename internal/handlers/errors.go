// Package handlers exposes the catalog, invoice and auth services over JSON HTTP.
package handlers

import (
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/httpx"
	"github.com/diewo77/go-billdesk/internal/services"
)

// writeError maps service errors onto HTTP statuses. Unknown errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		verr *services.ValidationError
		ierr *services.IssuanceError
		derr *services.DeliveryError
	)
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Violations)
	case errors.Is(err, httpx.ErrInvalidJSON):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.As(err, &ierr):
		logger.Error("issuance failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "issuance_failed", nil)
	case errors.As(err, &derr):
		httpx.JSONError(w, http.StatusBadGateway, "delivery_failed", map[string]string{"stage": string(derr.Stage)})
	case errors.Is(err, services.ErrDuplicateKey):
		httpx.JSONError(w, http.StatusConflict, "already_exists", nil)
	default:
		logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
