// Package server assembles the HTTP routes and middleware.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/auth"
	"github.com/diewo77/go-billdesk/httpx"
	"github.com/diewo77/go-billdesk/internal/handlers"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Products *handlers.ProductHandler
	Invoices *handlers.InvoiceHandler
	Auth     *handlers.AuthHandler
	Signer   *auth.Signer
	// Ping checks the database for /healthz.
	Ping   func(ctx context.Context) error
	Logger *zap.Logger
}

// Router is the application handler.
type Router struct {
	mux    *http.ServeMux
	deps   Deps
	logger *zap.Logger
}

func NewRouter(d Deps) *Router {
	r := &Router{mux: http.NewServeMux(), deps: d, logger: d.Logger.Named("http")}
	r.setupRoutes()
	return r
}

// ServeHTTP implements http.Handler.
func (a *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := withRecover(a.logger, withLogging(a.logger, auth.Middleware(a.deps.Signer)(a.mux)))
	handler.ServeHTTP(w, r)
}

func (a *Router) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("POST /api/auth/login", a.deps.Auth.Login)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("POST /api/auth/register", auth.RequireAdmin(http.HandlerFunc(a.deps.Auth.Register)))

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes
	// ─────────────────────────────────────────────────────────────────────────
	ph := a.deps.Products
	a.mux.Handle("POST /api/products", auth.RequireAuth(http.HandlerFunc(ph.Create)))
	a.mux.Handle("GET /api/products", auth.RequireAuth(http.HandlerFunc(ph.List)))
	a.mux.Handle("GET /api/products/search", auth.RequireAuth(http.HandlerFunc(ph.Search)))
	a.mux.Handle("GET /api/products/{id}", auth.RequireAuth(http.HandlerFunc(ph.Get)))
	a.mux.Handle("PUT /api/products/{id}", auth.RequireAuth(http.HandlerFunc(ph.Update)))
	a.mux.Handle("DELETE /api/products/{id}", auth.RequireAuth(http.HandlerFunc(ph.Delete)))

	ih := a.deps.Invoices
	a.mux.Handle("POST /api/invoices", auth.RequireAuth(http.HandlerFunc(ih.Create)))
	a.mux.Handle("GET /api/invoices", auth.RequireAuth(http.HandlerFunc(ih.List)))
	a.mux.Handle("GET /api/invoices/search", auth.RequireAuth(http.HandlerFunc(ih.Search)))
	a.mux.Handle("POST /api/invoices/send-whatsapp", auth.RequireAuth(http.HandlerFunc(ih.Send)))
	a.mux.Handle("GET /api/invoices/{id}", auth.RequireAuth(http.HandlerFunc(ih.Get)))
	a.mux.Handle("GET /api/invoices/{id}/pdf", auth.RequireAuth(http.HandlerFunc(ih.PDF)))
}

func (a *Router) health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Ping(ctx); err != nil {
			a.logger.Warn("database ping failed", zap.Error(err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}
