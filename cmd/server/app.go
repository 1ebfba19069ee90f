package main

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/handlers"
	"github.com/diewo77/go-billing/internal/middleware"
	"github.com/diewo77/go-billing/internal/render"
	"github.com/diewo77/go-billing/internal/services"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	handler http.Handler
	db      *gorm.DB
	svc     *services.Services
	docs    *handlers.Documents
}

// NewApp creates a new application with all routes configured. limit is the
// rate limiting middleware; nil disables it.
func NewApp(db *gorm.DB, svc *services.Services, renderer *render.Renderer, limit func(http.Handler) http.Handler) *App {
	app := &App{
		mux:  http.NewServeMux(),
		db:   db,
		svc:  svc,
		docs: handlers.NewDocuments(db, renderer),
	}
	app.setupRoutes()

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Logger, middleware.Recover}
	if limit != nil {
		mws = append(mws, limit)
	}
	mws = append(mws, auth.Middleware)
	app.handler = middleware.Chain(app.mux, mws...)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	ah := handlers.NewAuthHandler(a.db)

	a.mux.HandleFunc("GET /health", a.health)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("POST /session", ah.Login)
	a.mux.HandleFunc("DELETE /session", ah.Logout)

	// ─────────────────────────────────────────────────────────────────────────
	// Tenant routes
	// ─────────────────────────────────────────────────────────────────────────
	oh := handlers.NewOrganizationHandler(a.db)
	a.mux.Handle("GET /organization", a.requireTenant(oh.Get))
	a.mux.Handle("PUT /organization", a.requireTenant(oh.Update))

	ph := handlers.NewProductHandler(a.db)
	a.mux.Handle("GET /products", a.requireTenant(ph.List))
	a.mux.Handle("POST /products", a.requireTenant(ph.Create))
	a.mux.Handle("GET /products/{id}", a.requireTenant(ph.Get))
	a.mux.Handle("PUT /products/{id}", a.requireTenant(ph.Update))
	a.mux.Handle("DELETE /products/{id}", a.requireTenant(ph.Delete))

	// Quotations
	qh := handlers.NewQuotationHandler(a.svc, a.docs)
	a.mux.Handle("GET /quotations", a.requireTenant(qh.List))
	a.mux.Handle("POST /quotations", a.requireTenant(qh.Create))
	a.mux.Handle("GET /quotations/{id}", a.requireTenant(qh.Get))
	a.mux.Handle("PUT /quotations/{id}", a.requireTenant(qh.Update))
	a.mux.Handle("DELETE /quotations/{id}", a.requireTenant(qh.Delete))
	a.mux.Handle("POST /quotations/{id}/send", a.requireTenant(qh.Send))
	a.mux.Handle("POST /quotations/{id}/reject", a.requireTenant(qh.Reject))
	a.mux.Handle("POST /quotations/{id}/cancel", a.requireTenant(qh.Cancel))
	a.mux.Handle("POST /quotations/{id}/convert", a.requireTenant(qh.Convert))
	a.mux.Handle("GET /quotations/{id}/prefill", a.requireTenant(qh.Prefill))
	a.mux.Handle("GET /quotations/{id}/pdf", a.requireTenant(qh.PDF))

	// Invoices
	ih := handlers.NewInvoiceHandler(a.svc, a.docs)
	a.mux.Handle("GET /invoices", a.requireTenant(ih.List))
	a.mux.Handle("POST /invoices", a.requireTenant(ih.Create))
	a.mux.Handle("GET /invoices/{id}", a.requireTenant(ih.Get))
	a.mux.Handle("PUT /invoices/{id}", a.requireTenant(ih.Update))
	a.mux.Handle("DELETE /invoices/{id}", a.requireTenant(ih.Delete))
	a.mux.Handle("POST /invoices/{id}/send", a.requireTenant(ih.Send))
	a.mux.Handle("POST /invoices/{id}/draft", a.requireTenant(ih.Draft))
	a.mux.Handle("POST /invoices/{id}/cancel", a.requireTenant(ih.Cancel))
	a.mux.Handle("GET /invoices/{id}/pdf", a.requireTenant(ih.PDF))

	// Payments
	pay := handlers.NewPaymentHandler(a.svc.Ledger)
	a.mux.Handle("GET /invoices/{id}/payments", a.requireTenant(pay.List))
	a.mux.Handle("POST /invoices/{id}/payments", a.requireTenant(pay.Record))
	a.mux.Handle("PUT /payments/{id}", a.requireTenant(pay.Update))
	a.mux.Handle("DELETE /payments/{id}", a.requireTenant(pay.Delete))

	// Delivery notes
	dh := handlers.NewDeliveryNoteHandler(a.svc.DeliveryNotes, a.docs)
	a.mux.Handle("POST /invoices/{id}/delivery-note", a.requireTenant(dh.Create))
	a.mux.Handle("GET /delivery-notes/{id}", a.requireTenant(dh.Get))
	a.mux.Handle("GET /delivery-notes/{id}/pdf", a.requireTenant(dh.PDF))
}

// requireTenant wraps a handler to require a tenant session.
func (a *App) requireTenant(h http.HandlerFunc) http.Handler {
	return auth.RequireTenant(h)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// healthz also checks that the database answers.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}
