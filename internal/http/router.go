package httpapi

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpopenapi "github.com/fairyhunter13/order-fulfillment-service/internal/http/openapi"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
// API routes are served both at the root and under /api.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(WithCORS)

	r.Get("/healthz", app.healthHandler)
	r.Get("/debug/metrics", app.metricsHandler)
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/openapi.yaml", httpopenapi.Handler)
	r.Get("/docs", app.docsHandler)

	app.registerAPI(r)
	r.Route("/api", app.registerAPI)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return WithRequestID(WithLogging(r))
}

func (a *App) registerAPI(r chi.Router) {
	r.Get("/inventory", a.handle(a.listProductsHandler))
	r.Get("/inventory/low-stock", a.handle(a.lowStockHandler))
	r.Get("/inventory/search", a.handle(a.searchProductsHandler))
	r.Get("/inventory/{id}", a.handle(a.getProductHandler))
	r.Get("/orders", a.handle(a.listOrdersHandler))
	r.Get("/orders/{id}", a.handle(a.getOrderHandler))
	r.Get("/transactions", a.handle(a.transactionsHandler))
	r.Get("/status", a.handle(a.statusHandler))
	r.Post("/composite-cost", a.handle(a.compositeCostHandler))

	r.Group(func(r chi.Router) {
		r.Use(a.acceptingWrites)
		r.Post("/inventory", a.handle(a.createProductHandler))
		r.Put("/inventory/{id}", a.handle(a.adjustStockHandler))
		r.Post("/orders", a.handle(a.placeOrderHandler))
		r.Post("/orders/process", a.handle(a.processOrdersHandler))
		r.Post("/orders/{id}/cancel", a.handle(a.cancelOrderHandler))
		r.Post("/deliveries/dispatch", a.handle(a.dispatchHandler))
	})
}
