package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/config"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/queue"
	"github.com/fairyhunter13/order-fulfillment-service/internal/service"
)

// processTimeout bounds one allocation pass started over HTTP.
const processTimeout = 30 * time.Second

// App holds the dependencies of the HTTP handlers.
type App struct {
	Cfg     config.Config
	Svc     *service.Service
	Manager *queue.Manager
	closing atomic.Bool
	started time.Time
}

// NewApp creates an App. m may be nil when no relay is running.
func NewApp(cfg config.Config, svc *service.Service, m *queue.Manager) *App {
	return &App{Cfg: cfg, Svc: svc, Manager: m, started: time.Now()}
}

// StartShutdown rejects further writes. Relay intake stays open so writes
// already in flight still reach the relay.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

// apiHandler is a handler whose errors are rendered by handle.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

func (a *App) handle(h apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

// acceptingWrites turns writes away once shutdown has started, so no ledger
// entry is produced after relay intake closes.
func (a *App) acceptingWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.closing.Load() {
			WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt parses an optional non-negative integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.Validationf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// Inventory

type createProductRequest struct {
	Name     string           `json:"name" validate:"required"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
	Quantity int64            `json:"quantity" validate:"gte=0"`
	Category string           `json:"category" validate:"required"`
}

type createProductResponse struct {
	Status    string        `json:"status"`
	ProductID int64         `json:"product_id"`
	Product   model.Product `json:"product"`
}

type adjustStockRequest struct {
	QuantityChange *int64 `json:"quantityChange" validate:"required"`
}

func (a *App) listProductsHandler(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, a.Svc.ListProducts())
}

func (a *App) createProductHandler(w http.ResponseWriter, r *http.Request) error {
	var req createProductRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return err
	}
	p, err := a.Svc.CreateProduct(req.Name, *req.Price, req.Quantity, req.Category)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, createProductResponse{Status: "success", ProductID: p.ID, Product: p})
}

func (a *App) getProductHandler(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	p, err := a.Svc.GetProduct(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}

func (a *App) adjustStockHandler(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req adjustStockRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return err
	}
	p, err := a.Svc.AdjustStock(r.Context(), id, *req.QuantityChange)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}

func (a *App) lowStockHandler(w http.ResponseWriter, r *http.Request) error {
	threshold, err := queryInt(r, "threshold")
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a.Svc.LowStock(threshold))
}

func (a *App) searchProductsHandler(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	return writeJSON(w, http.StatusOK, a.Svc.SearchProducts(q.Get("name"), q.Get("category")))
}

// Orders

type placeOrderRequest struct {
	ProductID    int64          `json:"productId" validate:"gt=0"`
	Quantity     int64          `json:"quantity" validate:"gt=0"`
	CustomerName string         `json:"customerName" validate:"required"`
	Priority     model.Priority `json:"priority" validate:"omitempty,min=1,max=3"`
}

type placeOrderResponse struct {
	Status  string      `json:"status"`
	OrderID int64       `json:"order_id"`
	Order   model.Order `json:"order"`
}

type processOrdersRequest struct {
	Count *int `json:"count" validate:"omitempty,gte=1"`
}

type processOrdersResponse struct {
	Status            string  `json:"status"`
	ProcessedOrders   []int64 `json:"processed_orders"`
	BackorderedOrders []int64 `json:"backordered_orders"`
}

func (a *App) listOrdersHandler(w http.ResponseWriter, r *http.Request) error {
	orders, err := a.Svc.ListOrders(r.URL.Query().Get("status"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, orders)
}

func (a *App) placeOrderHandler(w http.ResponseWriter, r *http.Request) error {
	var req placeOrderRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return err
	}
	o, err := a.Svc.PlaceOrder(req.ProductID, req.Quantity, req.CustomerName, req.Priority)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, placeOrderResponse{Status: "success", OrderID: o.ID, Order: o})
}

func (a *App) getOrderHandler(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	o, err := a.Svc.GetOrder(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, o)
}

func (a *App) cancelOrderHandler(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	o, err := a.Svc.CancelOrder(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, o)
}

func (a *App) processOrdersHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), processTimeout)
	defer cancel()

	var req processOrdersRequest
	if err := decodeJSON(r, &req, true); err != nil {
		return err
	}
	count := 0
	if req.Count != nil {
		count = *req.Count
	}
	res, err := a.Svc.ProcessOrders(ctx, count)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, processOrdersResponse{
		Status:            "success",
		ProcessedOrders:   res.Completed,
		BackorderedOrders: res.StillBackordered,
	})
}

// Deliveries

type dispatchRequest struct {
	Count *int `json:"count" validate:"omitempty,gte=1"`
}

type dispatchResponse struct {
	Status     string        `json:"status"`
	Dispatched []model.Order `json:"dispatched"`
}

func (a *App) dispatchHandler(w http.ResponseWriter, r *http.Request) error {
	var req dispatchRequest
	if err := decodeJSON(r, &req, true); err != nil {
		return err
	}
	count := 1
	if req.Count != nil {
		count = *req.Count
	}
	out, err := a.Svc.Dispatch(count)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, dispatchResponse{Status: "success", Dispatched: out})
}

// Ledger, status and composite cost

func (a *App) transactionsHandler(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	var productID *int64
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperr.Validationf("invalid product_id %q", raw)
		}
		productID = &id
	}
	txs, err := a.Svc.Transactions(int(limit), productID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, txs)
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, a.Svc.Status())
}

type compositeCostRequest struct {
	Components []model.Component `json:"components" validate:"required,min=1"`
}

type compositeCostResponse struct {
	Status    string          `json:"status"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

func (a *App) compositeCostHandler(w http.ResponseWriter, r *http.Request) error {
	var req compositeCostRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return err
	}
	total, err := a.Svc.CompositeCost(req.Components)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, compositeCostResponse{Status: "success", TotalCost: total})
}

// Operational endpoints

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Svc.Status()
	m := map[string]any{
		"total_transactions": st.TotalTransactions,
		"pending_orders":     st.PendingOrders,
		"uptime_sec":         time.Since(a.started).Seconds(),
	}
	if a.Manager != nil {
		qm := a.Manager.QueueMetrics()
		m["transactions_enqueued"] = qm.Enqueued
		m["transactions_processed"] = qm.Processed
		m["transactions_failed"] = qm.Failed
		m["backlog_size"] = qm.BacklogSize
		m["queue_depth"] = qm.QueueDepth
		m["worker_count"] = a.Manager.WorkerCount()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Order Fulfillment API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
