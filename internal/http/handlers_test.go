package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fairyhunter13/order-fulfillment-service/internal/config"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/queue"
	"github.com/fairyhunter13/order-fulfillment-service/internal/relay"
	"github.com/fairyhunter13/order-fulfillment-service/internal/service"
)

type errResp struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func setupApp(t *testing.T) (*App, *queue.Manager, context.CancelFunc, http.Handler) {
	t.Helper()
	cfg := config.Load()
	q := queue.New(128)
	mgr := queue.NewManager(cfg, q, relay.LogPublisher{})
	svc := service.New(service.Options{Sink: mgr})
	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	app := NewApp(cfg, svc, mgr)
	mux := NewRouter(app)
	return app, mgr, func() { cancel(); mgr.Stop() }, mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createProduct(t *testing.T, h http.Handler, body string) int64 {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/inventory", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	return decode[struct {
		ProductID int64 `json:"product_id"`
	}](t, rr).ProductID
}

func placeOrder(t *testing.T, h http.Handler, body string) int64 {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/orders", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("place order: expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	return decode[struct {
		OrderID int64 `json:"order_id"`
	}](t, rr).OrderID
}

func TestOpenAPIServed(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodGet, "/openapi.yaml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("expected content-type set")
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestDocsServed(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodGet, "/docs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}

func TestHealthzOK(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestMetricsHandler(t *testing.T) {
	_, mgr, cleanup, mux := setupApp(t)
	defer cleanup()
	for i := 0; i < 5; i++ {
		createProduct(t, mux, `{"name":"m","price":1,"quantity":1,"category":"c"}`)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ok := mgr.DrainUntil(ctx); !ok {
		t.Fatalf("drain timeout")
	}
	rr := do(t, mux, http.MethodGet, "/debug/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	m := decode[map[string]any](t, rr)
	if _, ok := m["worker_count"]; !ok {
		t.Fatalf("missing worker_count")
	}
	if m["transactions_processed"] != float64(5) {
		t.Fatalf("expected 5 processed, got %v", m["transactions_processed"])
	}
}

func TestInventoryLifecycle(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createProduct(t, mux, `{"name":"Laptop","price":999.99,"quantity":10,"category":"Electronics"}`)

	rr := do(t, mux, http.MethodGet, "/inventory", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"price":999.99`) {
		t.Fatalf("expected numeric price, got %s", rr.Body.String())
	}
	products := decode[[]model.Product](t, rr)
	if len(products) != 1 || products[0].ID != id || products[0].Quantity != 10 {
		t.Fatalf("unexpected products: %+v", products)
	}

	rr = do(t, mux, http.MethodPut, "/inventory/1", `{"quantityChange":-4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	if p := decode[model.Product](t, rr); p.Quantity != 6 {
		t.Fatalf("expected quantity 6, got %d", p.Quantity)
	}

	rr = do(t, mux, http.MethodPut, "/inventory/1", `{"quantityChange":-7}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if e := decode[errResp](t, rr); e.Error != "insufficient_stock" || e.Details == "" {
		t.Fatalf("unexpected error body: %+v", e)
	}

	rr = do(t, mux, http.MethodGet, "/api/inventory/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 under /api, got %d", rr.Code)
	}
	rr = do(t, mux, http.MethodGet, "/inventory/99", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = do(t, mux, http.MethodGet, "/inventory/abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateProductValidation(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	cases := []string{
		`{"price":1,"quantity":1,"category":"c"}`,
		`{"name":"x","quantity":1,"category":"c"}`,
		`{"name":"x","price":-1,"quantity":1,"category":"c"}`,
		`{"name":"x","price":1,"quantity":-1,"category":"c"}`,
		`{"name":"x","price":1,"quantity":1,"category":"  "}`,
	}
	for _, body := range cases {
		rr := do(t, mux, http.MethodPost, "/inventory", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
		if e := decode[errResp](t, rr); e.Error != "validation_error" {
			t.Fatalf("%s: unexpected error %+v", body, e)
		}
	}
}

func TestUnknownFieldsAndMediaType(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodPost, "/inventory", `{"name":"x","price":1,"quantity":1,"category":"c","foo":"bar"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}
}

func TestOrderFlow(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	pid := createProduct(t, mux, `{"name":"Mouse","price":24.99,"quantity":5,"category":"Accessories"}`)

	low := placeOrder(t, mux, `{"productId":1,"quantity":2,"customerName":"Bea","priority":1}`)
	high := placeOrder(t, mux, `{"productId":1,"quantity":2,"customerName":"Al","priority":"high"}`)
	big := placeOrder(t, mux, `{"productId":1,"quantity":50,"customerName":"Cy"}`)

	rr := do(t, mux, http.MethodGet, "/orders/3", "")
	if o := decode[model.Order](t, rr); o.Priority != model.PriorityLow || o.Status != model.OrderPending {
		t.Fatalf("unexpected order: %+v", o)
	}

	rr = do(t, mux, http.MethodPost, "/orders/process", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	res := decode[struct {
		Status      string  `json:"status"`
		Processed   []int64 `json:"processed_orders"`
		Backordered []int64 `json:"backordered_orders"`
	}](t, rr)
	if res.Status != "success" || len(res.Processed) != 2 || res.Processed[0] != high || res.Processed[1] != low {
		t.Fatalf("unexpected processing result: %+v", res)
	}
	if len(res.Backordered) != 1 || res.Backordered[0] != big {
		t.Fatalf("unexpected backorders: %+v", res)
	}

	rr = do(t, mux, http.MethodGet, "/status", "")
	st := decode[model.SystemStatus](t, rr)
	if st.TotalProducts != 1 || st.PendingOrders != 1 || st.Backorders != 1 || st.ReadyForDelivery != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}

	rr = do(t, mux, http.MethodGet, "/transactions?limit=2", "")
	txs := decode[[]model.Transaction](t, rr)
	if len(txs) != 2 || txs[0].Type != model.TxOrderFulfilled || txs[0].Details != "Order #1" {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
	rr = do(t, mux, http.MethodGet, "/transactions?limit=100&product_id=1", "")
	if txs := decode[[]model.Transaction](t, rr); len(txs) != 6 || *txs[len(txs)-1].ProductID != pid {
		t.Fatalf("unexpected product transactions: %d", len(txs))
	}

	rr = do(t, mux, http.MethodPost, "/orders/3/cancel", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = do(t, mux, http.MethodPost, "/orders/3/cancel", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	rr = do(t, mux, http.MethodPost, "/deliveries/dispatch", `{"count":5}`)
	d := decode[struct {
		Dispatched []model.Order `json:"dispatched"`
	}](t, rr)
	if len(d.Dispatched) != 2 || d.Dispatched[0].ID != low {
		t.Fatalf("unexpected dispatch: %+v", d)
	}

	rr = do(t, mux, http.MethodGet, "/orders?status=completed", "")
	if orders := decode[[]model.Order](t, rr); len(orders) != 2 {
		t.Fatalf("expected 2 completed orders, got %d", len(orders))
	}
}

func TestProcessOrdersWindowAndValidation(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	createProduct(t, mux, `{"name":"Cable","price":9.99,"quantity":100,"category":"Accessories"}`)
	for i := 0; i < 3; i++ {
		placeOrder(t, mux, `{"productId":1,"quantity":1,"customerName":"Dee","priority":2}`)
	}
	rr := do(t, mux, http.MethodPost, "/orders/process", `{"count":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = do(t, mux, http.MethodPost, "/orders/process", `{"count":2}`)
	res := decode[struct {
		Processed []int64 `json:"processed_orders"`
	}](t, rr)
	if len(res.Processed) != 2 || res.Processed[0] != 1 || res.Processed[1] != 2 {
		t.Fatalf("unexpected window: %+v", res)
	}
	rr = do(t, mux, http.MethodPost, "/orders/process", `{}`)
	res = decode[struct {
		Processed []int64 `json:"processed_orders"`
	}](t, rr)
	if len(res.Processed) != 1 || res.Processed[0] != 3 {
		t.Fatalf("unexpected second pass: %+v", res)
	}
}

func TestPlaceOrderErrors(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	createProduct(t, mux, `{"name":"SSD","price":129.99,"quantity":18,"category":"Storage"}`)
	cases := map[string]int{
		`{"productId":1,"quantity":0,"customerName":"A"}`:              http.StatusBadRequest,
		`{"productId":1,"quantity":1,"customerName":""}`:               http.StatusBadRequest,
		`{"productId":1,"quantity":1,"customerName":"A","priority":7}`: http.StatusBadRequest,
		`{"productId":9,"quantity":1,"customerName":"A"}`:              http.StatusNotFound,
	}
	for body, want := range cases {
		if rr := do(t, mux, http.MethodPost, "/orders", body); rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", body, want, rr.Code)
		}
	}
}

func TestCompositeCost(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	createProduct(t, mux, `{"name":"A","price":3.00,"quantity":1,"category":"c"}`)
	createProduct(t, mux, `{"name":"B","price":"2.50","quantity":1,"category":"c"}`)

	rr := do(t, mux, http.MethodPost, "/composite-cost", `{"components":[{"productId":1,"quantity":2},{"productId":2,"quantity":1}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rr.Code, rr.Body.String())
	}
	res := decode[struct {
		TotalCost float64 `json:"total_cost"`
	}](t, rr)
	if res.TotalCost != 8.5 {
		t.Fatalf("expected 8.5, got %v", res.TotalCost)
	}

	rr = do(t, mux, http.MethodPost, "/composite-cost", `{"components":[{"productId":1,"quantity":1},{"productId":1,"quantity":1}]}`)
	if res := decode[struct {
		TotalCost float64 `json:"total_cost"`
	}](t, rr); res.TotalCost != 6 {
		t.Fatalf("expected 6, got %v", res.TotalCost)
	}

	rr = do(t, mux, http.MethodPost, "/composite-cost", `{"components":[{"productId":7,"quantity":1}]}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = do(t, mux, http.MethodPost, "/composite-cost", `{"components":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLowStockAndSearch(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	createProduct(t, mux, `{"name":"Router","price":69.99,"quantity":7,"category":"Networking"}`)
	createProduct(t, mux, `{"name":"Webcam","price":59.99,"quantity":2,"category":"Accessories"}`)

	rr := do(t, mux, http.MethodGet, "/inventory/low-stock", "")
	if got := decode[[]model.Product](t, rr); len(got) != 1 || got[0].Name != "Webcam" {
		t.Fatalf("unexpected low stock: %+v", got)
	}
	rr = do(t, mux, http.MethodGet, "/inventory/low-stock?threshold=10", "")
	if got := decode[[]model.Product](t, rr); len(got) != 2 {
		t.Fatalf("unexpected low stock: %+v", got)
	}
	rr = do(t, mux, http.MethodGet, "/inventory/search?category=networking", "")
	if got := decode[[]model.Product](t, rr); len(got) != 1 || got[0].Name != "Router" {
		t.Fatalf("unexpected search: %+v", got)
	}
	rr = do(t, mux, http.MethodGet, "/inventory/search?name=zzz", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestShutdownBehavior(t *testing.T) {
	app, _, cleanup, mux := setupApp(t)
	defer cleanup()
	app.StartShutdown()
	rr := do(t, mux, http.MethodPost, "/inventory", `{"name":"x","price":1,"quantity":1,"category":"c"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if rr := do(t, mux, http.MethodGet, "/status", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads should still be served, got %d", rr.Code)
	}
}
