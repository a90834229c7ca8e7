package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rl1809/retail-pos/internal/adapter/storage"
	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/core/service"
)

type testServices struct {
	store    *storage.MemoryStore
	catalog  *service.CatalogService
	carts    *service.CartService
	checkout *service.CheckoutService
	reports  *service.ReportService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(store.Close)
	cache := storage.NewMemoryCache(0)
	return &testServices{
		store:    store,
		catalog:  service.NewCatalogService(store, nil),
		carts:    service.NewCartService(store, cache, nil),
		checkout: service.NewCheckoutService(store, store, cache, cache, nil),
		reports:  service.NewReportService(store, store, 0),
	}
}

func (s *testServices) seed(t *testing.T, id, price string, stock int) {
	t.Helper()
	_, err := s.catalog.Create(context.Background(), id, "product "+id, "General", decimal.RequireFromString(price), stock)
	require.NoError(t, err)
}

func newTestServer(t *testing.T, limiter *rate.Limiter) (*httptest.Server, *testServices) {
	t.Helper()
	svc := newTestServices(t)
	h := NewHTTPHandler(svc.catalog, svc.carts, svc.checkout, svc.reports, limiter, nil)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeInto[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestProducts(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, body := do(t, srv, http.MethodPost, "/api/v1/products", map[string]any{
		"id": "milk", "name": "Milk", "category": "Dairy", "unit_price": "1.99", "stock": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = do(t, srv, http.MethodPost, "/api/v1/products", map[string]any{
		"id": "milk", "name": "Milk", "unit_price": "1.99", "stock": 4,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_EXISTS", decodeInto[errorResponse](t, body).Code)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/products", map[string]any{"name": "No stock field", "unit_price": "1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/api/v1/products", map[string]any{"id": "free", "name": "No price", "stock": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unit_price is required")
	assert.Contains(t, decodeInto[errorResponse](t, body).Message, "unit_price")
	resp, _ = do(t, srv, http.MethodGet, "/api/v1/products/free", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "nothing was created")

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Bad", "unit_price": "-1", "stock": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPut, "/api/v1/products/milk", map[string]any{"stock": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 20, decodeInto[domain.Product](t, body).Stock)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/products?q=mil&in_stock=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[[]domain.Product](t, body), 1)

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/products?in_stock=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/products/low-stock?threshold=25", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[[]domain.Product](t, body), 1)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/products/low-stock?threshold=0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/products/milk", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/products/milk", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	notFound := decodeInto[errorResponse](t, body)
	assert.Equal(t, "NOT_FOUND", notFound.Code)
	assert.NotEmpty(t, notFound.RequestID, "errors echo the request id")
}

func TestCartAndCheckoutFlow(t *testing.T) {
	srv, svc := newTestServer(t, nil)
	svc.seed(t, "x", "10.00", 3)

	for i := 0; i < 3; i++ {
		resp, body := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/cart/items", map[string]string{"item_id": "x"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.True(t, *decodeInto[cartResponse](t, body).Added)
	}

	resp, body := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/cart/items", map[string]string{"item_id": "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := decodeInto[cartResponse](t, body)
	assert.False(t, *cart.Added, "fourth add is clamped")
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("30").Equal(cart.Total))

	resp, body = do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", map[string]string{
		"cashier_id": "alice", "payment_method": "card",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	sale := decodeInto[domain.Sale](t, body)
	assert.Equal(t, "30", sale.TotalAmount.String())
	assert.Equal(t, domain.PaymentCard, sale.PaymentMethod)

	p, err := svc.store.FindByID(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/terminals/T1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeInto[cartResponse](t, body).Lines)

	resp, body = do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", map[string]string{"cashier_id": "alice"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "EMPTY_CART", decodeInto[errorResponse](t, body).Code)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/sales", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[[]domain.Sale](t, body), 1)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeInto[service.DashboardStats](t, body)
	assert.Equal(t, 1, stats.TotalTransactions)
	assert.Equal(t, 1, stats.LowStockItems)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/reports/top-sellers?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	top := decodeInto[[]service.TopSeller](t, body)
	require.Len(t, top, 1)
	assert.Equal(t, 3, top[0].Quantity)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/reports/sales-by-day", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[[]service.DailySales](t, body), 1)
}

func TestSetQuantityClampsAndRemoves(t *testing.T) {
	srv, svc := newTestServer(t, nil)
	svc.seed(t, "x", "2", 7)

	resp, body := do(t, srv, http.MethodPut, "/api/v1/terminals/T1/cart/items/x", map[string]int{"quantity": 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 7, decodeInto[cartResponse](t, body).Lines[0].Quantity)

	resp, _ = do(t, srv, http.MethodPut, "/api/v1/terminals/T1/cart/items/x", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "quantity is required")

	resp, body = do(t, srv, http.MethodPut, "/api/v1/terminals/T1/cart/items/x", map[string]int{"quantity": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeInto[cartResponse](t, body).Lines)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/terminals/T1/cart/items", map[string]string{"item_id": "ghost"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/terminals/T1/cart", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	srv, svc := newTestServer(t, nil)
	svc.seed(t, "x", "1", 5)

	resp, _ := do(t, srv, http.MethodPut, "/api/v1/terminals/T1/cart/items/x", map[string]int{"quantity": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, svc.store.DecrementStock(context.Background(), "x", 3))

	resp, body := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", map[string]string{"cashier_id": "bob"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decodeInto[errorResponse](t, body)
	assert.Equal(t, "INSUFFICIENT_STOCK", errResp.Code)
	require.NotNil(t, errResp.Stock)
	assert.Equal(t, 2, errResp.Stock.Available)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/terminals/T1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeInto[cartResponse](t, body).Lines, 1, "cart survives the failed checkout")
}

func TestCheckoutDuplicateRequest(t *testing.T) {
	srv, svc := newTestServer(t, nil)
	svc.seed(t, "x", "1", 5)

	body := map[string]string{"cashier_id": "bob", "request_id": "r-1"}
	do(t, srv, http.MethodPost, "/api/v1/terminals/T1/cart/items", map[string]string{"item_id": "x"})
	resp, _ := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	do(t, srv, http.MethodPost, "/api/v1/terminals/T1/cart/items", map[string]string{"item_id": "x"})
	resp, raw := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_REQUEST", decodeInto[errorResponse](t, raw).Code)
}

func TestCheckoutRateLimited(t *testing.T) {
	srv, svc := newTestServer(t, rate.NewLimiter(rate.Limit(0.001), 1))
	svc.seed(t, "x", "1", 5)

	resp, _ := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", map[string]string{"cashier_id": "bob"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "first request passes the limiter")

	resp, body := do(t, srv, http.MethodPost, "/api/v1/terminals/T1/checkout", map[string]string{"cashier_id": "bob"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", decodeInto[errorResponse](t, body).Code)

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/terminals/T1/cart", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "cart routes are not throttled")
}

func TestListSalesQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, _ := do(t, srv, http.MethodGet, "/api/v1/sales?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/api/v1/sales?from=2026-01-01&to=2026-02-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/reports/top-sellers?limit=-2", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Invalid("bad"), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{&domain.StockError{ItemID: "x"}, http.StatusConflict},
		{domain.ErrNegativeStock, http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrEmptyCart, http.StatusUnprocessableEntity},
		{domain.ErrPersistence, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := classify(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
	}
}
