package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/core/service"
	"github.com/rl1809/retail-pos/internal/logger"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	catalog  *service.CatalogService
	carts    *service.CartService
	checkout *service.CheckoutService
	reports  *service.ReportService
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewHTTPHandler builds the JSON API. limiter throttles checkout only and may
// be nil.
func NewHTTPHandler(
	catalog *service.CatalogService,
	carts *service.CartService,
	checkout *service.CheckoutService,
	reports *service.ReportService,
	limiter *rate.Limiter,
	log *zap.Logger,
) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{
		catalog:  catalog,
		carts:    carts,
		checkout: checkout,
		reports:  reports,
		limiter:  limiter,
		validate: newValidator(),
		logger:   log.Named("http"),
		now:      time.Now,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/low-stock", h.LowStock)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})

		r.Route("/terminals/{terminal}", func(r chi.Router) {
			r.Get("/cart", h.GetCart)
			r.Delete("/cart", h.ClearCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Put("/cart/items/{item}", h.SetCartQuantity)
			r.Delete("/cart/items/{item}", h.RemoveCartItem)
			r.With(rateLimit(h.limiter)).Post("/checkout", h.Checkout)
		})

		r.Get("/sales", h.ListSales)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", h.Dashboard)
			r.Get("/sales-by-day", h.SalesByDay)
			r.Get("/top-sellers", h.TopSellers)
		})
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Products

type createProductRequest struct {
	ID        string           `json:"id" validate:"omitempty,max=64"`
	Name      string           `json:"name" validate:"required,max=200"`
	Category  string           `json:"category" validate:"max=100"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"required"`
	Stock     *int             `json:"stock" validate:"required,min=0"`
}

type updateProductRequest struct {
	Name      *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Category  *string          `json:"category" validate:"omitempty,max=100"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Stock     *int             `json:"stock" validate:"omitempty,min=0"`
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.ProductFilter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
	}
	if v := q.Get("in_stock"); v != "" {
		inStock, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, domain.Invalid("in_stock must be a boolean"))
			return
		}
		filter.InStockOnly = inStock
	}

	products, err := h.catalog.Search(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.catalog.Create(r.Context(), req.ID, req.Name, req.Category, *req.UnitPrice, *req.Stock)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), domain.ProductUpdate{
		Name:      req.Name,
		Category:  req.Category,
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", service.DefaultLowStockThreshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	products, err := h.catalog.LowStock(r.Context(), threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Carts

type addItemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type cartResponse struct {
	TerminalID string            `json:"terminal_id"`
	Lines      []domain.CartLine `json:"lines"`
	Total      decimal.Decimal   `json:"total"`
	Added      *bool             `json:"added,omitempty"`
}

func newCartResponse(terminalID string, cart *domain.Cart) cartResponse {
	return cartResponse{
		TerminalID: terminalID,
		Lines:      cart.Lines(),
		Total:      cart.Total(),
	}
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	cart, err := h.carts.Get(r.Context(), terminal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(terminal, cart))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), chi.URLParam(r, "terminal")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	terminal := chi.URLParam(r, "terminal")
	cart, added, err := h.carts.AddItem(r.Context(), terminal, req.ItemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := newCartResponse(terminal, cart)
	resp.Added = &added
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	terminal := chi.URLParam(r, "terminal")
	cart, err := h.carts.SetQuantity(r.Context(), terminal, chi.URLParam(r, "item"), *req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(terminal, cart))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	terminal := chi.URLParam(r, "terminal")
	cart, err := h.carts.RemoveItem(r.Context(), terminal, chi.URLParam(r, "item"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(terminal, cart))
}

// Checkout

type checkoutRequest struct {
	CashierID     string `json:"cashier_id" validate:"required,max=64"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=16"`
	RequestID     string `json:"request_id" validate:"omitempty,max=128"`
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	sale, err := h.checkout.Checkout(r.Context(), service.CheckoutRequest{
		TerminalID:    chi.URLParam(r, "terminal"),
		CashierID:     req.CashierID,
		PaymentMethod: req.PaymentMethod,
		RequestID:     req.RequestID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// Ledger and reports

func (h *HTTPHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sales, err := h.reports.Sales(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Dashboard(r.Context(), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) SalesByDay(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultSalesByDayWindow)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	daily, err := h.reports.SalesByDay(r.Context(), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (h *HTTPHandler) TopSellers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultTopSellerLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	top, err := h.reports.TopSellers(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// decode reads and validates a JSON body. On failure it writes the 400
// response itself and returns false.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, domain.Invalid("invalid request body: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, r, domain.Invalid("%s", describeValidation(err)))
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request error", zap.Error(err))
	}
	resp := newErrorResponse(err)
	resp.RequestID = logger.RequestID(r.Context())
	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Invalid("%s must be a non-negative integer", key)
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates, read as UTC midnight.
func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, domain.Invalid("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", key)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
