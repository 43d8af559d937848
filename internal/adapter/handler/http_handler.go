package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/core/service"
	"github.com/rl1809/retail-pos/internal/metrics"
)

const idempotencyHeader = "Idempotency-Key"

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	catalog   *service.CatalogService
	checkout  *service.CheckoutService
	analytics *service.AnalyticsService
	invoices  *service.InvoiceService
	db        Pinger
	metrics   *metrics.ServerMetrics
	logger    *slog.Logger
}

type Services struct {
	Catalog   *service.CatalogService
	Checkout  *service.CheckoutService
	Analytics *service.AnalyticsService
	Invoices  *service.InvoiceService
}

type ProductRequest struct {
	Name          string           `json:"name"`
	SKU           string           `json:"sku"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	MinStockLevel *int             `json:"min_stock_level"`
}

type CheckoutItem struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type CheckoutRequest struct {
	CustomerName   string          `json:"customerName"`
	Items          []CheckoutItem  `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

type CheckoutResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	InvoiceID     int64           `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Replayed      bool            `json:"replayed,omitempty"`
}

func NewHTTPHandler(svc Services, db Pinger, m *metrics.ServerMetrics, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		catalog:   svc.Catalog,
		checkout:  svc.Checkout,
		analytics: svc.Analytics,
		invoices:  svc.Invoices,
		db:        db,
		metrics:   m,
		logger:    logger,
	}
}

// Router builds the gin engine serving the REST API.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), observe(h.metrics, h.logger))

	r.GET("/health", h.HealthCheck)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.POST("/products", h.AddProduct)
		api.PUT("/products/:id", h.UpdateProduct)
		api.DELETE("/products/:id", h.DeleteProduct)

		api.POST("/checkout", h.Checkout)

		api.GET("/analytics", h.Analytics)
		api.GET("/purchase-history", h.PurchaseHistory)
		api.GET("/invoices/:id", h.GetInvoice)
	}
	return r
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			h.logger.ErrorContext(c.Request.Context(), "health check failed", slog.Any("error", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	filter := domain.ProductFilter{Search: c.Query("q")}
	if v := c.Query("low_stock"); v != "" {
		lowOnly, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "low_stock must be true or false"})
			return
		}
		filter.LowStockOnly = lowOnly
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) AddProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Price == nil || req.StockQuantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and stock_quantity are required"})
		return
	}

	product, err := h.catalog.AddProduct(c.Request.Context(), req.Name, req.SKU, *req.Price, *req.StockQuantity, req.MinStockLevel)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and stock_quantity must be valid numbers"})
		return
	}
	if req.Price == nil || req.StockQuantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price and stock_quantity are required"})
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, *req.Price, *req.StockQuantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	deleted, err := h.catalog.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        fmt.Sprintf("Product %q has been deleted", deleted.Name),
		"detached_items": deleted.DetachedItems,
	})
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.countCheckout(domain.ErrValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cart := req.toCart()
	if key := strings.TrimSpace(c.GetHeader(idempotencyHeader)); key != "" {
		cart.IdempotencyKey = key
	}

	receipt, err := h.checkout.Checkout(c.Request.Context(), cart)
	h.countCheckout(err)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	message := "checkout completed"
	if receipt.Replayed {
		status = http.StatusOK
		message = "checkout already completed"
	}
	c.JSON(status, CheckoutResponse{
		Success:       true,
		Message:       message,
		InvoiceID:     receipt.InvoiceID,
		InvoiceNumber: receipt.InvoiceNumber,
		GrandTotal:    receipt.GrandTotal,
		Replayed:      receipt.Replayed,
	})
}

func (h *HTTPHandler) Analytics(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *HTTPHandler) PurchaseHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		limit = n
	}

	history, err := h.invoices.RecentInvoices(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *HTTPHandler) GetInvoice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.FullPath()), slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": message})
}

func (h *HTTPHandler) countCheckout(err error) {
	if h.metrics != nil {
		h.metrics.Checkouts.WithLabelValues(checkoutOutcome(err)).Inc()
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a number"})
		return 0, false
	}
	return id, true
}

func (r CheckoutRequest) toCart() domain.Cart {
	lines := make([]domain.CartLine, len(r.Items))
	for i, item := range r.Items {
		lines[i] = domain.CartLine{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			LineTotal: item.LineTotal,
		}
	}
	return domain.Cart{
		CustomerName:   r.CustomerName,
		Lines:          lines,
		Subtotal:       r.Subtotal,
		Tax:            r.Tax,
		GrandTotal:     r.GrandTotal,
		IdempotencyKey: r.IdempotencyKey,
	}
}
