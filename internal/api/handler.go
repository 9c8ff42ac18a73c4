package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"shopper-service/internal/dispatcher"
	"shopper-service/internal/models"
	"shopper-service/internal/redisclient"
	"shopper-service/internal/service"
	"shopper-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog    *service.CatalogService
	cart       *service.CartService
	wallet     *service.WalletService
	checkout   *service.CheckoutService
	orders     *service.OrderService
	dispatcher *dispatcher.Dispatcher
	events     *redisclient.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogService,
	cart *service.CartService,
	wallet *service.WalletService,
	checkout *service.CheckoutService,
	orders *service.OrderService,
	dispatcher *dispatcher.Dispatcher,
	events *redisclient.Client,
) *Handler {
	return &Handler{
		catalog:    catalog,
		cart:       cart,
		wallet:     wallet,
		checkout:   checkout,
		orders:     orders,
		dispatcher: dispatcher,
		events:     events,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", requireUser())
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productID", h.setCartItemQuantity)
		v1.DELETE("/cart/items/:productID", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.GET("/wallet", h.getWallet)
		v1.GET("/wallet/transactions", h.getTransactions)
		v1.POST("/wallet/topup", h.topUpWallet)

		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/return", h.requestReturn)
		v1.POST("/orders/:id/retry-payment", h.retryPayment)

		v1.POST("/assistant/command", h.assistantCommand)

		v1.GET("/events", h.streamEvents)
	}
}

// requireUser pulls the authenticated user id out of the X-User-ID header.
// Authentication itself happens upstream at the gateway.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing X-User-ID header",
			})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString("userID")
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts handles the catalog listing, optionally filtered by name
// substring (?q=) or category (?category=).
func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		products []models.Product
		err      error
	)
	switch {
	case c.Query("q") != "":
		products, err = h.catalog.FindByName(ctx, c.Query("q"))
	case c.Query("category") != "":
		products, err = h.catalog.ListByCategory(ctx, c.Query("category"))
	default:
		products, err = h.catalog.ListAll(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	product, err := h.catalog.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// getCart handles reading the user's cart with its running total
func (h *Handler) getCart(c *gin.Context) {
	items, err := h.cart.Get(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": service.CartTotal(items),
	})
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

// addCartItem handles adding a product to the cart. Quantities accumulate
// across repeated adds of the same product.
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	product, err := h.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.cart.Add(ctx, userID(c), product, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Added to cart"})
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// setCartItemQuantity sets a line's quantity; zero or below removes it
func (h *Handler) setCartItemQuantity(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.cart.SetQuantity(c.Request.Context(), userID(c), productID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart updated"})
}

// removeCartItem handles removing one line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	if err := h.cart.Remove(c.Request.Context(), userID(c), productID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from cart"})
}

// clearCart handles emptying the user's cart
func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// getWallet handles reading the wallet balance
func (h *Handler) getWallet(c *gin.Context) {
	wallet, err := h.wallet.Balance(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// getTransactions handles reading the wallet ledger, newest first
func (h *Handler) getTransactions(c *gin.Context) {
	transactions, err := h.wallet.History(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

type topUpRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// topUpWallet handles crediting the wallet
func (h *Handler) topUpWallet(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	record, err := h.wallet.TopUp(c.Request.Context(), userID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// placeOrder handles checkout
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.UserID = userID(c)
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.checkout.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// listOrders handles listing the user's orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelOrderRequest struct {
	RefundTo string `json:"refund_to"`
}

// cancelOrder handles cancelling an order
func (h *Handler) cancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	order, err := h.orders.Cancel(c.Request.Context(), userID(c), c.Param("id"), req.RefundTo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type requestReturnRequest struct {
	Reason   string `json:"reason" binding:"required"`
	RefundTo string `json:"refund_to"`
}

// requestReturn handles opening a return on a delivered order
func (h *Handler) requestReturn(c *gin.Context) {
	var req requestReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orders.RequestReturn(c.Request.Context(), userID(c), c.Param("id"), req.Reason, req.RefundTo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// retryPayment handles re-attempting a failed wallet payment
func (h *Handler) retryPayment(c *gin.Context) {
	order, err := h.checkout.RetryPayment(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type assistantCommandRequest struct {
	Message string `json:"message" binding:"required"`
}

// assistantCommand executes a command embedded in an assistant reply. The
// reply text is returned even on business failures so the chat can show it;
// the HTTP status still reflects the outcome.
func (h *Handler) assistantCommand(c *gin.Context) {
	var req assistantCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	reply, err := h.dispatcher.Dispatch(c.Request.Context(), userID(c), req.Message)
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"reply": reply,
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// streamEvents pushes the caller's domain events (order, wallet, return
// notifications fanned out by the worker) over server-sent events, so the UI
// reflects changes without polling.
func (h *Handler) streamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	sub := h.events.SubscribeUserEvents(ctx, userID(c))
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch := sub.Channel()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", msg.Payload)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// respondError maps business errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, dispatcher.ErrMalformedCommand):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
