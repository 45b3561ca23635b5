package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"lifecycle-service/internal/models"
	"lifecycle-service/internal/service"
	"lifecycle-service/internal/store"
	"lifecycle-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	cartTracker  *service.CartTracker
	postPurchase *service.PostPurchaseService
	sequencer    *service.Sequencer
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartTracker *service.CartTracker,
	postPurchase *service.PostPurchaseService,
	sequencer *service.Sequencer,
) *Handler {
	return &Handler{
		cartTracker:  cartTracker,
		postPurchase: postPurchase,
		sequencer:    sequencer,
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

	router.GET("/cart/recover", h.recoverCart)
	router.POST("/cart/recover/restore", h.restoreCart)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/carts/abandoned", h.abandonCart)
		v1.GET("/carts/live/:userID", h.getLiveCart)

		admin := v1.Group("/admin")
		{
			admin.POST("/sequencer/cart/:seq", h.triggerCartSequence)
			admin.POST("/sequencer/post-purchase/:day", h.triggerNurtureDay)
			admin.GET("/carts/:cartID", h.getCart)
			admin.GET("/tracking/:orderID", h.getTracking)
		}
	}
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

// abandonCart captures a cart snapshot when a shopper leaves checkout
func (h *Handler) abandonCart(c *gin.Context) {
	var req service.CreateAbandonedCartRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	cart, err := h.cartTracker.CreateAbandonedCart(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyCart) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Cart must not be empty",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to capture abandoned cart",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"cart_id":        cart.ID,
		"recovery_token": cart.RecoveryToken,
	})
}

// recoverCart resolves a recovery token to the saved cart contents
func (h *Handler) recoverCart(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing recovery token",
		})
		return
	}

	cart, items, err := h.cartTracker.ResolveRecovery(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCartNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Recovery link is invalid or expired",
			})
		case errors.Is(err, service.ErrCartAlreadyRecovered):
			c.JSON(http.StatusGone, gin.H{
				"error":              "This cart was already recovered",
				"recovered_order_id": cart.RecoveredOrderID.Int64,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to resolve recovery link",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_id":     cart.ID,
		"items":       items,
		"total_value": cart.TotalValue,
		"created_at":  cart.CreatedAt,
	})
}

// restoreCartRequest binds the restore call
type restoreCartRequest struct {
	Token  string `json:"token" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
}

// restoreCart replaces the shopper's live cart with the saved snapshot
func (h *Handler) restoreCart(c *gin.Context) {
	var req restoreCartRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	cart, err := h.cartTracker.RestoreCart(c.Request.Context(), req.Token, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCartNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Recovery link is invalid or expired",
			})
		case errors.Is(err, service.ErrCartAlreadyRecovered):
			c.JSON(http.StatusGone, gin.H{
				"error": "This cart was already recovered",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to restore cart",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_id": cart.ID,
		"status":  "restored",
	})
}

// triggerCartSequence runs one cart sequence pass immediately. Uses the same
// selection query as the timer, so already-stamped records cannot re-send.
func (h *Handler) triggerCartSequence(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid sequence number",
		})
		return
	}
	if _, ok := models.CartEmailDelay(seq); !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Sequence number must be 1, 2 or 3",
		})
		return
	}

	result, err := h.sequencer.ProcessCartSequence(c.Request.Context(), seq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Cart sequence pass failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sequence":    seq,
		"sent":        result.Sent,
		"failed":      result.Failed,
		"skipped":     result.Skipped,
		"quarantined": result.Quarantined,
	})
}

// triggerNurtureDay runs one post-purchase day pass immediately
func (h *Handler) triggerNurtureDay(c *gin.Context) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || !models.ValidNurtureDay(day) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Day must be 7, 21, 60 or 90",
		})
		return
	}

	result, err := h.sequencer.ProcessNurtureDay(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Nurture day pass failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"day":    day,
		"sent":   result.Sent,
		"failed": result.Failed,
	})
}

// getLiveCart returns the shopper's current live cart contents
func (h *Handler) getLiveCart(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid user ID",
		})
		return
	}

	items, err := h.cartTracker.LiveCart(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load live cart",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"items":   items,
	})
}

// getCart returns a stored abandoned cart record
func (h *Handler) getCart(c *gin.Context) {
	cartID, err := strconv.ParseInt(c.Param("cartID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cart ID",
		})
		return
	}

	cart, err := h.cartTracker.GetCart(c.Request.Context(), cartID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No abandoned cart with that ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load abandoned cart",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// getTracking returns the post-purchase tracking record for an order
func (h *Handler) getTracking(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("orderID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	tracking, err := h.postPurchase.GetTracking(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No tracking record for order",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load tracking record",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, tracking)
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
