package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"intake-service/internal/models"
	"intake-service/internal/service"
	"intake-service/internal/store"
	"intake-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	pipeline  *service.PipelineService
	inventory *service.InventoryService
	store     *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline *service.PipelineService, inventory *service.InventoryService, st *store.Store) *Handler {
	return &Handler{
		pipeline:  pipeline,
		inventory: inventory,
		store:     st,
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

	router.POST("/webhooks/email", h.receiveEmail)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/emails", h.listEmails)
		v1.GET("/emails/:id", h.getEmail)
		v1.DELETE("/emails/:id", h.deleteEmail)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.POST("/orders/:id/archive", h.archiveOrder)
		v1.POST("/orders/:id/restore", h.restoreOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)

		v1.POST("/items/:id/sold", h.markItemSold)
		v1.POST("/items/:id/archive", h.archiveItem)
		v1.POST("/items/:id/restore", h.restoreItem)
		v1.DELETE("/items/:id", h.deleteItem)

		v1.DELETE("/catalog/:vendor/:brand/:model/:color", h.invalidateCatalogEntry)
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

// receiveEmail accepts an inbound email from the mail provider webhook.
// Processing is asynchronous: a 202 means the email is stored and queued,
// not that it parsed.
func (h *Handler) receiveEmail(c *gin.Context) {
	var req service.WebhookEmail
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.HTMLBody == "" && req.PlainBody == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Email has no body",
		})
		return
	}

	email, duplicate, err := h.pipeline.ReceiveEmail(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to accept email",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"email_id":  email.ID,
		"duplicate": duplicate,
	})
}

// listEmails lists stored emails, optionally filtered by parse status.
func (h *Handler) listEmails(c *gin.Context) {
	status := c.Query("status")
	limit := parseLimit(c.Query("limit"))

	emails, err := h.store.ListEmails(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"emails": emails})
}

func (h *Handler) getEmail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	email, err := h.store.GetEmailByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

func (h *Handler) deleteEmail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.inventory.DeleteEmail(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listOrders(c *gin.Context) {
	includeArchived := c.Query("include_archived") == "true"
	limit := parseLimit(c.Query("limit"))

	orders, err := h.store.ListOrders(c.Request.Context(), includeArchived, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.inventory.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// confirmOrder promotes pending items to current. An empty or absent
// item_ids list confirms every pending item on the order.
func (h *Handler) confirmOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		ItemIDs []int64 `json:"item_ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	result, err := h.inventory.ConfirmOrder(c.Request.Context(), id, req.ItemIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if len(result.Conflicts) > 0 {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

func (h *Handler) archiveOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.inventory.ArchiveOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "archived": true})
}

func (h *Handler) restoreOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.inventory.RestoreOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "archived": false})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.inventory.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) markItemSold(c *gin.Context) {
	h.transitionItem(c, h.inventory.MarkItemSold)
}

func (h *Handler) archiveItem(c *gin.Context) {
	h.transitionItem(c, h.inventory.ArchiveItem)
}

func (h *Handler) restoreItem(c *gin.Context) {
	h.transitionItem(c, h.inventory.RestoreItem)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.inventory.DeleteArchivedItem(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) invalidateCatalogEntry(c *gin.Context) {
	err := h.inventory.InvalidateCatalogEntry(c.Request.Context(),
		c.Param("vendor"), c.Param("brand"), c.Param("model"), c.Param("color"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) transitionItem(c *gin.Context, fn func(context.Context, int64) (*models.InventoryItem, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := fn(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// pathID parses the :id path parameter, writing a 400 on failure.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 100
	}
	return limit
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderBusy),
		errors.Is(err, service.ErrOrderHasCurrentItems),
		errors.Is(err, service.ErrEmailHasCurrentItems):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
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
