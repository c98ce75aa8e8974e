package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodegalabs/bodega-server/audit"
	"github.com/bodegalabs/bodega-server/inventory"
	mw "github.com/bodegalabs/bodega-server/middleware"
)

// InventoryHandler handles the item, ledger and check-in/out REST endpoints.
type InventoryHandler struct {
	svc   *inventory.Service
	audit *audit.Service
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(svc *inventory.Service, a *audit.Service) *InventoryHandler {
	return &InventoryHandler{svc: svc, audit: a}
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(c *gin.Context) {
	filters := inventory.ListFilters{
		Search:      c.Query("search"),
		Status:      c.Query("status"),
		Type:        c.Query("type"),
		ProductID:   c.Query("productId"),
		ContainerID: c.Query("containerId"),
	}
	items, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(c *gin.Context) {
	start := time.Now()
	var req inventory.ItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.Create(c.Request.Context(), req, mw.GetUserID(c))
	h.auditLog(c, start, "inventory.create", req, view, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get handles GET /api/inventory/:id.
func (h *InventoryHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Update handles PUT /api/inventory/:id.
func (h *InventoryHandler) Update(c *gin.Context) {
	start := time.Now()
	var req inventory.ItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.Update(c.Request.Context(), c.Param("id"), req, mw.GetUserID(c))
	h.auditLog(c, start, "inventory.update", req, view, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete handles DELETE /api/inventory/:id.
func (h *InventoryHandler) Delete(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	err := h.svc.Delete(c.Request.Context(), id)
	h.auditLog(c, start, "inventory.delete", gin.H{"id": id}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// CheckIn handles POST /api/inventory/:id/check-in.
func (h *InventoryHandler) CheckIn(c *gin.Context) {
	h.transition(c, "inventory.check_in", h.svc.CheckIn)
}

// CheckOut handles POST /api/inventory/:id/check-out.
func (h *InventoryHandler) CheckOut(c *gin.Context) {
	h.transition(c, "inventory.check_out", h.svc.CheckOut)
}

type transitionOp func(ctx context.Context, id string, in inventory.CheckInOutInput, actorID string) (*inventory.CheckInOutResult, error)

func (h *InventoryHandler) transition(c *gin.Context, action string, op transitionOp) {
	start := time.Now()
	var req inventory.CheckInOutInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := op(c.Request.Context(), c.Param("id"), req, mw.GetUserID(c))
	h.auditLog(c, start, action, req, res, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Movements handles GET /api/inventory/movements.
func (h *InventoryHandler) Movements(c *gin.Context) {
	filters := inventory.MovementFilters{
		InventoryItemID: c.Query("inventoryItemId"),
		Type:            c.Query("type"),
	}
	var err error
	if filters.Limit, err = intQuery(c, "limit", 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filters.Offset, err = intQuery(c, "offset", 0); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, err := h.svc.ListMovements(c.Request.Context(), filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Summary handles GET /api/inventory/summary.
func (h *InventoryHandler) Summary(c *gin.Context) {
	view, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *InventoryHandler) auditLog(c *gin.Context, start time.Time, action string, req, resp any, err error) {
	if h.audit == nil {
		return
	}
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     mw.GetUserID(c),
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
		entry.Response = nil
	}
	h.audit.Log(entry)
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
