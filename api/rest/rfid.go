package rest

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodegalabs/bodega-server/audit"
	"github.com/bodegalabs/bodega-server/config"
	mw "github.com/bodegalabs/bodega-server/middleware"
	"github.com/bodegalabs/bodega-server/rfid"
)

// RfidHandler handles the tag registry and read-ingestion REST endpoints.
type RfidHandler struct {
	svc   *rfid.Service
	audit *audit.Service
	sec   config.SecurityConfig
}

// NewRfidHandler creates a new RfidHandler.
func NewRfidHandler(svc *rfid.Service, a *audit.Service, sec config.SecurityConfig) *RfidHandler {
	return &RfidHandler{svc: svc, audit: a, sec: sec}
}

// ListTags handles GET /api/rfid/tags.
func (h *RfidHandler) ListTags(c *gin.Context) {
	tags, err := h.svc.ListTags(c.Request.Context(), rfid.TagFilters{
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// ListUnknownTags handles GET /api/rfid/tags/unknown.
func (h *RfidHandler) ListUnknownTags(c *gin.Context) {
	tags, err := h.svc.ListUnknown(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CreateTag handles POST /api/rfid/tags.
func (h *RfidHandler) CreateTag(c *gin.Context) {
	start := time.Now()
	var req rfid.TagInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.CreateTag(c.Request.Context(), req)
	h.auditLog(c, start, "rfid.tag_create", req, view, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetTag handles GET /api/rfid/tags/:id.
func (h *RfidHandler) GetTag(c *gin.Context) {
	view, err := h.svc.GetTag(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateTag handles PUT /api/rfid/tags/:id.
func (h *RfidHandler) UpdateTag(c *gin.Context) {
	start := time.Now()
	var req rfid.TagInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.UpdateTag(c.Request.Context(), c.Param("id"), req)
	h.auditLog(c, start, "rfid.tag_update", req, view, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteTag handles DELETE /api/rfid/tags/:id.
func (h *RfidHandler) DeleteTag(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")
	err := h.svc.DeleteTag(c.Request.Context(), id)
	h.auditLog(c, start, "rfid.tag_delete", gin.H{"id": id}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Enroll handles POST /api/rfid/tags/:id/enroll.
func (h *RfidHandler) Enroll(c *gin.Context) {
	start := time.Now()
	var req rfid.EnrollInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.Enroll(c.Request.Context(), c.Param("id"), req)
	h.auditLog(c, start, "rfid.enroll", req, view, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Unenroll handles DELETE /api/rfid/tags/:id/enroll.
func (h *RfidHandler) Unenroll(c *gin.Context) {
	start := time.Now()
	view, err := h.svc.Unenroll(c.Request.Context(), c.Param("id"))
	h.auditLog(c, start, "rfid.unenroll", gin.H{"id": c.Param("id")}, view, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListDetections handles GET /api/rfid/detections.
func (h *RfidHandler) ListDetections(c *gin.Context) {
	filters := rfid.DetectionFilters{
		ReaderID:  c.Query("readerId"),
		TagID:     c.Query("rfidTagId"),
		EPC:       c.Query("epc"),
		Direction: c.Query("direction"),
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
	page, err := h.svc.ListDetections(c.Request.Context(), filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type readRequest struct {
	APIKey string `json:"apiKey"`
	rfid.ReadBatch
}

// Read handles POST /api/rfid/read. Readers authenticate with a shared API
// key in the body (or the X-API-Key header), not with a user session.
func (h *RfidHandler) Read(c *gin.Context) {
	start := time.Now()
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := req.APIKey
	if key == "" {
		key = c.GetHeader("X-API-Key")
	}
	if h.sec.RFIDAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(h.sec.RFIDAPIKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	res, err := h.svc.ProcessRead(c.Request.Context(), req.ReadBatch)
	h.auditLog(c, start, "rfid.read", req.ReadBatch, res, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RfidHandler) auditLog(c *gin.Context, start time.Time, action string, req, resp any, err error) {
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
