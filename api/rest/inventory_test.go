package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bodegalabs/bodega-server/api/rest"
	"github.com/bodegalabs/bodega-server/audit"
	"github.com/bodegalabs/bodega-server/config"
	"github.com/bodegalabs/bodega-server/inventory"
	mw "github.com/bodegalabs/bodega-server/middleware"
	"github.com/bodegalabs/bodega-server/model"
	"github.com/bodegalabs/bodega-server/rfid"
	"github.com/bodegalabs/bodega-server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAPIKey = "reader-secret"

type env struct {
	router  *gin.Engine
	db      *gorm.DB
	user    *model.User
	product *model.Product
	token   string
	audit   *audit.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{
		JWTSecret:  "test-secret",
		JWTTTLH:    72 * time.Hour,
		RFIDAPIKey: testAPIKey,
	}
	user := testutil.SeedUser(t, db, "Alice", "alice@example.com")
	product := testutil.SeedProduct(t, db, "SKU-1", "Scanner")

	auditSvc := audit.New(db, zap.NewNop())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	invSvc := inventory.NewService(db, c, zap.NewNop(), time.Minute)
	rfidSvc := rfid.NewService(db, c, ps, zap.NewNop())

	inv := rest.NewInventoryHandler(invSvc, auditSvc)
	rf := rest.NewRfidHandler(rfidSvc, auditSvc, sec)
	aud := rest.NewAuditHandler(db)
	authed := mw.Auth(sec, c)

	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/inventory", authed, inv.List)
		api.POST("/inventory", authed, inv.Create)
		api.GET("/inventory/summary", authed, inv.Summary)
		api.GET("/inventory/movements", authed, inv.Movements)
		api.GET("/inventory/:id", authed, inv.Get)
		api.PUT("/inventory/:id", authed, inv.Update)
		api.DELETE("/inventory/:id", authed, inv.Delete)
		api.POST("/inventory/:id/check-in", authed, inv.CheckIn)
		api.POST("/inventory/:id/check-out", authed, inv.CheckOut)

		api.GET("/rfid/tags", authed, rf.ListTags)
		api.POST("/rfid/tags", authed, rf.CreateTag)
		api.GET("/rfid/tags/unknown", authed, rf.ListUnknownTags)
		api.GET("/rfid/tags/:id", authed, rf.GetTag)
		api.PUT("/rfid/tags/:id", authed, rf.UpdateTag)
		api.DELETE("/rfid/tags/:id", authed, rf.DeleteTag)
		api.POST("/rfid/tags/:id/enroll", authed, rf.Enroll)
		api.DELETE("/rfid/tags/:id/enroll", authed, rf.Unenroll)
		api.GET("/rfid/detections", authed, rf.ListDetections)
		api.POST("/rfid/read", rf.Read)

		api.GET("/audit", authed, aud.List)
	}

	return &env{
		router:  r,
		db:      db,
		user:    user,
		product: product,
		token:   testutil.IssueToken(t, c, sec, user.ID),
		audit:   auditSvc,
	}
}

func (e *env) doJSON(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) authed(method, path string, body interface{}) *httptest.ResponseRecorder {
	return e.doJSON(method, path, body, "Authorization", "Bearer "+e.token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestInventoryRequiresAuth(t *testing.T) {
	e := newEnv(t)
	w := e.doJSON(http.MethodGet, "/api/inventory", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInventoryCRUDFlow(t *testing.T) {
	e := newEnv(t)

	w := e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId":    e.product.ID,
		"type":         "UNIT",
		"status":       "IN",
		"serialNumber": "SN-1",
		"location":     "Shelf A",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	assert.Equal(t, "IN", created["status"])
	assert.Equal(t, "SKU-1", created["product"].(map[string]interface{})["sku"])

	w = e.authed(http.MethodGet, "/api/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]interface{})
	assert.Len(t, items, 1)

	w = e.authed(http.MethodGet, "/api/inventory/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "SN-1", got["serialNumber"])
	assert.NotEmpty(t, got["movements"])

	w = e.authed(http.MethodPut, "/api/inventory/"+id, gin.H{"notes": "minor scratches"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "minor scratches", decode(t, w)["notes"])

	w = e.authed(http.MethodDelete, "/api/inventory/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.authed(http.MethodGet, "/api/inventory/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryCreateErrors(t *testing.T) {
	e := newEnv(t)

	w := e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId": "missing",
		"type":      "UNIT",
		"status":    "IN",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId": e.product.ID,
		"type":      "UNIT",
		"status":    "SOMEWHERE",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate serial is a 400 with the duplicate message.
	payload := gin.H{
		"productId":    e.product.ID,
		"type":         "UNIT",
		"status":       "IN",
		"serialNumber": "SN-DUP",
	}
	require.Equal(t, http.StatusCreated, e.authed(http.MethodPost, "/api/inventory", payload).Code)
	w = e.authed(http.MethodPost, "/api/inventory", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "serial")
}

func TestCheckInCheckOutEndpoints(t *testing.T) {
	e := newEnv(t)

	w := e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId": e.product.ID,
		"type":      "UNIT",
		"status":    "OUT",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = e.authed(http.MethodPost, "/api/inventory/"+id+"/check-in", gin.H{"location": "Dock 3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "IN", res["item"].(map[string]interface{})["status"])
	assert.Equal(t, "CHECK_IN", res["movement"].(map[string]interface{})["type"])

	w = e.authed(http.MethodPost, "/api/inventory/"+id+"/check-in", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already checked in")

	w = e.authed(http.MethodPost, "/api/inventory/"+id+"/check-out", gin.H{"reason": "field job"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.authed(http.MethodGet, "/api/inventory/movements?inventoryItemId="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.EqualValues(t, 3, page["total"])

	w = e.authed(http.MethodGet, "/api/inventory/movements?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusCreated, e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId": e.product.ID,
		"type":      "UNIT",
		"status":    "IN",
	}).Code)

	w := e.authed(http.MethodGet, "/api/inventory/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode(t, w)
	assert.EqualValues(t, 1, sum["total"])
	assert.EqualValues(t, 1, sum["byStatus"].(map[string]interface{})["IN"])
}

func TestMutationsAreAudited(t *testing.T) {
	e := newEnv(t)

	require.Equal(t, http.StatusCreated, e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId": e.product.ID,
		"type":      "UNIT",
		"status":    "IN",
	}).Code)

	// The audit writer flushes in the background.
	assert.Eventually(t, func() bool {
		var n int64
		if err := e.db.Model(&model.AuditLog{}).Where("action = ?", "inventory.create").Count(&n).Error; err != nil {
			return false
		}
		return n == 1
	}, 5*time.Second, 100*time.Millisecond)

	w := e.authed(http.MethodGet, "/api/audit?action=inventory.create", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, 1, resp["total"])
	entry := resp["entries"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, e.user.ID, entry["userId"])
}
