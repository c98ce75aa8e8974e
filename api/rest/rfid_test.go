package rest_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodegalabs/bodega-server/model"
)

func createTestItem(t *testing.T, e *env, status string) string {
	t.Helper()
	w := e.authed(http.MethodPost, "/api/inventory", gin.H{
		"productId": e.product.ID,
		"type":      "UNIT",
		"status":    status,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestTagRegistryEndpoints(t *testing.T) {
	e := newEnv(t)
	itemID := createTestItem(t, e, "IN")

	w := e.authed(http.MethodPost, "/api/rfid/tags", gin.H{"epc": "E280-0001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tagID := decode(t, w)["id"].(string)

	// EPC uniqueness at the HTTP boundary.
	w = e.authed(http.MethodPost, "/api/rfid/tags", gin.H{"epc": "E280-0001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.authed(http.MethodPut, "/api/rfid/tags/"+tagID, gin.H{"tid": "TID-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TID-1", decode(t, w)["tid"])

	w = e.authed(http.MethodPost, "/api/rfid/tags/"+tagID+"/enroll", gin.H{"inventoryItemId": itemID})
	require.Equal(t, http.StatusOK, w.Code)
	enrolled := decode(t, w)
	assert.Equal(t, "ENROLLED", enrolled["status"])
	assert.Equal(t, itemID, enrolled["inventoryItemId"])

	w = e.authed(http.MethodDelete, "/api/rfid/tags/"+tagID+"/enroll", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UNASSIGNED", decode(t, w)["status"])

	w = e.authed(http.MethodDelete, "/api/rfid/tags/"+tagID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.authed(http.MethodGet, "/api/rfid/tags/"+tagID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Creating a tag with a binding in the payload enrolls it in one call.
	w = e.authed(http.MethodPost, "/api/rfid/tags", gin.H{
		"epc":             "E280-0002",
		"inventoryItemId": itemID,
		"status":          "ENROLLED",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bound := decode(t, w)
	assert.Equal(t, "ENROLLED", bound["status"])
	assert.Equal(t, itemID, bound["inventoryItemId"])

	w = e.authed(http.MethodPost, "/api/rfid/tags", gin.H{
		"epc":             "E280-0003",
		"inventoryItemId": itemID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "item already carries a tag")
}

func TestReadEndpointAuth(t *testing.T) {
	e := newEnv(t)

	w := e.doJSON(http.MethodPost, "/api/rfid/read", gin.H{
		"readerId": "gate-1",
		"apiKey":   "wrong",
		"reads":    []gin.H{{"epc": "E280-A"}},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A rejected batch must leave nothing behind.
	var tags int64
	require.NoError(t, e.db.Model(&model.RfidTag{}).Count(&tags).Error)
	assert.EqualValues(t, 0, tags)

	w = e.doJSON(http.MethodPost, "/api/rfid/read", gin.H{
		"readerId": "gate-1",
		"apiKey":   testAPIKey,
		"reads":    []gin.H{{"epc": "E280-A"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.EqualValues(t, 1, resp["processed"])

	// Header auth works too, for readers that cannot template bodies.
	w = e.doJSON(http.MethodPost, "/api/rfid/read", gin.H{
		"readerId": "gate-1",
		"reads":    []gin.H{{"epc": "E280-B"}},
	}, "X-API-Key", testAPIKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadEndpointDrivesInventory(t *testing.T) {
	e := newEnv(t)
	itemID := createTestItem(t, e, "IN")

	w := e.authed(http.MethodPost, "/api/rfid/tags", gin.H{"epc": "E280-GATE"})
	require.Equal(t, http.StatusCreated, w.Code)
	tagID := decode(t, w)["id"].(string)
	require.Equal(t, http.StatusOK,
		e.authed(http.MethodPost, "/api/rfid/tags/"+tagID+"/enroll", gin.H{"inventoryItemId": itemID}).Code)

	w = e.doJSON(http.MethodPost, "/api/rfid/read", gin.H{
		"readerId": "gate-1",
		"apiKey":   testAPIKey,
		"reads":    []gin.H{{"epc": "E280-GATE", "direction": "OUT"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	results := decode(t, w)["results"].([]interface{})
	assert.Equal(t, true, results[0].(map[string]interface{})["inventoryUpdated"])

	w = e.authed(http.MethodGet, "/api/inventory/"+itemID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "OUT", got["status"])
	// The flip came from a reader: the ledger holds only the enrollment row.
	assert.EqualValues(t, 1, got["_count"].(map[string]interface{})["movements"])

	w = e.authed(http.MethodGet, "/api/rfid/detections?direction=OUT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.EqualValues(t, 1, page["total"])
	det := page["detections"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "E280-GATE", det["epc"])
	assert.Equal(t, "gate-1", det["readerId"])
}

func TestUnknownTagsEndpoint(t *testing.T) {
	e := newEnv(t)

	w := e.doJSON(http.MethodPost, "/api/rfid/read", gin.H{
		"readerId": "gate-1",
		"apiKey":   testAPIKey,
		"reads":    []gin.H{{"epc": "E280-STRAY"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.authed(http.MethodGet, "/api/rfid/tags/unknown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tags := decode(t, w)["tags"].([]interface{})
	require.Len(t, tags, 1)
	assert.Equal(t, "UNKNOWN", tags[0].(map[string]interface{})["status"])
}

func TestReadEndpointInvalidTimestamp(t *testing.T) {
	e := newEnv(t)

	w := e.doJSON(http.MethodPost, "/api/rfid/read", gin.H{
		"readerId": "gate-1",
		"apiKey":   testAPIKey,
		"reads": []gin.H{
			{"epc": "E280-A"},
			{"epc": "E280-B", "timestamp": "whenever"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var tags int64
	require.NoError(t, e.db.Model(&model.RfidTag{}).Count(&tags).Error)
	assert.EqualValues(t, 0, tags, "whole batch rolled back")
}
