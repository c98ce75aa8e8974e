package model_test

import (
	"testing"
	"time"

	"github.com/bodegalabs/bodega-server/model"
	"github.com/bodegalabs/bodega-server/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// User
	user := &model.User{ID: uuid.New().String(), Name: "Operator", Email: "op@bodega.test"}
	require.NoError(t, db.Create(user).Error)

	// Category + Product
	cat := &model.Category{ID: uuid.New().String(), Name: "Audio"}
	require.NoError(t, db.Create(cat).Error)

	prod := &model.Product{ID: uuid.New().String(), SKU: "MIC-01", Name: "Wireless Mic", CategoryID: cat.ID}
	require.NoError(t, db.Create(prod).Error)

	var foundProd model.Product
	require.NoError(t, db.Preload("Category").First(&foundProd, "id = ?", prod.ID).Error)
	assert.Equal(t, "Audio", foundProd.Category.Name)
	assert.True(t, foundProd.Active())

	// InventoryItem with container
	box := &model.InventoryItem{
		ID: uuid.New().String(), ProductID: prod.ID,
		Type: model.TypeContainer, Status: model.StatusIn,
	}
	require.NoError(t, db.Create(box).Error)

	item := &model.InventoryItem{
		ID: uuid.New().String(), ProductID: prod.ID,
		SerialNumber: strPtr("SN-001"), AssetTag: strPtr("AT-001"),
		Type: model.TypeUnit, Status: model.StatusIn,
		ContainerID: &box.ID,
	}
	require.NoError(t, db.Create(item).Error)

	var foundItem model.InventoryItem
	require.NoError(t, db.Preload("Container").First(&foundItem, "id = ?", item.ID).Error)
	assert.Equal(t, box.ID, foundItem.Container.ID)

	// Serial uniqueness enforced by the schema.
	dup := &model.InventoryItem{
		ID: uuid.New().String(), ProductID: prod.ID,
		SerialNumber: strPtr("SN-001"),
		Type:         model.TypeUnit, Status: model.StatusIn,
	}
	assert.Error(t, db.Create(dup).Error)

	// Movement rows get an increasing Seq.
	m1 := &model.InventoryMovement{
		ID: uuid.New().String(), InventoryItemID: item.ID,
		Type: model.MovementEnrollment, ToStatus: model.StatusIn, PerformedBy: user.ID,
	}
	m2 := &model.InventoryMovement{
		ID: uuid.New().String(), InventoryItemID: item.ID,
		Type: model.MovementCheckOut, FromStatus: strPtr(model.StatusIn),
		ToStatus: model.StatusOut, PerformedBy: user.ID,
	}
	require.NoError(t, db.Create(m1).Error)
	require.NoError(t, db.Create(m2).Error)
	assert.Greater(t, m2.Seq, m1.Seq)

	// Tag + detection
	tag := &model.RfidTag{
		ID: uuid.New().String(), EPC: "E28011700000020",
		InventoryItemID: &item.ID, Status: model.TagEnrolled,
	}
	require.NoError(t, db.Create(tag).Error)

	det := &model.RfidDetection{
		ID: uuid.New().String(), RfidTagID: tag.ID,
		ReaderID: "dock-1", Timestamp: time.Now(),
	}
	require.NoError(t, db.Create(det).Error)

	// EPC uniqueness enforced by the schema.
	dupTag := &model.RfidTag{ID: uuid.New().String(), EPC: "E28011700000020", Status: model.TagUnknown}
	assert.Error(t, db.Create(dupTag).Error)

	// AuditLog
	al := &model.AuditLog{TraceID: "trace-001", Action: "inventory.create", CreatedAt: time.Now()}
	require.NoError(t, db.Create(al).Error)
}
