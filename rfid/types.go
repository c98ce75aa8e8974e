package rfid

import (
	"time"

	"github.com/bodegalabs/bodega-server/model"
)

// TagInput registers or edits a tag by hand. A non-empty InventoryItemID
// binds the tag to that item and forces its status to ENROLLED; on update,
// a nil pointer leaves the binding alone and an empty string clears it.
type TagInput struct {
	EPC             string  `json:"epc"`
	TID             *string `json:"tid"`
	InventoryItemID *string `json:"inventoryItemId"`
	Status          *string `json:"status"`
}

// EnrollInput binds a tag to an inventory item.
type EnrollInput struct {
	InventoryItemID string `json:"inventoryItemId"`
}

// ReadInput is one read inside a reader batch. Timestamp is ISO-8601; an
// empty value means "now".
type ReadInput struct {
	EPC       string  `json:"epc"`
	TID       *string `json:"tid"`
	RSSI      *int    `json:"rssi"`
	Direction *string `json:"direction"`
	Timestamp *string `json:"timestamp"`
}

// ReadBatch is the payload one reader posts per antenna cycle.
type ReadBatch struct {
	ReaderID   string      `json:"readerId"`
	ReaderName *string     `json:"readerName"`
	Reads      []ReadInput `json:"reads"`
}

// ReadResult reports what one read did.
type ReadResult struct {
	EPC              string  `json:"epc"`
	TagID            string  `json:"tagId"`
	Status           string  `json:"status"`
	IsNew            bool    `json:"isNew"`
	InventoryItemID  *string `json:"inventoryItemId"`
	InventoryUpdated bool    `json:"inventoryUpdated"`
}

// BatchResult is the ingest response for one batch.
type BatchResult struct {
	Processed int          `json:"processed"`
	Results   []ReadResult `json:"results"`
}

// TagFilters narrows the tag listing.
type TagFilters struct {
	Status string
	Search string
}

// DetectionFilters pages through the detection log.
type DetectionFilters struct {
	ReaderID  string
	TagID     string
	EPC       string
	Direction string
	Limit     int
	Offset    int
}

type ItemRef struct {
	ID           string  `json:"id"`
	SerialNumber *string `json:"serialNumber"`
	AssetTag     *string `json:"assetTag"`
	Status       string  `json:"status"`
	Location     *string `json:"location"`
	ProductName  string  `json:"productName"`
}

// TagCounts carries the related-row counters embedded in a tag payload.
type TagCounts struct {
	Detections int64 `json:"detections"`
}

// TagView is the read model of a tag. Detections is populated on the
// single-tag detail only, capped at the 50 most recent.
type TagView struct {
	ID              string          `json:"id"`
	EPC             string          `json:"epc"`
	TID             *string         `json:"tid"`
	InventoryItemID *string         `json:"inventoryItemId"`
	Status          string          `json:"status"`
	FirstSeenAt     time.Time       `json:"firstSeenAt"`
	LastSeenAt      time.Time       `json:"lastSeenAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	InventoryItem   *ItemRef        `json:"inventoryItem"`
	Count           TagCounts       `json:"_count"`
	Detections      []DetectionView `json:"detections,omitempty"`
}

// DetectionView is the read model of one detection row.
type DetectionView struct {
	ID         string    `json:"id"`
	RfidTagID  string    `json:"rfidTagId"`
	EPC        string    `json:"epc"`
	ReaderID   string    `json:"readerId"`
	ReaderName *string   `json:"readerName"`
	RSSI       *int      `json:"rssi"`
	Direction  *string   `json:"direction"`
	Timestamp  time.Time `json:"timestamp"`
}

// DetectionsPage wraps a detection listing with its total row count.
type DetectionsPage struct {
	Detections []DetectionView `json:"detections"`
	Total      int64           `json:"total"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

func tagView(t *model.RfidTag) TagView {
	view := TagView{
		ID:              t.ID,
		EPC:             t.EPC,
		TID:             t.TID,
		InventoryItemID: t.InventoryItemID,
		Status:          t.Status,
		FirstSeenAt:     t.FirstSeenAt,
		LastSeenAt:      t.LastSeenAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.InventoryItem != nil {
		ref := &ItemRef{
			ID:           t.InventoryItem.ID,
			SerialNumber: t.InventoryItem.SerialNumber,
			AssetTag:     t.InventoryItem.AssetTag,
			Status:       t.InventoryItem.Status,
			Location:     t.InventoryItem.Location,
		}
		if t.InventoryItem.Product != nil {
			ref.ProductName = t.InventoryItem.Product.Name
		}
		view.InventoryItem = ref
	}
	return view
}

func detectionView(d *model.RfidDetection) DetectionView {
	view := DetectionView{
		ID:         d.ID,
		RfidTagID:  d.RfidTagID,
		ReaderID:   d.ReaderID,
		ReaderName: d.ReaderName,
		RSSI:       d.RSSI,
		Direction:  d.Direction,
		Timestamp:  d.Timestamp,
	}
	if d.RfidTag != nil {
		view.EPC = d.RfidTag.EPC
	}
	return view
}
