package model

import "time"

// Tag statuses.
const (
	TagEnrolled   = "ENROLLED"
	TagUnassigned = "UNASSIGNED"
	TagUnknown    = "UNKNOWN"
)

// Read directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// RfidTag binds one physical EPC to at most one inventory item. Tags first
// seen by a reader without prior enrollment are created as UNKNOWN.
type RfidTag struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	EPC             string    `gorm:"column:epc;size:64;uniqueIndex;not null" json:"epc"`
	TID             *string   `gorm:"column:tid;size:64" json:"tid"`
	InventoryItemID *string   `gorm:"size:36;uniqueIndex:uniq_tags_item" json:"inventoryItemId"`
	Status          string    `gorm:"size:16;not null;index" json:"status"`
	FirstSeenAt     time.Time `gorm:"autoCreateTime" json:"firstSeenAt"`
	LastSeenAt      time.Time `gorm:"autoCreateTime;index" json:"lastSeenAt"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	InventoryItem *InventoryItem `gorm:"foreignKey:InventoryItemID" json:"inventoryItem,omitempty"`
}

// RfidDetection is one immutable reader event. A row is written for every
// processed read whether or not it changed any state.
type RfidDetection struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Seq        int64     `gorm:"autoIncrement;uniqueIndex" json:"-"`
	RfidTagID  string    `gorm:"size:36;not null;index" json:"rfidTagId"`
	ReaderID   string    `gorm:"size:64;not null;index" json:"readerId"`
	ReaderName *string   `gorm:"size:128" json:"readerName"`
	RSSI       *int      `gorm:"column:rssi" json:"rssi"`
	Direction  *string   `gorm:"size:8" json:"direction"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`

	RfidTag *RfidTag `gorm:"foreignKey:RfidTagID" json:"rfidTag,omitempty"`
}

// ValidTagStatus reports whether s is a known tag status.
func ValidTagStatus(s string) bool {
	switch s {
	case TagEnrolled, TagUnassigned, TagUnknown:
		return true
	}
	return false
}

// ValidDirection reports whether d is IN or OUT.
func ValidDirection(d string) bool {
	return d == DirectionIn || d == DirectionOut
}
