package model

import "time"

// Item statuses.
const (
	StatusIn          = "IN"
	StatusOut         = "OUT"
	StatusMaintenance = "MAINTENANCE"
	StatusLost        = "LOST"
)

// Item types.
const (
	TypeUnit      = "UNIT"
	TypeContainer = "CONTAINER"
)

// Movement types.
const (
	MovementCheckIn    = "CHECK_IN"
	MovementCheckOut   = "CHECK_OUT"
	MovementAdjustment = "ADJUSTMENT"
	MovementEnrollment = "ENROLLMENT"
	MovementTransfer   = "TRANSFER"
)

// InventoryItem is a single tracked physical unit, or a container holding
// other items (ContainerID self-reference). Serial number and asset tag are
// optional but unique when present.
type InventoryItem struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ProductID      string     `gorm:"size:36;not null;index" json:"productId"`
	SerialNumber   *string    `gorm:"size:128;uniqueIndex:uniq_items_serial" json:"serialNumber"`
	AssetTag       *string    `gorm:"size:128;uniqueIndex:uniq_items_asset_tag" json:"assetTag"`
	Type           string     `gorm:"size:16;not null" json:"type"`
	Status         string     `gorm:"size:16;not null;index" json:"status"`
	Condition      *string    `gorm:"size:128" json:"condition"`
	Location       *string    `gorm:"size:255" json:"location"`
	ContainerID    *string    `gorm:"size:36;index" json:"containerId"`
	PurchaseDate   *time.Time `json:"purchaseDate"`
	PurchasePrice  *float64   `json:"purchasePrice"`
	WarrantyExpiry *time.Time `json:"warrantyExpiry"`
	Notes          *string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Product   *Product       `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Container *InventoryItem `gorm:"foreignKey:ContainerID" json:"container,omitempty"`
}

// InventoryMovement is one immutable row of the audit ledger. Rows are only
// ever inserted; Seq breaks ordering ties between identical timestamps.
type InventoryMovement struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Seq             int64     `gorm:"autoIncrement;uniqueIndex" json:"-"`
	InventoryItemID string    `gorm:"size:36;not null;index" json:"inventoryItemId"`
	Type            string    `gorm:"size:16;not null;index" json:"type"`
	FromStatus      *string   `gorm:"size:16" json:"fromStatus"`
	ToStatus        string    `gorm:"size:16;not null" json:"toStatus"`
	FromLocation    *string   `gorm:"size:255" json:"fromLocation"`
	ToLocation      *string   `gorm:"size:255" json:"toLocation"`
	Reason          *string   `gorm:"size:255" json:"reason"`
	Reference       *string   `gorm:"size:255" json:"reference"`
	PerformedBy     string    `gorm:"size:36;not null" json:"performedBy"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"createdAt"`

	InventoryItem *InventoryItem `gorm:"foreignKey:InventoryItemID" json:"inventoryItem,omitempty"`
}

// ValidStatus reports whether s is one of the four item statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusIn, StatusOut, StatusMaintenance, StatusLost:
		return true
	}
	return false
}

// ValidItemType reports whether t is UNIT or CONTAINER.
func ValidItemType(t string) bool {
	return t == TypeUnit || t == TypeContainer
}

// ValidMovementType reports whether t is a known ledger movement type.
func ValidMovementType(t string) bool {
	switch t {
	case MovementCheckIn, MovementCheckOut, MovementAdjustment, MovementEnrollment, MovementTransfer:
		return true
	}
	return false
}
