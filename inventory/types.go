package inventory

import (
	"time"

	"github.com/bodegalabs/bodega-server/model"
)

// ItemInput is the write payload shared by create and update. For update,
// nil pointers mean "leave unchanged" except where a field is explicitly
// clearable through its own flag on the REST layer.
type ItemInput struct {
	ProductID      string   `json:"productId"`
	SerialNumber   *string  `json:"serialNumber"`
	AssetTag       *string  `json:"assetTag"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Condition      *string  `json:"condition"`
	Location       *string  `json:"location"`
	ContainerID    *string  `json:"containerId"`
	PurchaseDate   *string  `json:"purchaseDate"`
	PurchasePrice  *float64 `json:"purchasePrice"`
	WarrantyExpiry *string  `json:"warrantyExpiry"`
	Notes          *string  `json:"notes"`
}

// CheckInOutInput carries the optional context of a check-in or check-out.
type CheckInOutInput struct {
	Location  *string `json:"location"`
	Reason    *string `json:"reason"`
	Reference *string `json:"reference"`
}

// ListFilters narrows the item listing. Empty fields match everything.
type ListFilters struct {
	Search      string
	Status      string
	Type        string
	ProductID   string
	ContainerID string
}

// MovementFilters pages through the ledger. Limit defaults to 50.
type MovementFilters struct {
	InventoryItemID string
	Type            string
	Limit           int
	Offset          int
}

type CategoryRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

type ProductRef struct {
	ID       string       `json:"id"`
	SKU      string       `json:"sku"`
	Name     string       `json:"name"`
	Brand    *string      `json:"brand"`
	Model    *string      `json:"model"`
	ImageURL *string      `json:"imageUrl"`
	Category *CategoryRef `json:"category"`
}

type ContainerRef struct {
	ID           string  `json:"id"`
	SerialNumber *string `json:"serialNumber"`
	AssetTag     *string `json:"assetTag"`
	Location     *string `json:"location"`
}

type TagRef struct {
	ID          string    `json:"id"`
	EPC         string    `json:"epc"`
	TID         *string   `json:"tid"`
	Status      string    `json:"status"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ItemCounts struct {
	Movements int64 `json:"movements"`
	Contents  int64 `json:"contents"`
}

// ItemView is the read model returned by every item operation.
type ItemView struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	SerialNumber   *string        `json:"serialNumber"`
	AssetTag       *string        `json:"assetTag"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Condition      *string        `json:"condition"`
	Location       *string        `json:"location"`
	ContainerID    *string        `json:"containerId"`
	PurchaseDate   *time.Time     `json:"purchaseDate"`
	PurchasePrice  *float64       `json:"purchasePrice"`
	WarrantyExpiry *time.Time     `json:"warrantyExpiry"`
	Notes          *string        `json:"notes"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	Product        *ProductRef    `json:"product"`
	Container      *ContainerRef  `json:"container"`
	RfidTag        *TagRef        `json:"rfidTag"`
	Count          ItemCounts     `json:"_count"`
	Contents       []ContainerRef `json:"contents,omitempty"`
	Movements      []MovementView `json:"movements,omitempty"`
}

type MovementItemRef struct {
	ID           string      `json:"id"`
	SerialNumber *string     `json:"serialNumber"`
	AssetTag     *string     `json:"assetTag"`
	Product      *ProductRef `json:"product"`
}

// MovementView is the read model of one ledger row.
type MovementView struct {
	ID              string           `json:"id"`
	InventoryItemID string           `json:"inventoryItemId"`
	Type            string           `json:"type"`
	FromStatus      *string          `json:"fromStatus"`
	ToStatus        string           `json:"toStatus"`
	FromLocation    *string          `json:"fromLocation"`
	ToLocation      *string          `json:"toLocation"`
	Reason          *string          `json:"reason"`
	Reference       *string          `json:"reference"`
	PerformedBy     string           `json:"performedBy"`
	CreatedAt       time.Time        `json:"createdAt"`
	User            *UserRef         `json:"user"`
	InventoryItem   *MovementItemRef `json:"inventoryItem,omitempty"`
}

// MovementsPage wraps a ledger listing with its total row count.
type MovementsPage struct {
	Movements []MovementView `json:"movements"`
	Total     int64          `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

type CategoryCount struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Count      int64  `json:"count"`
}

// SummaryView aggregates the current state of the fleet.
type SummaryView struct {
	Total           int64            `json:"total"`
	ByStatus        map[string]int64 `json:"byStatus"`
	ByType          map[string]int64 `json:"byType"`
	ByCategory      []CategoryCount  `json:"byCategory"`
	RecentMovements []MovementView   `json:"recentMovements"`
}

func tagRef(t *model.RfidTag) *TagRef {
	if t == nil {
		return nil
	}
	return &TagRef{
		ID:          t.ID,
		EPC:         t.EPC,
		TID:         t.TID,
		Status:      t.Status,
		FirstSeenAt: t.FirstSeenAt,
		LastSeenAt:  t.LastSeenAt,
	}
}

func productRef(p *model.Product) *ProductRef {
	if p == nil {
		return nil
	}
	ref := &ProductRef{
		ID:       p.ID,
		SKU:      p.SKU,
		Name:     p.Name,
		Brand:    p.Brand,
		Model:    p.Model,
		ImageURL: p.ImageURL,
	}
	if p.Category != nil {
		ref.Category = &CategoryRef{ID: p.Category.ID, Name: p.Category.Name, Color: p.Category.Color}
	}
	return ref
}

func containerRef(c *model.InventoryItem) *ContainerRef {
	if c == nil {
		return nil
	}
	return &ContainerRef{ID: c.ID, SerialNumber: c.SerialNumber, AssetTag: c.AssetTag, Location: c.Location}
}
