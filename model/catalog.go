package model

import "time"

// Category groups products for summary reporting.
type Category struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Color     *string   `gorm:"size:32" json:"color"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"-"`
}

// Product is the catalog entry inventory items point at. Catalog CRUD is
// managed elsewhere; this service only checks existence and soft-delete
// state, and joins product fields into item views.
type Product struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	SKU        string     `gorm:"size:64;not null" json:"sku"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Brand      *string    `gorm:"size:128" json:"brand"`
	Model      *string    `gorm:"size:128" json:"model"`
	ImageURL   *string    `gorm:"size:512" json:"imageUrl"`
	CategoryID string     `gorm:"size:36;index" json:"categoryId"`
	DeletedAt  *time.Time `json:"deletedAt"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// Active reports whether the product may receive new inventory items.
func (p *Product) Active() bool {
	return p.DeletedAt == nil
}
