package model

import (
	"time"

	"gorm.io/gorm"
)

// Sku groups tires of the same brand/model/size for stock accounting
type Sku struct {
	ID      uint   `json:"id" gorm:"primarykey"`
	SkuCode string `json:"sku_code" gorm:"type:varchar(100);uniqueIndex;not null"`
	SkuName string `json:"sku_name" gorm:"type:varchar(255);not null"`

	Brand    string `json:"brand" gorm:"type:varchar(100)"`
	Model    string `json:"model" gorm:"type:varchar(100)"`
	Size     string `json:"size" gorm:"type:varchar(50)"`
	TireType string `json:"tire_type" gorm:"type:varchar(16)"` // STEER, DRIVE, TRAILER, ALL_POSITION

	UnitPrice float64 `json:"unit_price"`
	CostPrice float64 `json:"cost_price"`

	// CurrentStock counts tires of this SKU with status available. It is
	// maintained incrementally with deltas inside the same transaction as the
	// tire state change; periodic reconciliation is an out-of-band job.
	CurrentStock  int  `json:"current_stock" gorm:"not null;default:0"`
	MinStockLevel *int `json:"min_stock_level"`
	ReorderPoint  *int `json:"reorder_point"`

	Status string `json:"status" gorm:"type:varchar(16);default:'active'"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// IsActive reports whether the SKU accepts new stock
func (s *Sku) IsActive() bool {
	return s.Status == "active"
}

// IsLowStock reports whether stock is at or below the configured minimum
func (s *Sku) IsLowStock() bool {
	if s.MinStockLevel == nil {
		return false
	}
	return s.CurrentStock <= *s.MinStockLevel
}

// NeedsReorder reports whether stock is at or below the reorder point
func (s *Sku) NeedsReorder() bool {
	if s.ReorderPoint == nil {
		return false
	}
	return s.CurrentStock <= *s.ReorderPoint
}

// StockStatus returns a coarse stock state for dashboards
func (s *Sku) StockStatus() string {
	switch {
	case s.CurrentStock == 0:
		return "out_of_stock"
	case s.IsLowStock():
		return "low_stock"
	case s.NeedsReorder():
		return "reorder_needed"
	default:
		return "in_stock"
	}
}
