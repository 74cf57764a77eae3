package model

import "time"

// MovementType enumerates bulk stock movement kinds
type MovementType string

const (
	MovementPurchase MovementType = "purchase"
	MovementTransfer MovementType = "transfer"
	MovementDisposal MovementType = "disposal"
)

// StockMovement records warehouse-level stock activity (receipts, transfers,
// disposals). Complements the per-tire operation ledger with quantity-level
// bookkeeping.
type StockMovement struct {
	ID              uint         `json:"id" gorm:"primarykey"`
	TireID          *uint        `json:"tire_id" gorm:"index"` // nil for bulk movements
	FromWarehouseID *uint        `json:"from_warehouse_id" gorm:"index"`
	ToWarehouseID   *uint        `json:"to_warehouse_id" gorm:"index"`
	Type            MovementType `json:"type" gorm:"type:varchar(16);not null"`
	Quantity        int          `json:"quantity" gorm:"not null;default:1"`
	Notes           string       `json:"notes" gorm:"type:text"`
	UserID          *uint        `json:"user_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
