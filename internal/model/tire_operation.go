package model

import "time"

// OperationType enumerates the lifecycle transitions recorded in the ledger
type OperationType string

const (
	OpMount      OperationType = "mount"
	OpDismount   OperationType = "dismount"
	OpRotate     OperationType = "rotate"
	OpRepair     OperationType = "repair"
	OpReplaceOut OperationType = "replace_out"
	OpReplaceIn  OperationType = "replace_in"
	OpDispose    OperationType = "dispose"
	OpReserve    OperationType = "reserve"
)

// TireOperation is one immutable entry in the append-only operation ledger.
// Rows are only ever inserted; the single permitted mutation is appending
// to Notes after the fact.
type TireOperation struct {
	ID        uint          `json:"id" gorm:"primarykey"`
	TireID    uint          `json:"tire_id" gorm:"index;not null"`
	VehicleID *uint         `json:"vehicle_id" gorm:"index"`
	UserID    *uint         `json:"user_id" gorm:"index"` // technician who performed it
	Type      OperationType `json:"type" gorm:"type:varchar(16);index;not null"`

	Odometer         *int64 `json:"odometer"`
	Position         string `json:"position" gorm:"type:varchar(16)"`
	PreviousPosition string `json:"previous_position" gorm:"type:varchar(16)"` // rotations only

	Notes  string  `json:"notes" gorm:"type:text"`
	Cost   float64 `json:"cost"` // external repairs
	Vendor string  `json:"vendor" gorm:"type:varchar(100)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
