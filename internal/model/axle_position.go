package model

import "time"

// AxlePosition is a named mounting slot on a vehicle, e.g. "FL" or "A2-R1".
// Legacy vehicles may have no formal rows at all; occupancy is then tracked
// on the tire alone.
type AxlePosition struct {
	ID           uint   `json:"id" gorm:"primarykey"`
	VehicleID    uint   `json:"vehicle_id" gorm:"uniqueIndex:idx_vehicle_position;not null"`
	PositionCode string `json:"position_code" gorm:"type:varchar(16);uniqueIndex:idx_vehicle_position;not null"`
	AxleNumber   int    `json:"axle_number" gorm:"not null"`
	Side         string `json:"side" gorm:"type:varchar(1);not null"` // L or R

	// Optional constraint on what may be mounted here: STEER, DRIVE, TRAILER, ALL_POSITION
	TireTypeRequirement string `json:"tire_type_requirement" gorm:"type:varchar(16)"`

	// Current occupant; nil while the slot is empty
	TireID *uint `json:"tire_id" gorm:"index"`
	Tire   *Tire `json:"tire,omitempty" gorm:"foreignKey:TireID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
