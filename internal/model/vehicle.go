package model

import "time"

// Vehicle is a fleet vehicle that tires get mounted onto. Only the odometer
// is written by this service; the rest is reference data owned elsewhere.
type Vehicle struct {
	ID          uint   `json:"id" gorm:"primarykey"`
	PlateNumber string `json:"plate_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	Make        string `json:"make" gorm:"type:varchar(64)"`
	Model       string `json:"model" gorm:"type:varchar(64)"`
	FleetNumber string `json:"fleet_number" gorm:"type:varchar(32);index"`
	AxleConfig  int    `json:"axle_config"`

	// Last known reading; writes are clamped so it never moves backward
	Odometer int64 `json:"odometer" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
