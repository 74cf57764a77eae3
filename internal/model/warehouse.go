package model

import "time"

// Warehouse is a storage location for unmounted tires (reference data)
type Warehouse struct {
	ID       uint   `json:"id" gorm:"primarykey"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`
	Location string `json:"location" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
