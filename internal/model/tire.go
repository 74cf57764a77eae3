package model

import (
	"time"
)

// TireStatus is the lifecycle status of a tire asset (persisted as string)
type TireStatus string

const (
	StatusAvailable TireStatus = "available" // in a warehouse, ready to mount
	StatusReserved  TireStatus = "reserved"  // pre-allocated to a vehicle position
	StatusMounted   TireStatus = "mounted"   // physically on a vehicle
	StatusDefective TireStatus = "defective" // pulled from service, pending decision
	StatusRetired   TireStatus = "retired"   // terminal, never leaves this state
)

// TireCondition describes the physical condition recorded at receipt
type TireCondition string

const (
	ConditionNew         TireCondition = "NEW"
	ConditionUsed        TireCondition = "USED"
	ConditionRefurbished TireCondition = "REFURBISHED"
	ConditionDamaged     TireCondition = "DAMAGED"
)

// allowedTransitions defines the directed graph of valid status changes.
// retired is terminal; mounted tires must come off the vehicle before
// anything else can happen to them.
var allowedTransitions = map[TireStatus][]TireStatus{
	StatusAvailable: {StatusReserved, StatusMounted, StatusDefective, StatusRetired},
	StatusReserved:  {StatusAvailable, StatusMounted, StatusDefective, StatusRetired},
	StatusMounted:   {StatusAvailable},
	StatusDefective: {StatusAvailable, StatusRetired},
	StatusRetired:   {},
}

// CanTransition reports whether from -> to is a valid status change.
// A same-status transition is allowed (location-only moves).
func CanTransition(from, to TireStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Tire represents a single physical tire asset tracked through its lifecycle
type Tire struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	SkuID        *uint      `json:"sku_id" gorm:"index"` // nullable for legacy untyped tires
	UniqueTireID string     `json:"unique_tire_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	SerialNumber string     `json:"serial_number" gorm:"type:varchar(100)"`
	DOTCode      string     `json:"dot_code" gorm:"type:varchar(32);index"`

	ManufactureWeek int           `json:"manufacture_week"`
	ManufactureYear int           `json:"manufacture_year"`
	Condition       TireCondition `json:"condition" gorm:"type:varchar(16);default:'NEW'"`

	Status TireStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'available'"`

	// Location: exactly one of warehouse or vehicle+position is set while the
	// tire is in circulation; both are empty once retired or defective off-vehicle.
	WarehouseID *uint  `json:"warehouse_id" gorm:"index"`
	VehicleID   *uint  `json:"vehicle_id" gorm:"index"`
	Position    string `json:"position" gorm:"type:varchar(16)"`

	Cost   float64 `json:"cost"`
	Vendor string  `json:"vendor" gorm:"type:varchar(100)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AgeInWeeks returns the tire age derived from the DOT week/year stamp,
// or -1 when the stamp is missing.
func (t *Tire) AgeInWeeks(now time.Time) int {
	if t.ManufactureYear == 0 || t.ManufactureWeek == 0 {
		return -1
	}
	// Monday of the stamped ISO week.
	jan4 := time.Date(t.ManufactureYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	manufactured := week1Monday.AddDate(0, 0, (t.ManufactureWeek-1)*7)
	if manufactured.After(now) {
		return 0
	}
	return int(now.Sub(manufactured).Hours() / (24 * 7))
}
