package lifecycle

import (
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tire-service/internal/model"
)

// location is the target placement of a tire after a transition. Exactly one
// of warehouse or vehicle+position may be populated; a retired or off-vehicle
// defective tire carries neither.
type location struct {
	warehouseID *uint
	vehicleID   *uint
	position    string
}

func atWarehouse(id uint) location {
	return location{warehouseID: &id}
}

func onVehicle(vehicleID uint, position string) location {
	return location{vehicleID: &vehicleID, position: position}
}

func nowhere() location {
	return location{}
}

// forUpdate adds a row lock where the dialect supports one. SQLite has a
// single writer and no FOR UPDATE syntax.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockTire fetches a tire under FOR UPDATE. Concurrent operations on the
// same tire serialize here; a lock wait timeout surfaces as ConflictError.
func lockTire(tx *gorm.DB, id uint) (*model.Tire, error) {
	var t model.Tire
	err := forUpdate(tx).First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "tire", ID: id}
		}
		if isLockConflict(err) {
			return nil, &ConflictError{Resource: "tire", Err: err}
		}
		return nil, err
	}
	return &t, nil
}

// lockTires locks a set of tires in ascending id order so that concurrent
// batches touching overlapping sets cannot deadlock.
func lockTires(tx *gorm.DB, ids []uint) (map[uint]*model.Tire, error) {
	sorted := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	tires := make(map[uint]*model.Tire, len(sorted))
	for _, id := range sorted {
		t, err := lockTire(tx, id)
		if err != nil {
			return nil, err
		}
		tires[id] = t
	}
	return tires, nil
}

// validLocation checks the status/location invariant:
// mounted/reserved -> vehicle+position set, no warehouse
// available        -> warehouse set, no vehicle
// retired          -> neither side set
// defective        -> never both sides (may keep its vehicle until pulled)
func validLocation(status model.TireStatus, loc location) bool {
	hasWarehouse := loc.warehouseID != nil
	hasVehicle := loc.vehicleID != nil && loc.position != ""

	switch status {
	case model.StatusMounted, model.StatusReserved:
		return hasVehicle && !hasWarehouse
	case model.StatusAvailable:
		return hasWarehouse && !hasVehicle
	case model.StatusRetired:
		return !hasWarehouse && !hasVehicle
	case model.StatusDefective:
		return !hasWarehouse || !hasVehicle
	default:
		return false
	}
}

// transitionTire applies a status+location change to a locked tire row.
// It enforces both the status transition table and the location invariant,
// then persists the row. Callers must already hold the row lock.
func transitionTire(tx *gorm.DB, tire *model.Tire, to model.TireStatus, loc location, op string) error {
	if !model.CanTransition(tire.Status, to) {
		return &InvalidTransitionError{TireID: tire.ID, From: tire.Status, Op: op}
	}
	if !validLocation(to, loc) {
		return &InvalidTransitionError{
			TireID: tire.ID,
			From:   tire.Status,
			Op:     op,
			Reason: "target location violates placement invariant",
		}
	}

	tire.Status = to
	tire.WarehouseID = loc.warehouseID
	tire.VehicleID = loc.vehicleID
	tire.Position = loc.position

	if err := tx.Model(tire).Select("status", "warehouse_id", "vehicle_id", "position").
		Updates(map[string]interface{}{
			"status":       tire.Status,
			"warehouse_id": tire.WarehouseID,
			"vehicle_id":   tire.VehicleID,
			"position":     tire.Position,
		}).Error; err != nil {
		return err
	}
	return nil
}

// lockVehicle fetches a vehicle under FOR UPDATE for odometer writes
func lockVehicle(tx *gorm.DB, id uint) (*model.Vehicle, error) {
	var v model.Vehicle
	err := forUpdate(tx).First(&v, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "vehicle", ID: id}
		}
		if isLockConflict(err) {
			return nil, &ConflictError{Resource: "vehicle", Err: err}
		}
		return nil, err
	}
	return &v, nil
}

// clampOdometer advances the vehicle odometer, never moving it backward.
// Out-of-order submissions are tolerated rather than rejected.
func clampOdometer(tx *gorm.DB, vehicle *model.Vehicle, reading int64) error {
	if reading <= vehicle.Odometer {
		return nil
	}
	vehicle.Odometer = reading
	return tx.Model(vehicle).UpdateColumn("odometer", reading).Error
}
