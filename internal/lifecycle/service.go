package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tire-service/internal/model"
	"tire-service/pkg/config"
)

// Service is the lifecycle coordinator. Every operation executes as one
// transaction spanning the tire row, the axle position rows, the operation
// ledger and the SKU stock counter: either all four land together or none
// do. Rows are locked in ascending tire id, then axle position, then vehicle
// order so concurrent batches on overlapping sets cannot deadlock.
type Service struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewService builds a coordinator on the given database handle
func NewService(db *gorm.DB, cfg config.LifecycleConfig) *Service {
	return &Service{db: db, lockTimeout: cfg.LockTimeout}
}

// inTx wraps fn in a transaction. On Postgres a per-transaction lock_timeout
// bounds waits on contended rows so the caller sees a retryable conflict
// instead of queuing indefinitely. Lock timeouts and deadlock aborts raised
// by any statement inside the transaction surface as ConflictError.
func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	if err != nil && !IsConflict(err) && isLockConflict(err) {
		return &ConflictError{Resource: "lifecycle state", Err: err}
	}
	return err
}

// MountInput is the request to mount a tire onto a vehicle position
type MountInput struct {
	TireID    uint
	VehicleID uint
	Position  string
	Odometer  int64
	ActorID   *uint
	Notes     string
}

// Mount puts an available (or pre-reserved) tire onto a vehicle position.
// Retired, defective and already-mounted tires are rejected. When a formal
// axle position row exists the slot must be free or already held by this
// tire; without a formal row the position is tracked on the tire alone.
func (s *Service) Mount(ctx context.Context, in MountInput) (*model.Tire, error) {
	position := strings.TrimSpace(in.Position)
	if position == "" {
		return nil, fmt.Errorf("position required")
	}

	var tire *model.Tire
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		tire, err = lockTire(tx, in.TireID)
		if err != nil {
			return err
		}
		if tire.Status != model.StatusAvailable && tire.Status != model.StatusReserved {
			return &InvalidTransitionError{TireID: tire.ID, From: tire.Status, Op: "mount"}
		}

		pos, err := findPosition(tx, in.VehicleID, position)
		if err != nil {
			return err
		}
		if pos != nil && pos.TireID != nil && *pos.TireID != tire.ID {
			return &PositionOccupiedError{
				VehicleID:  in.VehicleID,
				Position:   position,
				OccupantID: *pos.TireID,
			}
		}

		// Legacy occupancy check for vehicles without a formal axle row:
		// no other mounted tire may claim the same (vehicle, position).
		var occupant model.Tire
		err = tx.Where("vehicle_id = ? AND position = ? AND status = ? AND id <> ?",
			in.VehicleID, position, model.StatusMounted, tire.ID).
			First(&occupant).Error
		if err == nil {
			return &PositionOccupiedError{
				VehicleID:  in.VehicleID,
				Position:   position,
				OccupantID: occupant.ID,
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		vehicle, err := lockVehicle(tx, in.VehicleID)
		if err != nil {
			return err
		}

		from := tire.Status
		if err := transitionTire(tx, tire, model.StatusMounted, onVehicle(in.VehicleID, position), "mount"); err != nil {
			return err
		}
		if pos != nil {
			if err := occupyPosition(tx, pos, tire.ID); err != nil {
				return err
			}
		}
		if err := clampOdometer(tx, vehicle, in.Odometer); err != nil {
			return err
		}

		odo := in.Odometer
		if err := appendOperation(tx, &model.TireOperation{
			TireID:    tire.ID,
			VehicleID: &in.VehicleID,
			UserID:    in.ActorID,
			Type:      model.OpMount,
			Odometer:  &odo,
			Position:  position,
			Notes:     in.Notes,
		}); err != nil {
			return err
		}

		return adjustStockForTransition(tx, tire, from, model.StatusMounted)
	})
	if err != nil {
		return nil, err
	}
	return tire, nil
}

// DismountInput is the request to take a mounted tire back into a warehouse
type DismountInput struct {
	TireID        uint
	ToWarehouseID uint
	Odometer      int64
	ActorID       *uint
	Reason        string
}

// Dismount removes a mounted tire from its vehicle into a warehouse. The
// axle position is vacated if it still points at this tire; a slot already
// cleared by an earlier partial failure is tolerated.
func (s *Service) Dismount(ctx context.Context, in DismountInput) (*model.Tire, error) {
	var tire *model.Tire
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		tire, err = lockTire(tx, in.TireID)
		if err != nil {
			return err
		}
		if tire.Status != model.StatusMounted {
			return &InvalidTransitionError{TireID: tire.ID, From: tire.Status, Op: "dismount"}
		}

		if err := tx.First(&model.Warehouse{}, in.ToWarehouseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "warehouse", ID: in.ToWarehouseID}
			}
			return err
		}

		vehicleID := *tire.VehicleID
		fromPosition := tire.Position

		if err := vacateTireEverywhere(tx, tire.ID); err != nil {
			return err
		}

		vehicle, err := lockVehicle(tx, vehicleID)
		if err != nil {
			return err
		}
		if err := clampOdometer(tx, vehicle, in.Odometer); err != nil {
			return err
		}

		odo := in.Odometer
		if err := appendOperation(tx, &model.TireOperation{
			TireID:    tire.ID,
			VehicleID: &vehicleID,
			UserID:    in.ActorID,
			Type:      model.OpDismount,
			Odometer:  &odo,
			Position:  fromPosition,
			Notes:     in.Reason,
		}); err != nil {
			return err
		}

		if err := transitionTire(tx, tire, model.StatusAvailable, atWarehouse(in.ToWarehouseID), "dismount"); err != nil {
			return err
		}
		return adjustStockForTransition(tx, tire, model.StatusMounted, model.StatusAvailable)
	})
	if err != nil {
		return nil, err
	}
	return tire, nil
}

// RotatePair moves one tire to a new position during a rotation batch
type RotatePair struct {
	TireID      uint   `json:"tire_id"`
	NewPosition string `json:"new_position"`
}

// RotateInput is the request to rotate tires between positions on one vehicle
type RotateInput struct {
	VehicleID uint
	Rotations []RotatePair
	Odometer  int64
	ActorID   *uint
}

// Rotate applies a batch of position changes on one vehicle as a single
// atomic unit. Every pair must pass its preconditions before any write
// happens; a partial rotation is never persisted.
func (s *Service) Rotate(ctx context.Context, in RotateInput) ([]model.Tire, error) {
	if len(in.Rotations) == 0 {
		return nil, fmt.Errorf("rotations required")
	}

	var rotated []model.Tire
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uint, 0, len(in.Rotations))
		for _, pair := range in.Rotations {
			ids = append(ids, pair.TireID)
		}
		tires, err := lockTires(tx, ids)
		if err != nil {
			return err
		}

		inBatch := make(map[uint]bool, len(ids))
		for _, id := range ids {
			inBatch[id] = true
		}

		// Precondition pass: nothing is written until every pair checks out.
		targets := make(map[string]int, len(in.Rotations))
		for i, pair := range in.Rotations {
			tire := tires[pair.TireID]
			newPos := strings.TrimSpace(pair.NewPosition)
			if newPos == "" {
				return &BatchError{Index: i, Err: fmt.Errorf("new position required")}
			}
			if prev, dup := targets[newPos]; dup {
				return &BatchError{Index: i,
					Err: fmt.Errorf("position %s already targeted by pair %d", newPos, prev)}
			}
			targets[newPos] = i

			if tire.Status != model.StatusMounted {
				return &BatchError{Index: i, Err: &InvalidTransitionError{
					TireID: tire.ID, From: tire.Status, Op: "rotate"}}
			}
			if tire.VehicleID == nil || *tire.VehicleID != in.VehicleID {
				return &BatchError{Index: i, Err: &InvalidTransitionError{
					TireID: tire.ID, From: tire.Status, Op: "rotate",
					Reason: fmt.Sprintf("not mounted on vehicle %d", in.VehicleID)}}
			}

			// A target held by a tire outside the batch is a true collision.
			var occupant model.Tire
			err := tx.Where("vehicle_id = ? AND position = ? AND status = ?",
				in.VehicleID, newPos, model.StatusMounted).
				First(&occupant).Error
			if err == nil && occupant.ID != tire.ID && !inBatch[occupant.ID] {
				return &BatchError{Index: i, Err: &PositionOccupiedError{
					VehicleID: in.VehicleID, Position: newPos, OccupantID: occupant.ID}}
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		// Lock every formal axle row the batch touches in one scan ordered by
		// row id, so overlapping rotations acquire their row locks in the
		// same order even when their tire sets are disjoint.
		codes := make([]string, 0, len(in.Rotations)*2)
		seenCode := make(map[string]bool, len(in.Rotations)*2)
		for _, pair := range in.Rotations {
			for _, code := range []string{strings.TrimSpace(pair.NewPosition), tires[pair.TireID].Position} {
				if code != "" && !seenCode[code] {
					seenCode[code] = true
					codes = append(codes, code)
				}
			}
		}
		var lockedRows []model.AxlePosition
		if err := forUpdate(tx).
			Where("vehicle_id = ? AND position_code IN ?", in.VehicleID, codes).
			Order("id ASC").
			Find(&lockedRows).Error; err != nil {
			return err
		}
		rowByCode := make(map[string]*model.AxlePosition, len(lockedRows))
		for i := range lockedRows {
			rowByCode[lockedRows[i].PositionCode] = &lockedRows[i]
		}

		odo := in.Odometer
		for _, pair := range in.Rotations {
			tire := tires[pair.TireID]
			newPos := strings.TrimSpace(pair.NewPosition)
			oldPos := tire.Position

			// Claim the target row first, then release the old one if it still
			// points at this tire. This order keeps chained swaps (A->B, B->A)
			// consistent within the batch, and the old row is cleared even when
			// the new position has no formal row.
			if target := rowByCode[newPos]; target != nil {
				if err := tx.Model(target).UpdateColumn("tire_id", tire.ID).Error; err != nil {
					return err
				}
				target.TireID = &tire.ID
			}
			if old := rowByCode[oldPos]; oldPos != newPos && old != nil &&
				old.TireID != nil && *old.TireID == tire.ID {
				if err := vacatePosition(tx, old.ID, tire.ID); err != nil {
					return err
				}
				old.TireID = nil
			}

			if err := appendOperation(tx, &model.TireOperation{
				TireID:           tire.ID,
				VehicleID:        &in.VehicleID,
				UserID:           in.ActorID,
				Type:             model.OpRotate,
				Odometer:         &odo,
				Position:         newPos,
				PreviousPosition: oldPos,
			}); err != nil {
				return err
			}

			tire.Position = newPos
			if err := tx.Model(tire).UpdateColumn("position", newPos).Error; err != nil {
				return err
			}
			rotated = append(rotated, *tire)
		}

		vehicle, err := lockVehicle(tx, in.VehicleID)
		if err != nil {
			return err
		}
		return clampOdometer(tx, vehicle, in.Odometer)
	})
	if err != nil {
		return nil, err
	}
	return rotated, nil
}

// ReplaceInput is the request to swap a mounted tire for an available one
type ReplaceInput struct {
	OldTireID uint
	NewTireID uint
	Odometer  int64
	Reason    string
	ActorID   *uint
}

// Replace swaps a mounted tire for an available one in place: the new tire
// takes over the vehicle position, the old one returns to the new tire's
// former warehouse. Two ledger entries are produced, one per tire.
func (s *Service) Replace(ctx context.Context, in ReplaceInput) ([]model.Tire, error) {
	if in.OldTireID == in.NewTireID {
		return nil, fmt.Errorf("old and new tire must differ")
	}

	var result []model.Tire
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		tires, err := lockTires(tx, []uint{in.OldTireID, in.NewTireID})
		if err != nil {
			return err
		}
		oldTire := tires[in.OldTireID]
		newTire := tires[in.NewTireID]

		if oldTire.Status != model.StatusMounted {
			return &InvalidTransitionError{TireID: oldTire.ID, From: oldTire.Status, Op: "replace",
				Reason: "old tire is not mounted"}
		}
		if newTire.Status != model.StatusAvailable {
			return &InvalidTransitionError{TireID: newTire.ID, From: newTire.Status, Op: "replace",
				Reason: "new tire is not available"}
		}

		vehicleID := *oldTire.VehicleID
		position := oldTire.Position
		returnWarehouse := newTire.WarehouseID

		odo := in.Odometer
		outNotes := fmt.Sprintf("Replaced by %s", newTire.UniqueTireID)
		if in.Reason != "" {
			outNotes += ". " + in.Reason
		}
		if err := appendOperation(tx, &model.TireOperation{
			TireID:    oldTire.ID,
			VehicleID: &vehicleID,
			UserID:    in.ActorID,
			Type:      model.OpReplaceOut,
			Odometer:  &odo,
			Position:  position,
			Notes:     outNotes,
		}); err != nil {
			return err
		}
		if err := appendOperation(tx, &model.TireOperation{
			TireID:    newTire.ID,
			VehicleID: &vehicleID,
			UserID:    in.ActorID,
			Type:      model.OpReplaceIn,
			Odometer:  &odo,
			Position:  position,
			Notes:     fmt.Sprintf("Replaced %s", oldTire.UniqueTireID),
		}); err != nil {
			return err
		}

		if returnWarehouse == nil {
			return &InvalidTransitionError{TireID: newTire.ID, From: newTire.Status, Op: "replace",
				Reason: "new tire has no warehouse to return the old tire to"}
		}
		if err := transitionTire(tx, oldTire, model.StatusAvailable, atWarehouse(*returnWarehouse), "replace"); err != nil {
			return err
		}
		if err := adjustStockForTransition(tx, oldTire, model.StatusMounted, model.StatusAvailable); err != nil {
			return err
		}

		if err := transitionTire(tx, newTire, model.StatusMounted, onVehicle(vehicleID, position), "replace"); err != nil {
			return err
		}
		if err := adjustStockForTransition(tx, newTire, model.StatusAvailable, model.StatusMounted); err != nil {
			return err
		}

		// Axle row moves over to the new tire; a slot already vacant from a
		// prior partial failure is tolerated.
		pos, err := findPosition(tx, vehicleID, position)
		if err != nil {
			return err
		}
		if pos != nil {
			if pos.TireID != nil && *pos.TireID != oldTire.ID && *pos.TireID != newTire.ID {
				return &PositionOccupiedError{
					VehicleID: vehicleID, Position: position, OccupantID: *pos.TireID}
			}
			pos.TireID = &newTire.ID
			if err := tx.Model(pos).UpdateColumn("tire_id", newTire.ID).Error; err != nil {
				return err
			}
		}

		vehicle, err := lockVehicle(tx, vehicleID)
		if err != nil {
			return err
		}
		if err := clampOdometer(tx, vehicle, in.Odometer); err != nil {
			return err
		}

		result = []model.Tire{*oldTire, *newTire}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RepairInput records a repair against a tire
type RepairInput struct {
	TireID  uint
	Cost    float64
	Vendor  string
	Notes   string
	ActorID *uint
}

// Repair appends a repair entry with cost and vendor. The tire's status and
// location are untouched.
func (s *Service) Repair(ctx context.Context, in RepairInput) (*model.TireOperation, error) {
	if strings.TrimSpace(in.Notes) == "" {
		return nil, fmt.Errorf("notes required")
	}

	var op model.TireOperation
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		tire, err := lockTire(tx, in.TireID)
		if err != nil {
			return err
		}

		var odometer *int64
		if tire.VehicleID != nil {
			var vehicle model.Vehicle
			if err := tx.First(&vehicle, *tire.VehicleID).Error; err == nil {
				o := vehicle.Odometer
				odometer = &o
			}
		}

		op = model.TireOperation{
			TireID:    tire.ID,
			VehicleID: tire.VehicleID,
			UserID:    in.ActorID,
			Type:      model.OpRepair,
			Odometer:  odometer,
			Position:  tire.Position,
			Notes:     in.Notes,
			Cost:      in.Cost,
			Vendor:    in.Vendor,
		}
		return appendOperation(tx, &op)
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ReserveInput pre-allocates a tire to a vehicle position
type ReserveInput struct {
	TireID    uint
	VehicleID uint
	Position  string
	ActorID   *uint
}

// Reserve pre-allocates an available tire to a vehicle position without
// physically occupying the axle slot. The reservation is advisory: the slot
// stays free for mounting until the reserved tire itself is mounted.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*model.Tire, error) {
	position := strings.TrimSpace(in.Position)
	if position == "" {
		return nil, fmt.Errorf("position required")
	}

	var tire *model.Tire
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		tire, err = lockTire(tx, in.TireID)
		if err != nil {
			return err
		}
		if tire.Status != model.StatusAvailable {
			return &InvalidTransitionError{TireID: tire.ID, From: tire.Status, Op: "reserve"}
		}
		if err := tx.First(&model.Vehicle{}, in.VehicleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "vehicle", ID: in.VehicleID}
			}
			return err
		}

		from := tire.Status
		if err := transitionTire(tx, tire, model.StatusReserved, onVehicle(in.VehicleID, position), "reserve"); err != nil {
			return err
		}

		if err := appendOperation(tx, &model.TireOperation{
			TireID:    tire.ID,
			VehicleID: &in.VehicleID,
			UserID:    in.ActorID,
			Type:      model.OpReserve,
			Position:  position,
		}); err != nil {
			return err
		}

		return adjustStockForTransition(tx, tire, from, model.StatusReserved)
	})
	if err != nil {
		return nil, err
	}
	return tire, nil
}

// DisposeInput retires a tire permanently
type DisposeInput struct {
	TireID  uint
	Reason  string
	ActorID *uint
}

// Dispose retires a tire. Mounted tires must be dismounted first; retired is
// terminal. The stock counter drops only when the tire was still available.
func (s *Service) Dispose(ctx context.Context, in DisposeInput) (*model.Tire, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("reason required")
	}

	var tire *model.Tire
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		tire, err = lockTire(tx, in.TireID)
		if err != nil {
			return err
		}
		if tire.Status == model.StatusMounted {
			return &InvalidTransitionError{TireID: tire.ID, From: tire.Status, Op: "dispose",
				Reason: "dismount first"}
		}
		if tire.Status == model.StatusRetired {
			return &InvalidTransitionError{TireID: tire.ID, From: tire.Status, Op: "dispose"}
		}

		from := tire.Status
		fromWarehouse := tire.WarehouseID

		if err := appendOperation(tx, &model.TireOperation{
			TireID:    tire.ID,
			VehicleID: tire.VehicleID,
			UserID:    in.ActorID,
			Type:      model.OpDispose,
			Notes:     in.Reason,
		}); err != nil {
			return err
		}

		if err := transitionTire(tx, tire, model.StatusRetired, nowhere(), "dispose"); err != nil {
			return err
		}
		if err := adjustStockForTransition(tx, tire, from, model.StatusRetired); err != nil {
			return err
		}

		tid := tire.ID
		return tx.Create(&model.StockMovement{
			TireID:          &tid,
			FromWarehouseID: fromWarehouse,
			Type:            model.MovementDisposal,
			Quantity:        1,
			Notes:           in.Reason,
			UserID:          in.ActorID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return tire, nil
}

// GetTire returns a tire by id
func (s *Service) GetTire(ctx context.Context, id uint) (*model.Tire, error) {
	var t model.Tire
	err := s.db.WithContext(ctx).First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "tire", ID: id}
		}
		return nil, err
	}
	return &t, nil
}

// TireFilter selects tires for listing. Zero values are ignored.
type TireFilter struct {
	Status      model.TireStatus
	SkuID       uint
	WarehouseID uint
	VehicleID   uint
	Offset      int
	Limit       int
}

// ListTires returns tires matching the filter with paging
func (s *Service) ListTires(ctx context.Context, f TireFilter) ([]model.Tire, int64, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&model.Tire{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SkuID != 0 {
		q = q.Where("sku_id = ?", f.SkuID)
	}
	if f.WarehouseID != 0 {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.VehicleID != 0 {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tires []model.Tire
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&tires).Error; err != nil {
		return nil, 0, err
	}
	return tires, total, nil
}
