package lifecycle

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tire-service/internal/model"
)

// findPosition looks up the formal axle position row for (vehicle, code)
// under FOR UPDATE. Returns nil without error when no row exists: legacy
// vehicles without a formal axle configuration track positions on the tire
// alone.
func findPosition(tx *gorm.DB, vehicleID uint, code string) (*model.AxlePosition, error) {
	var pos model.AxlePosition
	err := forUpdate(tx).
		Where("vehicle_id = ? AND position_code = ?", vehicleID, code).
		First(&pos).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if isLockConflict(err) {
			return nil, &ConflictError{Resource: "axle position", Err: err}
		}
		return nil, err
	}
	return &pos, nil
}

// occupyPosition assigns a tire to a locked axle position row. Fails when a
// different tire already holds the slot; assigning the same tire again is a
// no-op.
func occupyPosition(tx *gorm.DB, pos *model.AxlePosition, tireID uint) error {
	if pos.TireID != nil && *pos.TireID != tireID {
		return &PositionOccupiedError{
			VehicleID:  pos.VehicleID,
			Position:   pos.PositionCode,
			OccupantID: *pos.TireID,
		}
	}
	pos.TireID = &tireID
	return tx.Model(pos).UpdateColumn("tire_id", tireID).Error
}

// vacatePosition clears an axle position only if it still holds the expected
// tire. A mismatch (stale read, prior partial failure) is a silent no-op.
func vacatePosition(tx *gorm.DB, positionID, expectedTireID uint) error {
	return tx.Model(&model.AxlePosition{}).
		Where("id = ? AND tire_id = ?", positionID, expectedTireID).
		UpdateColumn("tire_id", nil).Error
}

// vacateTireEverywhere clears any axle row still pointing at the tire,
// defensive against rows left behind by earlier partial failures.
func vacateTireEverywhere(tx *gorm.DB, tireID uint) error {
	return tx.Model(&model.AxlePosition{}).
		Where("tire_id = ?", tireID).
		UpdateColumn("tire_id", nil).Error
}

// PositionInput describes one slot of a vehicle's axle configuration
type PositionInput struct {
	PositionCode        string `json:"position_code"`
	AxleNumber          int    `json:"axle_number"`
	Side                string `json:"side"`
	TireTypeRequirement string `json:"tire_type_requirement"`
}

// ConfigureAxles replaces a vehicle's formal axle configuration. Existing
// rows are updated in place, new codes are created, and codes absent from
// the input are deleted. An occupied position is never deleted.
func (s *Service) ConfigureAxles(ctx context.Context, vehicleID uint, inputs []PositionInput) ([]model.AxlePosition, error) {
	var result []model.AxlePosition
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&model.Vehicle{}, vehicleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "vehicle", ID: vehicleID}
			}
			return err
		}

		var existing []model.AxlePosition
		if err := forUpdate(tx).
			Where("vehicle_id = ?", vehicleID).
			Order("id ASC").
			Find(&existing).Error; err != nil {
			return err
		}

		byCode := make(map[string]*model.AxlePosition, len(existing))
		for i := range existing {
			byCode[existing[i].PositionCode] = &existing[i]
		}

		wanted := make(map[string]bool, len(inputs))
		for _, in := range inputs {
			wanted[in.PositionCode] = true
			if pos, ok := byCode[in.PositionCode]; ok {
				pos.AxleNumber = in.AxleNumber
				pos.Side = in.Side
				pos.TireTypeRequirement = in.TireTypeRequirement
				if err := tx.Save(pos).Error; err != nil {
					return err
				}
			} else {
				pos := model.AxlePosition{
					VehicleID:           vehicleID,
					PositionCode:        in.PositionCode,
					AxleNumber:          in.AxleNumber,
					Side:                in.Side,
					TireTypeRequirement: in.TireTypeRequirement,
				}
				if err := tx.Create(&pos).Error; err != nil {
					return err
				}
			}
		}

		for _, pos := range existing {
			if wanted[pos.PositionCode] {
				continue
			}
			if pos.TireID != nil {
				return &PositionOccupiedError{
					VehicleID:  vehicleID,
					Position:   pos.PositionCode,
					OccupantID: *pos.TireID,
				}
			}
			if err := tx.Delete(&model.AxlePosition{}, pos.ID).Error; err != nil {
				return err
			}
		}

		return tx.Where("vehicle_id = ?", vehicleID).
			Order("axle_number ASC, position_code ASC").
			Find(&result).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Occupancy returns all formal axle positions of a vehicle with their
// current occupant tires, ordered by axle then position code.
func (s *Service) Occupancy(ctx context.Context, vehicleID uint) ([]model.AxlePosition, error) {
	db := s.db.WithContext(ctx)
	if err := db.First(&model.Vehicle{}, vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "vehicle", ID: vehicleID}
		}
		return nil, err
	}
	var positions []model.AxlePosition
	err := db.Preload("Tire").
		Where("vehicle_id = ?", vehicleID).
		Order("axle_number ASC, position_code ASC").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}
