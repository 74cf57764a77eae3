package lifecycle

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tire-service/internal/model"
)

// appendOperation inserts one immutable ledger row. Pure insert; existing
// rows are never touched.
func appendOperation(tx *gorm.DB, op *model.TireOperation) error {
	return tx.Create(op).Error
}

// HistoryFilter selects ledger entries by tire, vehicle or technician.
// Zero-valued filters are ignored.
type HistoryFilter struct {
	TireID    uint
	VehicleID uint
	UserID    uint
	Offset    int
	Limit     int
}

// History returns ledger entries newest first with offset/limit paging
func (s *Service) History(ctx context.Context, f HistoryFilter) ([]model.TireOperation, int64, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&model.TireOperation{})
	if f.TireID != 0 {
		q = q.Where("tire_id = ?", f.TireID)
	}
	if f.VehicleID != 0 {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ops []model.TireOperation
	if err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&ops).Error; err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

// GetOperation returns one ledger entry by id
func (s *Service) GetOperation(ctx context.Context, id uint) (*model.TireOperation, error) {
	var op model.TireOperation
	err := s.db.WithContext(ctx).First(&op, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "operation", ID: id}
		}
		return nil, err
	}
	return &op, nil
}

// AppendNote appends text to an existing ledger entry's notes. This is the
// only mutation the ledger permits after insert.
func (s *Service) AppendNote(ctx context.Context, id uint, note string) (*model.TireOperation, error) {
	note = strings.TrimSpace(note)
	var op model.TireOperation
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&op, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "operation", ID: id}
			}
			return err
		}
		if op.Notes == "" {
			op.Notes = note
		} else {
			op.Notes = op.Notes + "\n" + note
		}
		return tx.Model(&op).UpdateColumn("notes", op.Notes).Error
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}
