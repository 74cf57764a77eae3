package lifecycle

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tire-service/internal/model"
)

// stockDelta returns the SKU counter adjustment for a status change. Only
// edges into or out of available move the counter; everything else is
// invisible to stock.
func stockDelta(from, to model.TireStatus) int {
	switch {
	case from == to:
		return 0
	case from == model.StatusAvailable:
		return -1
	case to == model.StatusAvailable:
		return +1
	default:
		return 0
	}
}

// adjustStock applies a delta to a SKU's counter as a single relational
// update. Expressed as a delta, never read-modify-write, so concurrent
// receiving and dispensing stay correct.
func adjustStock(tx *gorm.DB, skuID *uint, delta int) error {
	if skuID == nil || delta == 0 {
		return nil
	}
	return tx.Model(&model.Sku{}).
		Where("id = ?", *skuID).
		UpdateColumn("current_stock", gorm.Expr("current_stock + ?", delta)).Error
}

// adjustStockForTransition applies the counter movement implied by a tire's
// status change, if any.
func adjustStockForTransition(tx *gorm.DB, tire *model.Tire, from, to model.TireStatus) error {
	return adjustStock(tx, tire.SkuID, stockDelta(from, to))
}

// SkuStock is the stock snapshot exposed per SKU
type SkuStock struct {
	SkuID        uint   `json:"sku_id"`
	SkuCode      string `json:"sku_code"`
	SkuName      string `json:"sku_name"`
	CurrentStock int    `json:"current_stock"`
	MinStock     *int   `json:"min_stock_level"`
	ReorderPoint *int   `json:"reorder_point"`
	StockStatus  string `json:"stock_status"`
	LowStock     bool   `json:"low_stock"`
}

// Stock returns the current counter and threshold flags for a SKU
func (s *Service) Stock(ctx context.Context, skuID uint) (*SkuStock, error) {
	var sku model.Sku
	err := s.db.WithContext(ctx).First(&sku, skuID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "sku", ID: skuID}
		}
		return nil, err
	}
	return &SkuStock{
		SkuID:        sku.ID,
		SkuCode:      sku.SkuCode,
		SkuName:      sku.SkuName,
		CurrentStock: sku.CurrentStock,
		MinStock:     sku.MinStockLevel,
		ReorderPoint: sku.ReorderPoint,
		StockStatus:  sku.StockStatus(),
		LowStock:     sku.IsLowStock(),
	}, nil
}
