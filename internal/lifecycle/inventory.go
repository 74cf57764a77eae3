package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tire-service/internal/model"
)

// ReceiveTireInput describes one physical tire being received
type ReceiveTireInput struct {
	DOTCode         string              `json:"dot_code"`
	SerialNumber    string              `json:"serial_number"`
	ManufactureWeek int                 `json:"manufacture_week"`
	ManufactureYear int                 `json:"manufacture_year"`
	Condition       model.TireCondition `json:"condition"`
	Cost            float64             `json:"cost"`
	Vendor          string              `json:"vendor"`
}

// ReceiveInput is a warehouse receipt of one or more tires under one SKU
type ReceiveInput struct {
	SkuCode     string
	WarehouseID uint
	Tires       []ReceiveTireInput
	ActorID     *uint
	Notes       string
}

// ReceiveResult reports what a receipt created
type ReceiveResult struct {
	Tires         []model.Tire `json:"tires"`
	ReceivedCount int          `json:"received_count"`
	SkuCode       string       `json:"sku_code"`
	NewStockLevel int          `json:"new_stock_level"`
}

// Receive creates tire assets with status available and raises the SKU stock
// counter by the received count, all in one transaction with the purchase
// stock movement.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	if len(in.Tires) == 0 {
		return nil, fmt.Errorf("at least one tire required")
	}

	var result ReceiveResult
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var sku model.Sku
		if err := tx.Where("sku_code = ?", in.SkuCode).First(&sku).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("sku %q not found", in.SkuCode)
			}
			return err
		}
		if !sku.IsActive() {
			return fmt.Errorf("cannot receive tires for inactive sku %q", sku.SkuCode)
		}
		if err := tx.First(&model.Warehouse{}, in.WarehouseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "warehouse", ID: in.WarehouseID}
			}
			return err
		}

		warehouseID := in.WarehouseID
		for _, t := range in.Tires {
			dot := strings.ToUpper(strings.TrimSpace(t.DOTCode))
			if dot == "" {
				return fmt.Errorf("dot code required")
			}
			var count int64
			if err := tx.Model(&model.Tire{}).Where("dot_code = ?", dot).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("tire with dot code %s already exists", dot)
			}

			condition := t.Condition
			if condition == "" {
				condition = model.ConditionNew
			}
			skuID := sku.ID
			tire := model.Tire{
				SkuID:           &skuID,
				UniqueTireID:    fmt.Sprintf("%s-%s", sku.SkuCode, uuid.NewString()[:8]),
				SerialNumber:    t.SerialNumber,
				DOTCode:         dot,
				ManufactureWeek: t.ManufactureWeek,
				ManufactureYear: t.ManufactureYear,
				Condition:       condition,
				Status:          model.StatusAvailable,
				WarehouseID:     &warehouseID,
				Cost:            t.Cost,
				Vendor:          t.Vendor,
			}
			if err := tx.Create(&tire).Error; err != nil {
				return err
			}
			result.Tires = append(result.Tires, tire)
		}

		count := len(in.Tires)
		if err := adjustStock(tx, &sku.ID, count); err != nil {
			return err
		}

		notes := in.Notes
		if notes == "" {
			notes = fmt.Sprintf("Received %d tire(s) for %s", count, sku.SkuCode)
		}
		if err := tx.Create(&model.StockMovement{
			ToWarehouseID: &warehouseID,
			Type:          model.MovementPurchase,
			Quantity:      count,
			Notes:         notes,
			UserID:        in.ActorID,
		}).Error; err != nil {
			return err
		}

		// Re-read the counter inside the transaction for the response.
		if err := tx.First(&sku, sku.ID).Error; err != nil {
			return err
		}
		result.ReceivedCount = count
		result.SkuCode = sku.SkuCode
		result.NewStockLevel = sku.CurrentStock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
