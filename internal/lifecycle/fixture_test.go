package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tire-service/internal/model"
	"tire-service/pkg/config"
	"tire-service/pkg/database"
)

// newTestService builds a coordinator on an in-memory database with the
// full schema migrated.
func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive across the test
	// and serializes writers the way sqlite expects.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	return NewService(db, config.LifecycleConfig{LockTimeout: 500 * time.Millisecond})
}

func seedSku(t *testing.T, s *Service, code string, stock int) *model.Sku {
	t.Helper()
	minLevel := 2
	sku := &model.Sku{
		SkuCode:       code,
		SkuName:       code + " drive tire",
		Brand:         "Michelin",
		Size:          "315/80R22.5",
		TireType:      "DRIVE",
		CurrentStock:  stock,
		MinStockLevel: &minLevel,
		Status:        "active",
	}
	require.NoError(t, s.db.Create(sku).Error)
	return sku
}

func seedWarehouse(t *testing.T, s *Service, name string) *model.Warehouse {
	t.Helper()
	wh := &model.Warehouse{Name: name, Location: "Depot road 1"}
	require.NoError(t, s.db.Create(wh).Error)
	return wh
}

func seedVehicle(t *testing.T, s *Service, plate string) *model.Vehicle {
	t.Helper()
	v := &model.Vehicle{PlateNumber: plate, Make: "Volvo", Model: "FH16", AxleConfig: 3}
	require.NoError(t, s.db.Create(v).Error)
	return v
}

// seedTire creates a tire directly in the given status. The SKU counter is
// not touched; seed the SKU with a matching stock figure.
func seedTire(t *testing.T, s *Service, sku *model.Sku, status model.TireStatus, wh *model.Warehouse) *model.Tire {
	t.Helper()
	tire := &model.Tire{
		SkuID:        &sku.ID,
		UniqueTireID: fmt.Sprintf("%s-%s", sku.SkuCode, uuid.NewString()[:8]),
		DOTCode:      fmt.Sprintf("DOT%s", uuid.NewString()[:10]),
		Condition:    model.ConditionNew,
		Status:       status,
	}
	if wh != nil {
		tire.WarehouseID = &wh.ID
	}
	require.NoError(t, s.db.Create(tire).Error)
	return tire
}

func currentStock(t *testing.T, s *Service, skuID uint) int {
	t.Helper()
	var sku model.Sku
	require.NoError(t, s.db.First(&sku, skuID).Error)
	return sku.CurrentStock
}

func reloadTire(t *testing.T, s *Service, id uint) *model.Tire {
	t.Helper()
	var tire model.Tire
	require.NoError(t, s.db.First(&tire, id).Error)
	return &tire
}

func reloadVehicle(t *testing.T, s *Service, id uint) *model.Vehicle {
	t.Helper()
	var v model.Vehicle
	require.NoError(t, s.db.First(&v, id).Error)
	return &v
}

func axleOccupant(t *testing.T, s *Service, vehicleID uint, code string) *uint {
	t.Helper()
	var pos model.AxlePosition
	require.NoError(t, s.db.
		Where("vehicle_id = ? AND position_code = ?", vehicleID, code).
		First(&pos).Error)
	return pos.TireID
}

func ledgerCount(t *testing.T, s *Service, tireID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&model.TireOperation{}).
		Where("tire_id = ?", tireID).Count(&n).Error)
	return n
}

// configureSteerAxle sets up the standard front axle slots on a vehicle
func configureSteerAxle(t *testing.T, s *Service, vehicleID uint) {
	t.Helper()
	_, err := s.ConfigureAxles(context.Background(), vehicleID, []PositionInput{
		{PositionCode: "FL", AxleNumber: 1, Side: "L", TireTypeRequirement: "STEER"},
		{PositionCode: "FR", AxleNumber: 1, Side: "R", TireTypeRequirement: "STEER"},
	})
	require.NoError(t, err)
}
