package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tire-service/internal/model"
)

func TestMountAndDismount(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 3)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-1001")
	configureSteerAxle(t, s, veh.ID)
	tire := seedTire(t, s, sku, model.StatusAvailable, wh)

	mounted, err := s.Mount(ctx, MountInput{
		TireID: tire.ID, VehicleID: veh.ID, Position: "FL", Odometer: 10000,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusMounted, mounted.Status)
	require.NotNil(t, mounted.VehicleID)
	assert.Equal(t, veh.ID, *mounted.VehicleID)
	assert.Equal(t, "FL", mounted.Position)
	assert.Nil(t, mounted.WarehouseID)

	assert.Equal(t, 2, currentStock(t, s, sku.ID))
	occupant := axleOccupant(t, s, veh.ID, "FL")
	require.NotNil(t, occupant)
	assert.Equal(t, tire.ID, *occupant)
	assert.Equal(t, int64(10000), reloadVehicle(t, s, veh.ID).Odometer)

	ops, total, err := s.History(ctx, HistoryFilter{TireID: tire.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, ops, 1)
	assert.Equal(t, model.OpMount, ops[0].Type)
	require.NotNil(t, ops[0].Odometer)
	assert.Equal(t, int64(10000), *ops[0].Odometer)
	assert.Equal(t, "FL", ops[0].Position)

	back, err := s.Dismount(ctx, DismountInput{
		TireID: tire.ID, ToWarehouseID: wh.ID, Odometer: 10500, Reason: "seasonal change",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, back.Status)
	require.NotNil(t, back.WarehouseID)
	assert.Equal(t, wh.ID, *back.WarehouseID)
	assert.Nil(t, back.VehicleID)
	assert.Empty(t, back.Position)

	assert.Equal(t, 3, currentStock(t, s, sku.ID))
	assert.Nil(t, axleOccupant(t, s, veh.ID, "FL"))
	assert.Equal(t, int64(10500), reloadVehicle(t, s, veh.ID).Odometer)

	ops, total, err = s.History(ctx, HistoryFilter{TireID: tire.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, ops, 2)
	assert.Equal(t, model.OpDismount, ops[0].Type)
	assert.Equal(t, "FL", ops[0].Position)
	assert.Equal(t, model.OpMount, ops[1].Type)
}

func TestMountRejectsWrongStatus(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 0)
	veh := seedVehicle(t, s, "B-1002")

	defective := seedTire(t, s, sku, model.StatusDefective, nil)
	_, err := s.Mount(ctx, MountInput{TireID: defective.ID, VehicleID: veh.ID, Position: "FL", Odometer: 100})
	assert.True(t, IsInvalidTransition(err))

	retired := seedTire(t, s, sku, model.StatusRetired, nil)
	_, err = s.Mount(ctx, MountInput{TireID: retired.ID, VehicleID: veh.ID, Position: "FL", Odometer: 100})
	assert.True(t, IsInvalidTransition(err))

	// Nothing was written.
	assert.Equal(t, 0, currentStock(t, s, sku.ID))
	assert.Equal(t, int64(0), ledgerCount(t, s, defective.ID))
	assert.Equal(t, model.StatusDefective, reloadTire(t, s, defective.ID).Status)
}

func TestMountRejectsOccupiedPosition(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 2)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-1003")
	configureSteerAxle(t, s, veh.ID)

	first := seedTire(t, s, sku, model.StatusAvailable, wh)
	second := seedTire(t, s, sku, model.StatusAvailable, wh)

	_, err := s.Mount(ctx, MountInput{TireID: first.ID, VehicleID: veh.ID, Position: "FL", Odometer: 100})
	require.NoError(t, err)

	_, err = s.Mount(ctx, MountInput{TireID: second.ID, VehicleID: veh.ID, Position: "FL", Odometer: 100})
	require.Error(t, err)
	assert.True(t, IsPositionOccupied(err))

	var occupied *PositionOccupiedError
	require.True(t, errors.As(err, &occupied))
	assert.Equal(t, first.ID, occupied.OccupantID)
	assert.Equal(t, "FL", occupied.Position)

	// The rejected tire is untouched.
	assert.Equal(t, model.StatusAvailable, reloadTire(t, s, second.ID).Status)
	assert.Equal(t, 1, currentStock(t, s, sku.ID))
	assert.Equal(t, int64(0), ledgerCount(t, s, second.ID))
}

func TestMountWithoutAxleRows(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "CONTI-385", 2)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-1004") // legacy vehicle, no formal axle rows

	first := seedTire(t, s, sku, model.StatusAvailable, wh)
	second := seedTire(t, s, sku, model.StatusAvailable, wh)

	_, err := s.Mount(ctx, MountInput{TireID: first.ID, VehicleID: veh.ID, Position: "RL", Odometer: 100})
	require.NoError(t, err)

	// Occupancy is still enforced through the tire rows alone.
	_, err = s.Mount(ctx, MountInput{TireID: second.ID, VehicleID: veh.ID, Position: "RL", Odometer: 100})
	assert.True(t, IsPositionOccupied(err))

	_, err = s.Mount(ctx, MountInput{TireID: second.ID, VehicleID: veh.ID, Position: "RR", Odometer: 100})
	require.NoError(t, err)
}

func TestConcurrentMountsSameTire(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 1)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-1201")
	tire := seedTire(t, s, sku, model.StatusAvailable, wh)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, pos := range []string{"FL", "FR"} {
		wg.Add(1)
		go func(position string) {
			defer wg.Done()
			_, err := s.Mount(ctx, MountInput{
				TireID: tire.ID, VehicleID: veh.ID, Position: position, Odometer: 100,
			})
			results <- err
		}(pos)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		rejected++
		assert.True(t, IsInvalidTransition(err) || IsConflict(err),
			"unexpected rejection: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	// The tire ended up mounted at exactly one position, counted once.
	got := reloadTire(t, s, tire.ID)
	assert.Equal(t, model.StatusMounted, got.Status)
	require.NotNil(t, got.VehicleID)
	assert.Equal(t, veh.ID, *got.VehicleID)
	assert.Equal(t, 0, currentStock(t, s, sku.ID))
	assert.Equal(t, int64(1), ledgerCount(t, s, tire.ID))
}

func TestConcurrentMountsSamePosition(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 2)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-1202")
	configureSteerAxle(t, s, veh.ID)

	a := seedTire(t, s, sku, model.StatusAvailable, wh)
	b := seedTire(t, s, sku, model.StatusAvailable, wh)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []uint{a.ID, b.ID} {
		wg.Add(1)
		go func(tireID uint) {
			defer wg.Done()
			_, err := s.Mount(ctx, MountInput{
				TireID: tireID, VehicleID: veh.ID, Position: "FL", Odometer: 100,
			})
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		rejected++
		assert.True(t, IsPositionOccupied(err) || IsConflict(err),
			"unexpected rejection: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	// The slot holds exactly one tire; the other is untouched.
	occupant := axleOccupant(t, s, veh.ID, "FL")
	require.NotNil(t, occupant)
	winner := reloadTire(t, s, *occupant)
	assert.Equal(t, model.StatusMounted, winner.Status)

	loserID := a.ID
	if *occupant == a.ID {
		loserID = b.ID
	}
	assert.Equal(t, model.StatusAvailable, reloadTire(t, s, loserID).Status)
	assert.Equal(t, 1, currentStock(t, s, sku.ID))
}

func TestMountUnknownTire(t *testing.T) {
	s := newTestService(t)
	veh := seedVehicle(t, s, "B-1005")
	_, err := s.Mount(context.Background(), MountInput{TireID: 9999, VehicleID: veh.ID, Position: "FL", Odometer: 1})
	assert.True(t, IsNotFound(err))
}

func TestDismountRejections(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 1)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-1006")

	idle := seedTire(t, s, sku, model.StatusAvailable, wh)
	_, err := s.Dismount(ctx, DismountInput{TireID: idle.ID, ToWarehouseID: wh.ID, Odometer: 100})
	assert.True(t, IsInvalidTransition(err))

	mounted, err := s.Mount(ctx, MountInput{TireID: idle.ID, VehicleID: veh.ID, Position: "FL", Odometer: 100})
	require.NoError(t, err)

	// Unknown warehouse rolls the whole operation back.
	_, err = s.Dismount(ctx, DismountInput{TireID: mounted.ID, ToWarehouseID: 9999, Odometer: 200})
	assert.True(t, IsNotFound(err))
	assert.Equal(t, model.StatusMounted, reloadTire(t, s, mounted.ID).Status)
	assert.Equal(t, int64(1), ledgerCount(t, s, mounted.ID)) // only the mount entry
}

func TestReplace(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	steerSku := seedSku(t, s, "MICH-315-STR", 1)
	driveSku := seedSku(t, s, "GOOD-315-DRV", 1)
	wh1 := seedWarehouse(t, s, "Main depot")
	wh2 := seedWarehouse(t, s, "North depot")
	veh := seedVehicle(t, s, "B-2001")
	configureSteerAxle(t, s, veh.ID)

	worn := seedTire(t, s, steerSku, model.StatusAvailable, wh1)
	fresh := seedTire(t, s, driveSku, model.StatusAvailable, wh2)

	_, err := s.Mount(ctx, MountInput{TireID: worn.ID, VehicleID: veh.ID, Position: "FL", Odometer: 10000})
	require.NoError(t, err)

	result, err := s.Replace(ctx, ReplaceInput{
		OldTireID: worn.ID, NewTireID: fresh.ID, Odometer: 80000, Reason: "tread below limit",
	})
	require.NoError(t, err)
	require.Len(t, result, 2)

	oldTire := reloadTire(t, s, worn.ID)
	assert.Equal(t, model.StatusAvailable, oldTire.Status)
	require.NotNil(t, oldTire.WarehouseID)
	assert.Equal(t, wh2.ID, *oldTire.WarehouseID) // returns to the new tire's former warehouse
	assert.Nil(t, oldTire.VehicleID)

	newTire := reloadTire(t, s, fresh.ID)
	assert.Equal(t, model.StatusMounted, newTire.Status)
	require.NotNil(t, newTire.VehicleID)
	assert.Equal(t, veh.ID, *newTire.VehicleID)
	assert.Equal(t, "FL", newTire.Position)

	occupant := axleOccupant(t, s, veh.ID, "FL")
	require.NotNil(t, occupant)
	assert.Equal(t, fresh.ID, *occupant)

	// Mount took steer stock to zero; the return raises it back.
	assert.Equal(t, 1, currentStock(t, s, steerSku.ID))
	assert.Equal(t, 0, currentStock(t, s, driveSku.ID))
	assert.Equal(t, int64(80000), reloadVehicle(t, s, veh.ID).Odometer)

	outOps, _, err := s.History(ctx, HistoryFilter{TireID: worn.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, outOps, 1)
	assert.Equal(t, model.OpReplaceOut, outOps[0].Type)
	assert.Contains(t, outOps[0].Notes, fresh.UniqueTireID)
	assert.Contains(t, outOps[0].Notes, "tread below limit")

	inOps, _, err := s.History(ctx, HistoryFilter{TireID: fresh.ID})
	require.NoError(t, err)
	require.Len(t, inOps, 1)
	assert.Equal(t, model.OpReplaceIn, inOps[0].Type)
	assert.Equal(t, "FL", inOps[0].Position)
}

func TestReplaceRejections(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 2)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-2002")

	a := seedTire(t, s, sku, model.StatusAvailable, wh)
	b := seedTire(t, s, sku, model.StatusAvailable, wh)

	_, err := s.Replace(ctx, ReplaceInput{OldTireID: a.ID, NewTireID: a.ID, Odometer: 1})
	assert.Error(t, err)

	// Old tire is not mounted.
	_, err = s.Replace(ctx, ReplaceInput{OldTireID: a.ID, NewTireID: b.ID, Odometer: 1})
	assert.True(t, IsInvalidTransition(err))

	_, err = s.Mount(ctx, MountInput{TireID: a.ID, VehicleID: veh.ID, Position: "FL", Odometer: 1})
	require.NoError(t, err)

	// New tire is not available.
	_, err = s.Reserve(ctx, ReserveInput{TireID: b.ID, VehicleID: veh.ID, Position: "FR"})
	require.NoError(t, err)
	_, err = s.Replace(ctx, ReplaceInput{OldTireID: a.ID, NewTireID: b.ID, Odometer: 1})
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, model.StatusMounted, reloadTire(t, s, a.ID).Status)
}

func TestRepair(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 1)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-3001")

	tire := seedTire(t, s, sku, model.StatusAvailable, wh)
	_, err := s.Mount(ctx, MountInput{TireID: tire.ID, VehicleID: veh.ID, Position: "FL", Odometer: 42000})
	require.NoError(t, err)

	op, err := s.Repair(ctx, RepairInput{
		TireID: tire.ID, Cost: 85.50, Vendor: "Roadside Tire Co", Notes: "puncture patched",
	})
	require.NoError(t, err)
	assert.Equal(t, model.OpRepair, op.Type)
	assert.Equal(t, 85.50, op.Cost)
	assert.Equal(t, "Roadside Tire Co", op.Vendor)
	assert.Equal(t, "FL", op.Position)
	require.NotNil(t, op.Odometer)
	assert.Equal(t, int64(42000), *op.Odometer) // snapshot of the vehicle reading

	// Status and placement are untouched.
	assert.Equal(t, model.StatusMounted, reloadTire(t, s, tire.ID).Status)

	_, err = s.Repair(ctx, RepairInput{TireID: tire.ID, Notes: "   "})
	assert.Error(t, err)
}

func TestReserveThenMount(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 1)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-4001")
	configureSteerAxle(t, s, veh.ID)

	tire := seedTire(t, s, sku, model.StatusAvailable, wh)

	reserved, err := s.Reserve(ctx, ReserveInput{TireID: tire.ID, VehicleID: veh.ID, Position: "FL"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, reserved.Status)
	require.NotNil(t, reserved.VehicleID)
	assert.Equal(t, veh.ID, *reserved.VehicleID)
	assert.Equal(t, "FL", reserved.Position)

	// The reservation is advisory: the slot itself stays free.
	assert.Nil(t, axleOccupant(t, s, veh.ID, "FL"))
	assert.Equal(t, 0, currentStock(t, s, sku.ID))

	ops, _, err := s.History(ctx, HistoryFilter{TireID: tire.ID})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, model.OpReserve, ops[0].Type)
	assert.Nil(t, ops[0].Odometer)

	// Mounting the reserved tire does not move stock again.
	mounted, err := s.Mount(ctx, MountInput{TireID: tire.ID, VehicleID: veh.ID, Position: "FL", Odometer: 500})
	require.NoError(t, err)
	assert.Equal(t, model.StatusMounted, mounted.Status)
	assert.Equal(t, 0, currentStock(t, s, sku.ID))

	occupant := axleOccupant(t, s, veh.ID, "FL")
	require.NotNil(t, occupant)
	assert.Equal(t, tire.ID, *occupant)
}

func TestReserveRejections(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 1)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-4002")

	tire := seedTire(t, s, sku, model.StatusAvailable, wh)
	_, err := s.Reserve(ctx, ReserveInput{TireID: tire.ID, VehicleID: 9999, Position: "FL"})
	assert.True(t, IsNotFound(err))
	assert.Equal(t, model.StatusAvailable, reloadTire(t, s, tire.ID).Status)

	_, err = s.Reserve(ctx, ReserveInput{TireID: tire.ID, VehicleID: veh.ID, Position: "FL"})
	require.NoError(t, err)

	_, err = s.Reserve(ctx, ReserveInput{TireID: tire.ID, VehicleID: veh.ID, Position: "FR"})
	assert.True(t, IsInvalidTransition(err))
}

func TestDispose(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 2)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-5001")

	mountedTire := seedTire(t, s, sku, model.StatusAvailable, wh)
	_, err := s.Mount(ctx, MountInput{TireID: mountedTire.ID, VehicleID: veh.ID, Position: "FL", Odometer: 100})
	require.NoError(t, err)

	// Mounted tires must come off the vehicle first.
	_, err = s.Dispose(ctx, DisposeInput{TireID: mountedTire.ID, Reason: "sidewall damage"})
	assert.True(t, IsInvalidTransition(err))

	idle := seedTire(t, s, sku, model.StatusAvailable, wh)
	disposed, err := s.Dispose(ctx, DisposeInput{TireID: idle.ID, Reason: "aged out"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRetired, disposed.Status)
	assert.Nil(t, disposed.WarehouseID)
	assert.Nil(t, disposed.VehicleID)
	assert.Equal(t, 0, currentStock(t, s, sku.ID)) // 2 seeded, one mounted, one disposed

	var movement model.StockMovement
	require.NoError(t, s.db.Where("tire_id = ?", idle.ID).First(&movement).Error)
	assert.Equal(t, model.MovementDisposal, movement.Type)
	require.NotNil(t, movement.FromWarehouseID)
	assert.Equal(t, wh.ID, *movement.FromWarehouseID)
	assert.Equal(t, "aged out", movement.Notes)

	// Retired is terminal.
	_, err = s.Dispose(ctx, DisposeInput{TireID: idle.ID, Reason: "again"})
	assert.True(t, IsInvalidTransition(err))

	_, err = s.Dispose(ctx, DisposeInput{TireID: idle.ID, Reason: "  "})
	assert.Error(t, err)
}

func TestDisposeDefectiveDoesNotTouchStock(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 0)
	defective := seedTire(t, s, sku, model.StatusDefective, nil)

	_, err := s.Dispose(ctx, DisposeInput{TireID: defective.ID, Reason: "unrepairable"})
	require.NoError(t, err)
	assert.Equal(t, 0, currentStock(t, s, sku.ID)) // defective was never counted
}

func TestOdometerNeverRegresses(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 1)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-6001")

	tire := seedTire(t, s, sku, model.StatusAvailable, wh)
	_, err := s.Mount(ctx, MountInput{TireID: tire.ID, VehicleID: veh.ID, Position: "FL", Odometer: 10000})
	require.NoError(t, err)

	// An out-of-order reading is recorded in the ledger but never clocks
	// the vehicle backward.
	_, err = s.Dismount(ctx, DismountInput{TireID: tire.ID, ToWarehouseID: wh.ID, Odometer: 9000})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), reloadVehicle(t, s, veh.ID).Odometer)

	ops, _, err := s.History(ctx, HistoryFilter{TireID: tire.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.NotNil(t, ops[0].Odometer)
	assert.Equal(t, int64(9000), *ops[0].Odometer)
}

func TestGetTireAndList(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sku := seedSku(t, s, "MICH-315-DRV", 3)
	wh := seedWarehouse(t, s, "Main depot")
	veh := seedVehicle(t, s, "B-7001")

	a := seedTire(t, s, sku, model.StatusAvailable, wh)
	seedTire(t, s, sku, model.StatusAvailable, wh)
	seedTire(t, s, sku, model.StatusAvailable, wh)

	got, err := s.GetTire(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.UniqueTireID, got.UniqueTireID)

	_, err = s.GetTire(ctx, 9999)
	assert.True(t, IsNotFound(err))

	_, err = s.Mount(ctx, MountInput{TireID: a.ID, VehicleID: veh.ID, Position: "FL", Odometer: 1})
	require.NoError(t, err)

	available, total, err := s.ListTires(ctx, TireFilter{Status: model.StatusAvailable})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, available, 2)

	mountedList, total, err := s.ListTires(ctx, TireFilter{VehicleID: veh.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mountedList, 1)
	assert.Equal(t, a.ID, mountedList[0].ID)

	page, total, err := s.ListTires(ctx, TireFilter{SkuID: sku.ID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}
