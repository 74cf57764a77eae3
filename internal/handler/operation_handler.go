package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tire-service/internal/lifecycle"
	"tire-service/internal/model"
	"tire-service/pkg/logger"
	"tire-service/prometheus"
)

// MountRequest is the payload for mounting (or issuing) a tire
type MountRequest struct {
	TireID    uint   `json:"tire_id"`
	VehicleID uint   `json:"vehicle_id"`
	Position  string `json:"position"`
	Odometer  int64  `json:"odometer"`
	UserID    *uint  `json:"user_id"`
	Notes     string `json:"notes"`
}

// Mount handles mounting a tire onto a vehicle position
func Mount(c echo.Context) error {
	log := logger.FromContext(c)

	var req MountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.TireID == 0 || req.VehicleID == 0 || req.Position == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tire_id, vehicle_id and position are required"})
	}

	tire, err := svc.Mount(c.Request().Context(), lifecycle.MountInput{
		TireID:    req.TireID,
		VehicleID: req.VehicleID,
		Position:  req.Position,
		Odometer:  req.Odometer,
		ActorID:   actorID(c, req.UserID),
		Notes:     req.Notes,
	})
	if err != nil {
		return respondError(c, "mount", err)
	}

	prometheus.RecordLifecycleOperation("mount")
	log.Info("Tire mounted",
		zap.Uint("tire_id", tire.ID),
		zap.Uint("vehicle_id", req.VehicleID),
		zap.String("position", req.Position))
	return c.JSON(http.StatusOK, echo.Map{"message": "tire mounted", "tire": tire})
}

// DismountRequest is the payload for dismounting a tire into a warehouse
type DismountRequest struct {
	TireID        uint   `json:"tire_id"`
	ToWarehouseID uint   `json:"to_warehouse_id"`
	Odometer      int64  `json:"odometer"`
	UserID        *uint  `json:"user_id"`
	Reason        string `json:"reason"`
}

// Dismount handles removing a mounted tire into a warehouse
func Dismount(c echo.Context) error {
	log := logger.FromContext(c)

	var req DismountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.TireID == 0 || req.ToWarehouseID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tire_id and to_warehouse_id are required"})
	}

	tire, err := svc.Dismount(c.Request().Context(), lifecycle.DismountInput{
		TireID:        req.TireID,
		ToWarehouseID: req.ToWarehouseID,
		Odometer:      req.Odometer,
		ActorID:       actorID(c, req.UserID),
		Reason:        req.Reason,
	})
	if err != nil {
		return respondError(c, "dismount", err)
	}

	prometheus.RecordLifecycleOperation("dismount")
	log.Info("Tire dismounted",
		zap.Uint("tire_id", tire.ID),
		zap.Uint("warehouse_id", req.ToWarehouseID))
	return c.JSON(http.StatusOK, echo.Map{"message": "tire dismounted", "tire": tire})
}

// RotateRequest is the payload for a rotation batch on one vehicle
type RotateRequest struct {
	VehicleID uint                   `json:"vehicle_id"`
	Odometer  int64                  `json:"odometer"`
	UserID    *uint                  `json:"user_id"`
	Rotations []lifecycle.RotatePair `json:"rotations"`
}

// Rotate handles swapping tire positions as one atomic batch
func Rotate(c echo.Context) error {
	log := logger.FromContext(c)

	var req RotateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.VehicleID == 0 || len(req.Rotations) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id and rotations are required"})
	}

	tires, err := svc.Rotate(c.Request().Context(), lifecycle.RotateInput{
		VehicleID: req.VehicleID,
		Rotations: req.Rotations,
		Odometer:  req.Odometer,
		ActorID:   actorID(c, req.UserID),
	})
	if err != nil {
		return respondError(c, "rotate", err)
	}

	prometheus.RecordLifecycleOperation("rotate")
	log.Info("Rotation completed",
		zap.Uint("vehicle_id", req.VehicleID),
		zap.Int("tires", len(tires)))
	return c.JSON(http.StatusOK, echo.Map{"message": "rotation completed", "tires": tires})
}

// ReplaceRequest is the payload for swapping a mounted tire for a fresh one
type ReplaceRequest struct {
	OldTireID uint   `json:"old_tire_id"`
	NewTireID uint   `json:"new_tire_id"`
	Odometer  int64  `json:"odometer"`
	Reason    string `json:"reason"`
	UserID    *uint  `json:"user_id"`
}

// Replace handles an in-place tire replacement
func Replace(c echo.Context) error {
	log := logger.FromContext(c)

	var req ReplaceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.OldTireID == 0 || req.NewTireID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "old_tire_id and new_tire_id are required"})
	}

	tires, err := svc.Replace(c.Request().Context(), lifecycle.ReplaceInput{
		OldTireID: req.OldTireID,
		NewTireID: req.NewTireID,
		Odometer:  req.Odometer,
		Reason:    req.Reason,
		ActorID:   actorID(c, req.UserID),
	})
	if err != nil {
		return respondError(c, "replace", err)
	}

	prometheus.RecordLifecycleOperation("replace")
	log.Info("Tire replaced",
		zap.Uint("old_tire_id", req.OldTireID),
		zap.Uint("new_tire_id", req.NewTireID))
	return c.JSON(http.StatusOK, echo.Map{"message": "tire replaced", "tires": tires})
}

// RepairRequest is the payload for recording a repair
type RepairRequest struct {
	TireID uint    `json:"tire_id"`
	Cost   float64 `json:"cost"`
	Vendor string  `json:"vendor"`
	Notes  string  `json:"notes"`
	UserID *uint   `json:"user_id"`
}

// Repair handles recording a tire repair in the ledger
func Repair(c echo.Context) error {
	var req RepairRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.TireID == 0 || req.Notes == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tire_id and notes are required"})
	}

	op, err := svc.Repair(c.Request().Context(), lifecycle.RepairInput{
		TireID:  req.TireID,
		Cost:    req.Cost,
		Vendor:  req.Vendor,
		Notes:   req.Notes,
		ActorID: actorID(c, req.UserID),
	})
	if err != nil {
		return respondError(c, "repair", err)
	}

	prometheus.RecordLifecycleOperation("repair")
	return c.JSON(http.StatusOK, op)
}

// ReserveRequest is the payload for pre-allocating a tire to a position
type ReserveRequest struct {
	TireID    uint   `json:"tire_id"`
	VehicleID uint   `json:"vehicle_id"`
	Position  string `json:"position"`
	UserID    *uint  `json:"user_id"`
}

// Reserve handles pre-allocating a tire without physically mounting it
func Reserve(c echo.Context) error {
	var req ReserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.TireID == 0 || req.VehicleID == 0 || req.Position == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tire_id, vehicle_id and position are required"})
	}

	tire, err := svc.Reserve(c.Request().Context(), lifecycle.ReserveInput{
		TireID:    req.TireID,
		VehicleID: req.VehicleID,
		Position:  req.Position,
		ActorID:   actorID(c, req.UserID),
	})
	if err != nil {
		return respondError(c, "reserve", err)
	}

	prometheus.RecordLifecycleOperation("reserve")
	return c.JSON(http.StatusOK, echo.Map{"message": "tire reserved", "tire": tire})
}

// DisposeRequest is the payload for retiring a tire
type DisposeRequest struct {
	TireID uint   `json:"tire_id"`
	Reason string `json:"reason"`
	UserID *uint  `json:"user_id"`
}

// Dispose handles permanently retiring a tire
func Dispose(c echo.Context) error {
	var req DisposeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.TireID == 0 || req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tire_id and reason are required"})
	}

	tire, err := svc.Dispose(c.Request().Context(), lifecycle.DisposeInput{
		TireID:  req.TireID,
		Reason:  req.Reason,
		ActorID: actorID(c, req.UserID),
	})
	if err != nil {
		return respondError(c, "dispose", err)
	}

	prometheus.RecordLifecycleOperation("dispose")
	return c.JSON(http.StatusOK, echo.Map{"message": "tire retired", "tire": tire})
}

// GetOperation returns one ledger entry by id
func GetOperation(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid operation id"})
	}
	op, err := svc.GetOperation(c.Request().Context(), uint(id))
	if err != nil {
		return respondError(c, "get_operation", err)
	}
	return c.JSON(http.StatusOK, op)
}

// historyQuery reads paging parameters shared by the history endpoints
func historyQuery(c echo.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	return offset, limit
}

func respondHistory(c echo.Context, ops []model.TireOperation, total int64, err error) error {
	if err != nil {
		return respondError(c, "history", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"operations": ops, "total": total})
}

// TireHistory lists ledger entries for one tire, newest first
func TireHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tire id"})
	}
	offset, limit := historyQuery(c)
	ops, total, err := svc.History(c.Request().Context(),
		lifecycle.HistoryFilter{TireID: uint(id), Offset: offset, Limit: limit})
	return respondHistory(c, ops, total, err)
}

// VehicleHistory lists ledger entries for one vehicle, newest first
func VehicleHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}
	offset, limit := historyQuery(c)
	ops, total, err := svc.History(c.Request().Context(),
		lifecycle.HistoryFilter{VehicleID: uint(id), Offset: offset, Limit: limit})
	return respondHistory(c, ops, total, err)
}

// UserHistory lists ledger entries recorded by one technician, newest first
func UserHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	offset, limit := historyQuery(c)
	ops, total, err := svc.History(c.Request().Context(),
		lifecycle.HistoryFilter{UserID: uint(id), Offset: offset, Limit: limit})
	return respondHistory(c, ops, total, err)
}

// AddNoteRequest appends a note to an existing ledger entry
type AddNoteRequest struct {
	OperationID uint   `json:"operation_id"`
	Note        string `json:"note"`
}

// AddNote appends free text to a ledger entry; the only mutation allowed
func AddNote(c echo.Context) error {
	var req AddNoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.OperationID == 0 || req.Note == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "operation_id and note are required"})
	}
	op, err := svc.AppendNote(c.Request().Context(), req.OperationID, req.Note)
	if err != nil {
		return respondError(c, "add_note", err)
	}
	return c.JSON(http.StatusOK, op)
}

// GetPositions returns the well-known position code map
func GetPositions(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"FL":  "Front Left",
		"FR":  "Front Right",
		"RLI": "Rear Left Inner",
		"RLO": "Rear Left Outer",
		"RRI": "Rear Right Inner",
		"RRO": "Rear Right Outer",
	})
}

// ValidateTireRequest asks whether a tire is eligible for operations
type ValidateTireRequest struct {
	TireID uint `json:"tire_id"`
}

// ValidateTire reports whether a tire may take part in lifecycle operations
func ValidateTire(c echo.Context) error {
	var req ValidateTireRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.TireID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tire_id is required"})
	}

	tire, err := svc.GetTire(c.Request().Context(), req.TireID)
	if err != nil {
		return respondError(c, "validate_tire", err)
	}

	valid := tire.Status != model.StatusRetired && tire.Status != model.StatusDefective
	message := "tire is valid for operations"
	if !valid {
		message = "tire status '" + string(tire.Status) + "' prevents operations"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":   valid,
		"message": message,
		"tire":    tire,
	})
}
