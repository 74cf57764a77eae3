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

// ReceiveRequest is the payload for receiving tires into a warehouse
type ReceiveRequest struct {
	SkuCode     string                       `json:"sku_code"`
	WarehouseID uint                         `json:"warehouse_id"`
	Tires       []lifecycle.ReceiveTireInput `json:"tires"`
	Notes       string                       `json:"notes"`
	UserID      *uint                        `json:"user_id"`
}

// Receive handles a warehouse receipt of tires under one SKU
func Receive(c echo.Context) error {
	log := logger.FromContext(c)

	var req ReceiveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if req.SkuCode == "" || req.WarehouseID == 0 || len(req.Tires) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sku_code, warehouse_id and tires are required"})
	}
	for _, t := range req.Tires {
		if t.DOTCode == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "every tire needs a dot_code"})
		}
		if t.ManufactureWeek < 1 || t.ManufactureWeek > 53 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "manufacture_week must be between 1 and 53"})
		}
	}

	result, err := svc.Receive(c.Request().Context(), lifecycle.ReceiveInput{
		SkuCode:     req.SkuCode,
		WarehouseID: req.WarehouseID,
		Tires:       req.Tires,
		ActorID:     actorID(c, req.UserID),
		Notes:       req.Notes,
	})
	if err != nil {
		if lifecycle.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
		log.Warn("Receive rejected", zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	prometheus.UpdateSkuStock(result.SkuCode, float64(result.NewStockLevel))
	log.Info("Inventory received",
		zap.String("sku_code", result.SkuCode),
		zap.Int("count", result.ReceivedCount),
		zap.Int("new_stock_level", result.NewStockLevel))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "tires received",
		"data":    result,
	})
}

// ListTires lists tires with optional status/sku/warehouse/vehicle filters
func ListTires(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	skuID, _ := strconv.ParseUint(c.QueryParam("sku_id"), 10, 32)
	warehouseID, _ := strconv.ParseUint(c.QueryParam("warehouse_id"), 10, 32)
	vehicleID, _ := strconv.ParseUint(c.QueryParam("vehicle_id"), 10, 32)

	tires, total, err := svc.ListTires(c.Request().Context(), lifecycle.TireFilter{
		Status:      model.TireStatus(c.QueryParam("status")),
		SkuID:       uint(skuID),
		WarehouseID: uint(warehouseID),
		VehicleID:   uint(vehicleID),
		Offset:      offset,
		Limit:       limit,
	})
	if err != nil {
		return respondError(c, "list_tires", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tires": tires, "total": total})
}

// GetTire returns one tire by id
func GetTire(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tire id"})
	}
	tire, err := svc.GetTire(c.Request().Context(), uint(id))
	if err != nil {
		return respondError(c, "get_tire", err)
	}
	return c.JSON(http.StatusOK, tire)
}

// GetSkuStock returns the stock counter and threshold flags for a SKU
func GetSkuStock(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sku id"})
	}
	stock, err := svc.Stock(c.Request().Context(), uint(id))
	if err != nil {
		return respondError(c, "sku_stock", err)
	}
	prometheus.UpdateSkuStock(stock.SkuCode, float64(stock.CurrentStock))
	return c.JSON(http.StatusOK, stock)
}
