package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tire-service/internal/lifecycle"
	"tire-service/pkg/logger"
)

// GetAxleConfiguration returns a vehicle's formal axle positions with their
// current occupants
func GetAxleConfiguration(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}

	positions, err := svc.Occupancy(c.Request().Context(), uint(id))
	if err != nil {
		return respondError(c, "axle_configuration", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"positions": positions})
}

// AxleConfigurationRequest replaces a vehicle's axle layout
type AxleConfigurationRequest struct {
	Positions []lifecycle.PositionInput `json:"positions"`
}

// UpdateAxleConfiguration replaces the formal axle layout of a vehicle.
// Occupied positions cannot be removed.
func UpdateAxleConfiguration(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}

	var req AxleConfigurationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	for _, p := range req.Positions {
		if p.PositionCode == "" || p.AxleNumber <= 0 || (p.Side != "L" && p.Side != "R") {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "each position needs position_code, axle_number and side L or R"})
		}
	}

	positions, err := svc.ConfigureAxles(c.Request().Context(), uint(id), req.Positions)
	if err != nil {
		return respondError(c, "axle_configuration", err)
	}

	log.Info("Axle configuration updated",
		zap.Uint64("vehicle_id", id),
		zap.Int("positions", len(positions)))
	return c.JSON(http.StatusOK, echo.Map{"positions": positions})
}
