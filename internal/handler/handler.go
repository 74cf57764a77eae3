package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tire-service/internal/lifecycle"
	"tire-service/internal/middleware"
	"tire-service/pkg/logger"
	"tire-service/prometheus"
)

var svc *lifecycle.Service

// Init wires the lifecycle service into the handler package
func Init(s *lifecycle.Service) {
	svc = s
}

// actorID resolves the technician for ledger attribution: an explicit
// user_id in the request body wins, otherwise the authenticated user.
func actorID(c echo.Context, bodyUserID *uint) *uint {
	if bodyUserID != nil && *bodyUserID != 0 {
		return bodyUserID
	}
	return middleware.ActorIDFromContext(c)
}

// respondError maps lifecycle errors onto HTTP responses
func respondError(c echo.Context, operation string, err error) error {
	log := logger.FromContext(c)

	var batch *lifecycle.BatchError
	switch {
	case lifecycle.IsNotFound(err):
		prometheus.RecordLifecycleRejection(operation, "not_found")
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.As(err, &batch):
		prometheus.RecordLifecycleRejection(operation, "batch_failure")
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":       err.Error(),
			"failed_pair": batch.Index,
		})
	case lifecycle.IsInvalidTransition(err):
		prometheus.RecordLifecycleRejection(operation, "invalid_transition")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case lifecycle.IsPositionOccupied(err):
		var po *lifecycle.PositionOccupiedError
		errors.As(err, &po)
		prometheus.RecordLifecycleRejection(operation, "position_occupied")
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    err.Error(),
			"occupant": po.OccupantID,
		})
	case lifecycle.IsConflict(err):
		prometheus.RecordLifecycleRejection(operation, "conflict")
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "operation conflicted with a concurrent request, retry",
			"retryable": true,
		})
	default:
		prometheus.RecordLifecycleRejection(operation, "storage")
		log.Error("Lifecycle operation failed",
			zap.String("operation", operation),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}
