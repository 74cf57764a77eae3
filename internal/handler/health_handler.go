package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tire-service/pkg/database"
)

// Health reports service and database health
func Health(c echo.Context) error {
	db := database.GetDB()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"status":   "degraded",
					"database": "unreachable",
				})
			}
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
