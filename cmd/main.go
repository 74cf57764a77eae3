package main

import (
	"tire-service/internal/handler"
	"tire-service/internal/lifecycle"
	mid "tire-service/internal/middleware"
	"tire-service/pkg/config"
	"tire-service/pkg/database"
	"tire-service/pkg/jwtutil"
	"tire-service/pkg/logger"
	"tire-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting tire-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	err = database.InitDB(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Wire the lifecycle coordinator into the handlers
	handler.Init(lifecycle.NewService(database.GetDB(), appConfig.Lifecycle))

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Routes
	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.Health)

	// Lifecycle operations - auth middleware validates JWT and extracts the actor
	operationsAPI := e.Group("/api/operations", mid.AuthMiddleware)
	operationsAPI.POST("/mount", handler.Mount)
	operationsAPI.POST("/issue", handler.Mount) // alias kept for field tooling
	operationsAPI.POST("/dismount", handler.Dismount)
	operationsAPI.POST("/remove", handler.Dismount) // alias kept for field tooling
	operationsAPI.POST("/rotate", handler.Rotate)
	operationsAPI.POST("/replace", handler.Replace)
	operationsAPI.POST("/repair", handler.Repair)
	operationsAPI.POST("/reserve", handler.Reserve)
	operationsAPI.POST("/assign-tire", handler.Reserve) // alias kept for field tooling
	operationsAPI.POST("/dispose", handler.Dispose)
	operationsAPI.POST("/add-note", handler.AddNote)
	operationsAPI.POST("/validate-tire", handler.ValidateTire)
	operationsAPI.GET("/positions", handler.GetPositions)
	operationsAPI.GET("/tire/:id", handler.TireHistory)
	operationsAPI.GET("/vehicle/:id", handler.VehicleHistory)
	operationsAPI.GET("/user/:id", handler.UserHistory)
	operationsAPI.GET("/vehicles/:id/axle-configuration", handler.GetAxleConfiguration)
	operationsAPI.PUT("/vehicles/:id/axle-configuration", handler.UpdateAxleConfiguration)
	operationsAPI.GET("/:id", handler.GetOperation)

	// Inventory
	inventoryAPI := e.Group("/api/inventory", mid.AuthMiddleware)
	inventoryAPI.POST("/receive", handler.Receive)

	// Tire and SKU queries
	tiresAPI := e.Group("/api/tires", mid.AuthMiddleware)
	tiresAPI.GET("", handler.ListTires)
	tiresAPI.GET("/:id", handler.GetTire)
	tiresAPI.GET("/:id/operations", handler.TireHistory)

	skusAPI := e.Group("/api/skus", mid.AuthMiddleware)
	skusAPI.GET("/:id/stock", handler.GetSkuStock)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
