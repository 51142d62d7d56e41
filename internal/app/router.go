package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridelog/internal/handler"
	"ridelog/internal/mapview"
	"ridelog/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TrackingHandler *handler.TrackingHandler
	LedgerHandler   *handler.LedgerHandler
	MapHub          *mapview.Hub
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.RequestLogger())
	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Device position stream.
		v1.POST("/positions", deps.TrackingHandler.UpdatePosition)

		// Live tracking routes.
		tracking := v1.Group("/tracking")
		{
			tracking.GET("", deps.TrackingHandler.GetTracking)
			tracking.POST("/start", deps.TrackingHandler.StartTrip)
			tracking.POST("/end", deps.TrackingHandler.EndTrip)
			tracking.POST("/abandon", deps.TrackingHandler.AbandonTrip)
			tracking.POST("/route", deps.TrackingHandler.PlanRoute)
		}

		v1.GET("/geocode", deps.TrackingHandler.Geocode)

		// Trip ledger routes.
		trips := v1.Group("/trips")
		{
			trips.GET("", deps.LedgerHandler.ListTrips)
			trips.GET("/:id", deps.LedgerHandler.GetTrip)
			trips.GET("/:id/receipt", deps.LedgerHandler.Receipt)
			trips.DELETE("/:id", deps.LedgerHandler.DeleteTrip)
		}

		// Expense routes.
		expenses := v1.Group("/expenses")
		{
			expenses.POST("", deps.LedgerHandler.CreateExpense)
			expenses.GET("", deps.LedgerHandler.ListExpenses)
		}

		// Customer routes.
		customers := v1.Group("/customers")
		{
			customers.POST("", deps.LedgerHandler.SaveCustomer)
			customers.GET("", deps.LedgerHandler.ListCustomers)
		}

		v1.GET("/insights", deps.LedgerHandler.Insight)

		// Map overlay feed.
		v1.GET("/map/ws", gin.WrapF(deps.MapHub.ServeWS))
	}

	return router
}
