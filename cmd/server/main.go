package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ridelog/internal/app"
	"ridelog/internal/config"
	"ridelog/internal/handler"
	"ridelog/internal/mapview"
	"ridelog/internal/provider"
	"ridelog/internal/provider/gemini"
	"ridelog/internal/provider/ors"
	"ridelog/internal/provider/overpass"
	internalRedis "ridelog/internal/redis"
	"ridelog/internal/repository"
	"ridelog/internal/repository/postgres"
	"ridelog/internal/service"
)

const providerTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to read .env")
	}

	// Load configuration.
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	if err := app.ConfigureLogger(cfg.Log); err != nil {
		logrus.Fatalf("failed to configure logging: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logrus.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logrus.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logrus.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	logrus.Info("Connected to Redis")

	// The postgres ledger backend is optional; drafts and caches always live in Redis.
	var db *sql.DB
	if cfg.Ledger.Backend == "postgres" {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			logrus.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		logrus.Info("Connected to PostgreSQL")
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Wire dependencies.
	server, tracker, hub := wireServer(db, redisClient, nrApp, cfg)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		tracker.Run(runCtx)
	}()

	if trip, err := tracker.Restore(ctx); err != nil {
		logrus.WithError(err).Warn("failed to restore trip draft")
	} else if trip != nil {
		logrus.WithField("trip_id", trip.ID).Info("resumed active trip")
	}

	// Start server in goroutine.
	go func() {
		logrus.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("server forced to shutdown: %v", err)
	}

	// Stopping the tracker saves any active trip as a draft.
	stop()
	wg.Wait()

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logrus.Info("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server together with
// the background loops main must run.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, *service.Tracker, *mapview.Hub) {
	// Initialize ledger repositories.
	var (
		tripRepo     repository.TripRepository
		expenseRepo  repository.ExpenseRepository
		customerRepo repository.CustomerRepository
	)
	if db != nil {
		tripRepo = postgres.NewTripRepository(db, cfg.Ledger.MaxTrips)
		expenseRepo = postgres.NewExpenseRepository(db, cfg.Ledger.MaxExpenses)
		customerRepo = postgres.NewCustomerRepository(db, cfg.Ledger.MaxCustomers)
	} else {
		tripRepo = internalRedis.NewTripStore(redisClient, cfg.Ledger.MaxTrips)
		expenseRepo = internalRedis.NewExpenseStore(redisClient, cfg.Ledger.MaxExpenses)
		customerRepo = internalRedis.NewCustomerStore(redisClient, cfg.Ledger.MaxCustomers)
	}

	// Initialize Redis stores.
	draftStore := internalRedis.NewDraftStore(redisClient)
	geocodeCache := internalRedis.NewGeocodeCache(redisClient, cfg.Geocoding.CacheTTL)

	// Initialize external providers.
	httpClient := provider.NewHTTPClient(providerTimeout)
	orsClient := ors.NewClient(ors.Config{
		BaseURL:   cfg.Geocoding.BaseURL,
		APIKey:    cfg.Geocoding.APIKey,
		Profile:   cfg.Routing.Profile,
		Country:   cfg.Geocoding.Country,
		Qualifier: cfg.Geocoding.Qualifier,
	}, httpClient)
	overpassClient := overpass.NewClient(cfg.POI.OverpassURL, cfg.POI.Categories, httpClient)
	geminiClient := gemini.NewClient(gemini.Config{
		BaseURL: cfg.Insights.BaseURL,
		APIKey:  cfg.Insights.APIKey,
		Model:   cfg.Insights.Model,
	}, httpClient)

	// Initialize services.
	hub := mapview.NewHub()
	resolver := service.NewLocationResolver(orsClient, geocodeCache, cfg.Tracking.CurrentLocationTag)
	planner := service.NewRoutePlanner(resolver, orsClient)
	refresher := service.NewNearbyRefresher(overpassClient, hub, cfg.POI.RadiusM)
	ledgerService := service.NewLedgerService(tripRepo, expenseRepo, customerRepo)
	insightService := service.NewInsightService(ledgerService, geminiClient, cfg.Insights.Fallback)
	tracker := service.NewTracker(service.TrackerConfig{
		MinMovementKm:     cfg.Tracking.MinMovementKm,
		POIRefreshKm:      cfg.Tracking.POIRefreshKm,
		TickInterval:      cfg.Tracking.TickInterval,
		DraftSaveInterval: cfg.Tracking.DraftSaveInterval,
		CommissionRate:    cfg.Tracking.CommissionRate,
		FuelCostPerKm:     cfg.Tracking.FuelCostPerKm,
		StoreTimeout:      cfg.Tracking.StoreTimeout,
	}, service.TrackerDeps{
		Ledger:  ledgerService,
		Drafts:  draftStore,
		Planner: planner,
		Nearby:  refresher,
		View:    hub,
	})

	// Initialize handlers.
	trackingHandler := handler.NewTrackingHandler(tracker, resolver)
	ledgerHandler := handler.NewLedgerHandler(ledgerService, insightService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TrackingHandler: trackingHandler,
		LedgerHandler:   ledgerHandler,
		MapHub:          hub,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, tracker, hub
}
