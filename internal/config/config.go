package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Log       LogConfig
	Ledger    LedgerConfig
	Tracking  TrackingConfig
	Geocoding GeocodingConfig
	Routing   RoutingConfig
	POI       POIConfig
	Insights  InsightsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds PostgreSQL configuration. Only used by the postgres ledger backend.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `validate:"required"`
	Password string
	DB       int `validate:"gte=0"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logrus configuration.
type LogConfig struct {
	Level  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `validate:"oneof=text json"`
}

// LedgerConfig selects the trip ledger backend and its retention caps.
type LedgerConfig struct {
	Backend      string `validate:"oneof=redis postgres"`
	MaxTrips     int    `validate:"gt=0"`
	MaxExpenses  int    `validate:"gt=0"`
	MaxCustomers int    `validate:"gt=0"`
}

// TrackingConfig holds the live tracking thresholds.
type TrackingConfig struct {
	MinMovementKm      float64       `validate:"gt=0"`
	POIRefreshKm       float64       `validate:"gt=0"`
	TickInterval       time.Duration `validate:"gt=0"`
	DraftSaveInterval  time.Duration `validate:"gt=0"`
	CommissionRate     float64       `validate:"gte=0,lt=1"`
	FuelCostPerKm      float64       `validate:"gte=0"`
	CurrentLocationTag string        `validate:"required"`
	StoreTimeout       time.Duration `validate:"gt=0"`
}

// GeocodingConfig holds the OpenRouteService geocoding configuration.
type GeocodingConfig struct {
	BaseURL   string `validate:"required,url"`
	APIKey    string
	Country   string `validate:"required,len=2"`
	Qualifier string
	CacheTTL  time.Duration `validate:"gte=0"`
}

// RoutingConfig holds the OpenRouteService directions configuration.
type RoutingConfig struct {
	Profile string `validate:"required"`
}

// POIConfig holds the Overpass nearby-points configuration.
type POIConfig struct {
	OverpassURL string   `validate:"required,url"`
	RadiusM     int      `validate:"gte=800,lte=1500"`
	Categories  []string `validate:"required,min=1"`
}

// InsightsConfig holds the Gemini insight generator configuration.
type InsightsConfig struct {
	BaseURL  string `validate:"required,url"`
	APIKey   string
	Model    string `validate:"required"`
	Fallback string `validate:"required"`
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridelog"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ridelog"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Ledger: LedgerConfig{
			Backend:      getEnv("LEDGER_BACKEND", "redis"),
			MaxTrips:     getIntEnv("LEDGER_MAX_TRIPS", 50),
			MaxExpenses:  getIntEnv("LEDGER_MAX_EXPENSES", 100),
			MaxCustomers: getIntEnv("LEDGER_MAX_CUSTOMERS", 100),
		},
		Tracking: TrackingConfig{
			MinMovementKm:      getFloatEnv("TRACK_MIN_MOVEMENT_KM", 0.005),
			POIRefreshKm:       getFloatEnv("TRACK_POI_REFRESH_KM", 0.75),
			TickInterval:       getDurationEnv("TRACK_TICK_INTERVAL", time.Second),
			DraftSaveInterval:  getDurationEnv("TRACK_DRAFT_SAVE_INTERVAL", 15*time.Second),
			CommissionRate:     getFloatEnv("TRACK_COMMISSION_RATE", 0.20),
			FuelCostPerKm:      getFloatEnv("TRACK_FUEL_COST_PER_KM", 0),
			CurrentLocationTag: getEnv("TRACK_CURRENT_LOCATION_TAG", "My Current Location"),
			StoreTimeout:       getDurationEnv("TRACK_STORE_TIMEOUT", 5*time.Second),
		},
		Geocoding: GeocodingConfig{
			BaseURL:   getEnv("ORS_BASE_URL", "https://api.openrouteservice.org"),
			APIKey:    getEnv("ORS_API_KEY", ""),
			Country:   getEnv("GEOCODE_COUNTRY", "GH"),
			Qualifier: getEnv("GEOCODE_QUALIFIER", "Ghana"),
			CacheTTL:  getDurationEnv("GEOCODE_CACHE_TTL", 7*24*time.Hour),
		},
		Routing: RoutingConfig{
			Profile: getEnv("ORS_PROFILE", "driving-car"),
		},
		POI: POIConfig{
			OverpassURL: getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			RadiusM:     getIntEnv("POI_RADIUS_M", 1000),
			Categories:  getListEnv("POI_CATEGORIES", []string{"restaurant", "fast_food", "cafe", "supermarket", "mall", "office"}),
		},
		Insights: InsightsConfig{
			BaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			APIKey:   getEnv("GEMINI_API_KEY", ""),
			Model:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Fallback: getEnv("INSIGHT_FALLBACK", "Great job today! Focus on fuel-efficient routes tomorrow."),
		},
	}
}

// Validate checks the loaded configuration against its struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
