// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	APIHost string
	APIPort string

	OTLPEndpoint string

	// DBURI, when set, is passed to the driver verbatim and wins over the
	// individual DATABASE_* fields.
	DBURI             string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Anomaly        AnomalyConfig
	Allocation     AllocationConfig
	Reconciliation ReconciliationConfig

	// Per-step credit costs for estimation, keyed by uppercased step name.
	// The DEFAULT bucket covers unknown steps.
	StepCosts map[string]decimal.Decimal
}

// AnomalyConfig configures the abnormal usage detector.
type AnomalyConfig struct {
	Enabled             bool
	HourlyThreshold     decimal.Decimal
	DailyThreshold      decimal.Decimal
	NotificationWebhook string
	IntervalSeconds     int
}

// AllocationConfig configures the monthly credit allocator.
type AllocationConfig struct {
	Enabled     bool
	CreditPrice decimal.Decimal
	RunDay      int
}

// ReconciliationConfig configures the ledger reconciliation loop.
type ReconciliationConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "creditd"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		APIHost: getenv("API_HOST", "0.0.0.0"),
		APIPort: getenv("API_PORT", "8000"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBURI:             strings.TrimSpace(getenv("DB_URI", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "creditd"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Anomaly: AnomalyConfig{
			Enabled:             getenvBool("ANOMALY_DETECTION_ENABLED", true),
			HourlyThreshold:     getenvDecimal("ANOMALY_HOURLY_THRESHOLD", "100"),
			DailyThreshold:      getenvDecimal("ANOMALY_DAILY_THRESHOLD", "500"),
			NotificationWebhook: strings.TrimSpace(getenv("ANOMALY_NOTIFICATION_WEBHOOK", "")),
			IntervalSeconds:     getenvInt("ANOMALY_DETECTION_INTERVAL_SECONDS", 3600),
		},
		Allocation: AllocationConfig{
			Enabled:     getenvBool("MONTHLY_ALLOCATION_ENABLED", true),
			CreditPrice: getenvDecimal("MONTHLY_ALLOCATION_CREDIT_PRICE", "0.015"),
			RunDay:      clampRunDay(getenvInt("MONTHLY_ALLOCATION_RUN_DAY", 1)),
		},
		Reconciliation: ReconciliationConfig{
			Enabled:         getenvBool("RECONCILIATION_ENABLED", true),
			IntervalSeconds: getenvInt("RECONCILIATION_INTERVAL_SECONDS", 86400),
		},

		StepCosts: defaultStepCosts(),
	}

	return cfg
}

func defaultStepCosts() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"ANALYSIS":     decimal.RequireFromString("10.0"),
		"USER_STORIES": decimal.RequireFromString("12.5"),
		"CODE":         decimal.RequireFromString("15.0"),
		"TEST":         decimal.RequireFromString("8.0"),
		"REVIEW":       decimal.RequireFromString("5.0"),
		"DEPLOY":       decimal.RequireFromString("3.0"),
		"DEFAULT":      decimal.RequireFromString("5.0"),
	}
}

// clampRunDay keeps the allocation run day within 1..28 so the gate stays
// valid in February.
func clampRunDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > 28 {
		return 28
	}
	return day
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDecimal(key, def string) decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		value = def
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.RequireFromString(def)
	}
	return parsed
}
