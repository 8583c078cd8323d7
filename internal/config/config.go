package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

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

	Billing BillingConfig
}

// BillingConfig carries the ledger policy knobs.
type BillingConfig struct {
	// DefaultDueDays is added to the issue date when a create request
	// omits the due date.
	DefaultDueDays int
	// VirtualCurrency settles virtual appointments, InPersonCurrency
	// settles in-person ones. Amounts are never converted between them.
	VirtualCurrency  string
	InPersonCurrency string
	// StatsWindowMonths bounds the monthly revenue series.
	StatsWindowMonths int
	// CashFlowResetDelay is how long the confirmation flow lingers in
	// the success state before closing.
	CashFlowResetDelay time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "clinicbilling"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "clinicbilling"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Billing: BillingConfig{
			DefaultDueDays:     getenvInt("BILLING_DEFAULT_DUE_DAYS", 30),
			VirtualCurrency:    strings.ToUpper(getenv("BILLING_VIRTUAL_CURRENCY", "USD")),
			InPersonCurrency:   strings.ToUpper(getenv("BILLING_IN_PERSON_CURRENCY", "VES")),
			StatsWindowMonths:  getenvInt("BILLING_STATS_WINDOW_MONTHS", 6),
			CashFlowResetDelay: getenvDuration("BILLING_CASH_FLOW_RESET_DELAY", 1200*time.Millisecond),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
