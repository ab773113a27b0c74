package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds application configuration. Every policy knob of the engines
// (rates, installment bounds, reveal window, money scale, chain epsilon) is
// an explicit setting so the engines stay testable under alternate policies.
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	// Tokens are issued by the external identity service; only the shared
	// secret for validation lives here.
	JWTSecret     string
	HMACSecret    string
	EncryptionKey []byte

	// Loan pricing policy.
	BaseRate        decimal.Decimal
	StepRate        decimal.Decimal
	MinInstallments int
	MaxInstallments int
	MoneyScale      int32

	// Ledger reconstruction.
	LedgerEpsilon decimal.Decimal
	AuditSchedule string

	// Card secret disclosure.
	RevealWindow time.Duration

	// Reference-rate feed.
	BCBURL string

	// SMTP for audit alerts.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	OpsEmail     string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	keyHex := getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6")
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}

	baseRate, err := getEnvDecimal("BASE_RATE", "2.5")
	if err != nil {
		return nil, err
	}
	stepRate, err := getEnvDecimal("STEP_RATE", "0.1")
	if err != nil {
		return nil, err
	}
	epsilon, err := getEnvDecimal("LEDGER_EPSILON", "0")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		HMACSecret:    getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		EncryptionKey: key,

		BaseRate:        baseRate,
		StepRate:        stepRate,
		MinInstallments: getEnvInt("MIN_INSTALLMENTS", 1),
		MaxInstallments: getEnvInt("MAX_INSTALLMENTS", 24),
		MoneyScale:      int32(getEnvInt("MONEY_SCALE", 2)),

		LedgerEpsilon: epsilon,
		AuditSchedule: getEnv("AUDIT_SCHEDULE", "0 3 * * *"),

		RevealWindow: getEnvDuration("REVEAL_WINDOW", 5*time.Second),

		BCBURL: getEnv("BCB_URL", "https://www3.bcb.gov.br/sgspub/JSP/sgsgeral/FachadaWSSGS.wsdl"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "alerts@bank.local"),
		OpsEmail:     getEnv("OPS_EMAIL", ""),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET is required")
	}
	if n := len(cfg.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 16, 24, or 32 bytes, got %d", n)
	}
	if cfg.MinInstallments < 1 || cfg.MaxInstallments < cfg.MinInstallments {
		return nil, fmt.Errorf("invalid installment bounds [%d, %d]", cfg.MinInstallments, cfg.MaxInstallments)
	}
	if cfg.MoneyScale < 0 {
		return nil, fmt.Errorf("MONEY_SCALE must be >= 0")
	}
	if cfg.LedgerEpsilon.IsNegative() {
		return nil, fmt.Errorf("LEDGER_EPSILON must be >= 0")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvDecimal(key, defaultVal string) (decimal.Decimal, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = defaultVal
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s is not a valid decimal: %w", key, err)
	}
	return d, nil
}
