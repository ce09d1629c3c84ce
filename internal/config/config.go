package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the exchange core.
type Config struct {
	Port            int
	LogLevel        string
	DataDir         string
	LedgerTimeout   time.Duration
	PriceTolerance  decimal.Decimal
	TradeFeeBps     int64
	TreasuryAddress common.Address
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	dataDir := getStr("DATA_DIR", "data")

	ledgerTimeout, err := getDuration("LEDGER_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEOUT: %w", err)
	}

	tolerance, err := getDecimal("PRICE_TOLERANCE", "0.000001")
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_TOLERANCE: %w", err)
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("invalid PRICE_TOLERANCE: must not be negative")
	}

	feeBps, err := getInt("TRADE_FEE_BPS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid TRADE_FEE_BPS: %w", err)
	}
	if feeBps < 0 || feeBps > 10_000 {
		return nil, fmt.Errorf("invalid TRADE_FEE_BPS: %d, must be in [0, 10000]", feeBps)
	}

	treasury := getStr("TREASURY_ADDRESS", "0x00000000000000000000000000000000000000fe")
	if !common.IsHexAddress(treasury) {
		return nil, fmt.Errorf("invalid TREASURY_ADDRESS: %q", treasury)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		DataDir:         dataDir,
		LedgerTimeout:   ledgerTimeout,
		PriceTolerance:  tolerance,
		TradeFeeBps:     int64(feeBps),
		TreasuryAddress: common.HexToAddress(treasury),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func getDecimal(key, defaultVal string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = defaultVal
	}
	return decimal.NewFromString(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
