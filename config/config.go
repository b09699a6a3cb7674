// Package config loads the bot's runtime configuration from a dotenv
// file and the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// RPC endpoints. The first backs watching and classification, the
	// second the trading path, so heavy transaction fetches never starve
	// an exit swap.
	ConnectionURL1 string
	ConnectionURL2 string
	// WSURL enables the logsSubscribe watcher; when empty the bot falls
	// back to signature polling alone.
	WSURL string

	TargetWallet         solana.PublicKey
	TargetWalletMinTrade float64 // SOL

	WalletPrivateKey solana.PrivateKey
	TradeAmountSOL   float64

	ProfitMultiplier decimal.Decimal
	SlippageBps      int

	PollInterval    time.Duration
	SignatureWindow int

	LogFile     string
	DatabaseURL string
}

// Load reads the dotenv file at path and resolves every setting.
// Variables already present in the environment take precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}

	cfg := &Config{
		ConnectionURL1: os.Getenv("CONNECTION_URL_1"),
		ConnectionURL2: os.Getenv("CONNECTION_URL_2"),
		WSURL:          os.Getenv("WS_URL"),
		LogFile:        getEnv("LOG_FILE", "trades.csv"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
	}
	if cfg.ConnectionURL1 == "" {
		return nil, fmt.Errorf("CONNECTION_URL_1 is required")
	}
	if cfg.ConnectionURL2 == "" {
		cfg.ConnectionURL2 = cfg.ConnectionURL1
	}

	target, err := solana.PublicKeyFromBase58(os.Getenv("TARGET_WALLET_ADDRESS"))
	if err != nil {
		return nil, fmt.Errorf("TARGET_WALLET_ADDRESS: %w", err)
	}
	cfg.TargetWallet = target

	wallet, err := solana.PrivateKeyFromBase58(os.Getenv("WALLET_PRIVATE_KEY"))
	if err != nil {
		return nil, fmt.Errorf("WALLET_PRIVATE_KEY: %w", err)
	}
	cfg.WalletPrivateKey = wallet

	if cfg.TargetWalletMinTrade, err = floatEnv("TARGET_WALLET_MIN_TRADE", 0.1); err != nil {
		return nil, err
	}
	if cfg.TradeAmountSOL, err = floatEnv("TRADE_AMOUNT", 0.01); err != nil {
		return nil, err
	}
	if cfg.TradeAmountSOL <= 0 {
		return nil, fmt.Errorf("TRADE_AMOUNT must be positive")
	}

	multiplier := getEnv("PROFIT_MULTIPLIER", "1.25")
	cfg.ProfitMultiplier, err = decimal.NewFromString(multiplier)
	if err != nil {
		return nil, fmt.Errorf("PROFIT_MULTIPLIER: %w", err)
	}
	if cfg.ProfitMultiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PROFIT_MULTIPLIER must exceed 1")
	}

	if cfg.SlippageBps, err = intEnv("SLIPPAGE_BPS", 500); err != nil {
		return nil, err
	}
	if cfg.SlippageBps < 0 || cfg.SlippageBps >= 10000 {
		return nil, fmt.Errorf("SLIPPAGE_BPS must be in [0, 10000)")
	}

	pollMs, err := intEnv("POLL_INTERVAL_MS", 5000)
	if err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(pollMs) * time.Millisecond

	if cfg.SignatureWindow, err = intEnv("SIGNATURE_WINDOW", 100); err != nil {
		return nil, err
	}
	if cfg.SignatureWindow < 1 {
		return nil, fmt.Errorf("SIGNATURE_WINDOW must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
