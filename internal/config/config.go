package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	StoreDriver        string
	DatabasePath       string
	DataFile           string
	DatabaseURL        string
	AuthorityURL       string
	AuthorityTimeout   time.Duration
	AuthorityRetries   int
	ResolveConcurrency int
	WalletDNSServer    string
	AuthToken          string
	EnableReflection   bool
	LogLevel           string
}

func Load() Config {
	return Config{
		HTTPAddr:           envOrDefault("HTTP_ADDR", "127.0.0.1:5000"),
		GRPCAddr:           envOrDefault("GRPC_ADDR", "127.0.0.1:50051"),
		StoreDriver:        envOrDefault("STORE_DRIVER", "sqlite"),
		DatabasePath:       envOrDefault("DATABASE_PATH", "namecache.db"),
		DataFile:           envOrDefault("DATA_FILE", "./data/namecache.json"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AuthorityURL:       envOrDefault("AUTHORITY_URL", "https://hsd.hns.au"),
		AuthorityTimeout:   envDurationOrDefault("AUTHORITY_TIMEOUT", 10*time.Second),
		AuthorityRetries:   envIntOrDefault("AUTHORITY_RETRIES", 0),
		ResolveConcurrency: envIntOrDefault("RESOLVE_CONCURRENCY", 8),
		WalletDNSServer:    envOrDefault("WALLET_DNS_SERVER", "127.0.0.1:5350"),
		AuthToken:          os.Getenv("AUTH_TOKEN"),
		EnableReflection:   envBoolOrDefault("ENABLE_REFLECTION", false),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envIntOrDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
