package config

import (
	"log"
	"os"
	"strconv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=obra port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	CORSOrigins string
	LogMode     string
	AutoMigrate bool

	// Empty keeps purchase-order locks in process.
	RedisAddress   string
	LockTTLSeconds int

	DefaultWasteFactor       float64
	CriticalThresholdPercent float64
}

func Load() *Config {
	cfg := &Config{
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:              getEnv("DATABASE_DSN", defaultDSN),
		CORSOrigins:              getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogMode:                  getEnv("LOG_MODE", "dev"),
		AutoMigrate:              getBool("AUTO_MIGRATE", true),
		RedisAddress:             getEnv("REDIS_ADDRESS", ""),
		LockTTLSeconds:           getInt("LOCK_TTL_SECONDS", 10),
		DefaultWasteFactor:       getFloat("DEFAULT_WASTE_FACTOR", 1.05),
		CriticalThresholdPercent: getFloat("CRITICAL_THRESHOLD_PERCENT", 105),
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN not set, using the local default. Define it for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS not set, using the local default.")
	}
	if cfg.DefaultWasteFactor <= 0 {
		log.Fatal("[FATAL] DEFAULT_WASTE_FACTOR must be > 0")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a number, using %v", key, v, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
