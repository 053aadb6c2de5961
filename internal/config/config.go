package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	Env                  string
	AllowedOrigin        string
	DatabaseURL          string
	SQLitePath           string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ReportCacheTTL       time.Duration
	AuthSecret           string
	AccessTokenTTL       time.Duration
	ManagerPIN           string
	OverdueSweepInterval time.Duration
}

// Load reads the configuration from the environment. Values in a .env file
// in the working directory fill in variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  strings.ToLower(getEnv("APP_ENV", "production")),
		AllowedOrigin:        getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:           strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0, 0),
		ReportCacheTTL:       time.Duration(getInt("REPORT_CACHE_TTL_SECONDS", 600, 1)) * time.Second,
		AuthSecret:           strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTL:       time.Duration(getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1)) * time.Minute,
		ManagerPIN:           strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		OverdueSweepInterval: time.Duration(getInt("OVERDUE_SWEEP_MINUTES", 15, 1)) * time.Minute,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Development() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}
