package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	FanoutLocal = "local"
	FanoutRedis = "redis"
)

type Config struct {
	AppPort    string
	AppMode    string
	LogMode    string
	DBDriver   string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBPath     string
	JWTSecret  string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	FanoutMode        string
	MessageRateLimit  int
	MessageRateWindow time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:           getEnv("APP_PORT", "8080"),
		AppMode:           getEnv("APP_MODE", "debug"),
		LogMode:           getEnv("LOG_MODE", "development"),
		DBDriver:          getEnv("DB_DRIVER", DriverPostgres),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "wedding_chat"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBPath:            getEnv("DB_PATH", "wedding-chat.db"),
		JWTSecret:         getEnv("JWT_SECRET", "change-me"),
		RedisEnabled:      getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		FanoutMode:        getEnv("FANOUT_MODE", FanoutLocal),
		MessageRateLimit:  getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		MessageRateWindow: time.Duration(getEnvAsInt("MESSAGE_RATE_WINDOW_SEC", 60)) * time.Second,
	}
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.FanoutMode {
	case FanoutLocal:
	case FanoutRedis:
		if !c.RedisEnabled {
			return fmt.Errorf("FANOUT_MODE=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unsupported FANOUT_MODE %q", c.FanoutMode)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.MessageRateLimit <= 0 || c.MessageRateWindow <= 0 {
		return fmt.Errorf("message rate limit and window must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
