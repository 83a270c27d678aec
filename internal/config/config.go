package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Entropy  EntropyConfig
	Security SecurityConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// EntropyConfig holds the upstream entropy source configuration
type EntropyConfig struct {
	URL     string
	Timeout time.Duration
}

// RateLimitPolicy is one named sliding-window policy.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// SecurityConfig holds the gatekeeping policy knobs. The thresholds are
// configuration rather than constants so deployments can tune them without
// a rebuild.
type SecurityConfig struct {
	SignatureSecret   string
	SignatureSkew     time.Duration
	AllowedOrigins    []string
	MaxBodyBytes      int64
	MaxKeysPerUser    int
	KeyCacheTTL       time.Duration
	AlertThreshold    int
	BlockThreshold    int
	DetectionWindow   time.Duration
	AutoBlockDuration time.Duration
	AlertCooldown     time.Duration
	RateLimitGlobal   RateLimitPolicy
	RateLimitRandom   RateLimitPolicy
	RateLimitStrict   RateLimitPolicy
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "entropygate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Entropy: EntropyConfig{
			URL:     getEnv("ENTROPY_SOURCE_URL", "http://localhost:9090/entropy"),
			Timeout: getEnvAsDuration("ENTROPY_TIMEOUT", 5*time.Second),
		},
		Security: SecurityConfig{
			SignatureSecret:   getEnv("SIGNATURE_SECRET", "change-this-in-production"),
			SignatureSkew:     getEnvAsDuration("SIGNATURE_SKEW", 5*time.Minute),
			AllowedOrigins:    getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxBodyBytes:      getEnvAsInt64("MAX_BODY_BYTES", 10*1024),
			MaxKeysPerUser:    getEnvAsInt("MAX_KEYS_PER_USER", 5),
			KeyCacheTTL:       getEnvAsDuration("KEY_CACHE_TTL", time.Hour),
			AlertThreshold:    getEnvAsInt("SECURITY_ALERT_THRESHOLD", 10),
			BlockThreshold:    getEnvAsInt("SECURITY_BLOCK_THRESHOLD", 15),
			DetectionWindow:   getEnvAsDuration("SECURITY_DETECTION_WINDOW", 5*time.Minute),
			AutoBlockDuration: getEnvAsDuration("SECURITY_AUTOBLOCK_DURATION", time.Hour),
			AlertCooldown:     getEnvAsDuration("SECURITY_ALERT_COOLDOWN", 5*time.Minute),
			RateLimitGlobal: RateLimitPolicy{
				Name:   "global",
				Limit:  getEnvAsInt("RATELIMIT_GLOBAL_LIMIT", 100),
				Window: getEnvAsDuration("RATELIMIT_GLOBAL_WINDOW", time.Minute),
			},
			RateLimitRandom: RateLimitPolicy{
				Name:   "random",
				Limit:  getEnvAsInt("RATELIMIT_RANDOM_LIMIT", 30),
				Window: getEnvAsDuration("RATELIMIT_RANDOM_WINDOW", time.Minute),
			},
			RateLimitStrict: RateLimitPolicy{
				Name:   "strict",
				Limit:  getEnvAsInt("RATELIMIT_STRICT_LIMIT", 10),
				Window: getEnvAsDuration("RATELIMIT_STRICT_WINDOW", time.Minute),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
