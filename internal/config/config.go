package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	HTTPPort     string
	StoreBackend string
	LogLevel     string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	KafkaBrokers []string
	TicketsTopic string

	JWTSecret string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LockTTL         time.Duration
	LockWait        time.Duration
	CacheTTL        time.Duration
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		StoreBackend:   getEnv("STORE_BACKEND", BackendMongo),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "cart_checkout"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "tickets"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		TicketsTopic:   getEnv("TICKETS_TOPIC", "tickets"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
	}

	var err error
	if cfg.DBPort, err = getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	durations := []struct {
		dst *time.Duration
		key string
		def time.Duration
	}{
		{&cfg.RequestTimeout, "REQUEST_TIMEOUT", 30 * time.Second},
		{&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT", 10 * time.Second},
		{&cfg.LockTTL, "LOCK_TTL", 10 * time.Second},
		{&cfg.LockWait, "LOCK_WAIT", 5 * time.Second},
		{&cfg.CacheTTL, "CACHE_TTL", 15 * time.Minute},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StoreBackend != BackendMongo && c.StoreBackend != BackendMemory {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongo, BackendMemory, c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
