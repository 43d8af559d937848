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

type Config struct {
	HTTPPort string
	GRPCPort string

	DBDriver        string
	DatabaseDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers   string
	KafkaTopic     string
	RelayWorkers   int
	RelayBatchSize int
	RelayInterval  time.Duration

	AnalyticsLocation *time.Location
	CheckoutReprice   bool
	NodeID            int64
	LogLevel          string
	ShutdownTimeout   time.Duration
}

// Load reads the optional env files (".env" when none are given) and then
// the process environment. Variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	driver := strings.ToLower(getenv("DB_DRIVER", "mysql"))
	if driver == "postgres" {
		driver = "pgx"
	}
	if driver != "mysql" && driver != "pgx" {
		return Config{}, fmt.Errorf("DB_DRIVER must be mysql or postgres, got %q", driver)
	}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		if driver == "mysql" {
			dsn = "root:root@tcp(localhost:3306)/retailpos"
		} else {
			return Config{}, errors.New("DATABASE_DSN is required for postgres")
		}
	}

	tz := getenv("ANALYTICS_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("ANALYTICS_TIMEZONE: %w", err)
	}

	nodeID, err := strconv.ParseInt(getenv("NODE_ID", "1"), 10, 64)
	if err != nil || nodeID < 0 || nodeID > 1023 {
		return Config{}, fmt.Errorf("NODE_ID must be between 0 and 1023, got %q", os.Getenv("NODE_ID"))
	}

	return Config{
		HTTPPort:          getenv("HTTP_PORT", "8080"),
		GRPCPort:          getenv("GRPC_PORT", "50051"),
		DBDriver:          driver,
		DatabaseDSN:       dsn,
		MaxOpenConns:      getInt("DB_MAX_OPEN_CONNS", 50),
		MaxIdleConns:      getInt("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime:   getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		IdempotencyTTL:    getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		KafkaBrokers:      strings.TrimSpace(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getenv("KAFKA_TOPIC", "pos.invoices"),
		RelayWorkers:      getInt("RELAY_WORKERS", 2),
		RelayBatchSize:    getInt("RELAY_BATCH_SIZE", 50),
		RelayInterval:     getDuration("RELAY_INTERVAL", time.Second),
		AnalyticsLocation: loc,
		CheckoutReprice:   getBool("CHECKOUT_REPRICE"),
		NodeID:            nodeID,
		LogLevel:          getenv("LOG_LEVEL", "info"),
		ShutdownTimeout:   getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil {
		return def
	}
	return d
}

func getBool(key string) bool {
	v := strings.ToLower(getenv(key, "false"))
	return v == "1" || v == "true" || v == "yes"
}
