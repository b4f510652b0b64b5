package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"tasktracker/internal/domain/errors"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
	StorageRedis    = "redis"
)

type Config struct {
	Addr               string `json:"addr"`
	Port               int    `json:"port"`
	DBStr              string `json:"db_str"`
	MigratePath        string `json:"migrate_path"`
	Storage            string `json:"storage"`
	SessionStore       string `json:"session_store"`
	RedisAddr          string `json:"redis_addr"`
	RedisPassword      string `json:"redis_password"`
	RedisDB            int    `json:"redis_db"`
	BcryptCost         int    `json:"bcrypt_cost"`
	ShutdownTimeoutSec int    `json:"shutdown_timeout_sec"`
}

const (
	defaultAddr            = "0.0.0.0"
	defaultPort            = 8080
	defaultDBStr           = "postgresql://tasks:tasks@db:5432/tasks?sslmode=disable"
	defaultMigratePath     = "migrations"
	defaultRedisAddr       = "localhost:6379"
	defaultBcryptCost      = 12
	defaultShutdownTimeout = 30
)

func DefaultConfig() *Config {
	return &Config{
		Addr:               defaultAddr,
		Port:               defaultPort,
		DBStr:              defaultDBStr,
		MigratePath:        defaultMigratePath,
		Storage:            StoragePostgres,
		RedisAddr:          defaultRedisAddr,
		BcryptCost:         defaultBcryptCost,
		ShutdownTimeoutSec: defaultShutdownTimeout,
	}
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// ReadConfig layers defaults, an optional JSON file, .env and the process
// environment, then command-line flags. Only flags present in args override.
func ReadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	port := fs.Int("port", defaultPort, "server port")
	dbstr := fs.String("dbstr", defaultDBStr, "database connection string")
	dbDsn := fs.String("dbdsn", "", "database DSN, takes priority over -dbstr")
	migratePath := fs.String("migratepath", defaultMigratePath, "path to the migrations directory")
	storage := fs.String("storage", StoragePostgres, "task and user storage: postgres or memory")
	sessionStore := fs.String("sessions", "", "session storage: postgres, redis or memory (defaults to -storage)")
	redisAddr := fs.String("redis", defaultRedisAddr, "redis address for the redis session store")
	configFile := fs.String("c", "", "path to a JSON config file")
	envFile := fs.String("env", ".env", "path to a .env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if jsonConfig := loadJSONConfig(*configFile); jsonConfig != nil {
		cfg = jsonConfig
	}

	if err := godotenv.Load(*envFile); err == nil {
		log.Printf("[INFO] loaded environment from %s", *envFile)
	}
	applyEnvOverrides(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "port":
			cfg.Port = *port
		case "dbstr":
			if *dbDsn == "" {
				cfg.DBStr = *dbstr
			}
		case "dbdsn":
			cfg.DBStr = *dbDsn
		case "migratepath":
			cfg.MigratePath = *migratePath
		case "storage":
			cfg.Storage = *storage
		case "sessions":
			cfg.SessionStore = *sessionStore
		case "redis":
			cfg.RedisAddr = *redisAddr
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadJSONConfig(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("[WARN] %s %s: %v", errors.ErrConfigFileReadFailed.Error(), configPath, err)
		return nil
	}

	jsonConfig := DefaultConfig()
	if err := json.Unmarshal(data, jsonConfig); err != nil {
		log.Printf("[WARN] %s: %v", errors.ErrConfigParseFailed.Error(), err)
		return nil
	}

	log.Printf("[INFO] loaded JSON config from %s", configPath)
	return jsonConfig
}

func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if port, ok := envInt("PORT"); ok {
		cfg.Port = port
	}
	if dbStr := os.Getenv("DB_STR"); dbStr != "" {
		cfg.DBStr = dbStr
	}
	if migratePath := os.Getenv("MIGRATE_PATH"); migratePath != "" {
		cfg.MigratePath = migratePath
	}
	if storage := os.Getenv("STORAGE"); storage != "" {
		cfg.Storage = storage
	}
	if sessions := os.Getenv("SESSION_STORE"); sessions != "" {
		cfg.SessionStore = sessions
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB, ok := envInt("REDIS_DB"); ok {
		cfg.RedisDB = redisDB
	}
	if cost, ok := envInt("BCRYPT_COST"); ok {
		cfg.BcryptCost = cost
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[WARN] %s in %s: %s", errors.ErrConfigInvalidFormat.Error(), key, raw)
		return 0, false
	}
	return v, true
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", errors.ErrConfigInvalidFormat, c.Port)
	}
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage %q", errors.ErrConfigInvalidFormat, c.Storage)
	}
	if c.SessionStore == "" {
		c.SessionStore = c.Storage
	}
	switch c.SessionStore {
	case StoragePostgres, StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("%w: unknown session store %q", errors.ErrConfigInvalidFormat, c.SessionStore)
	}
	if c.ShutdownTimeoutSec <= 0 {
		c.ShutdownTimeoutSec = defaultShutdownTimeout
	}
	return nil
}
