// Package config loads server settings from the environment, an optional .env
// file and command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends selectable through DB_DRIVER or -driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DefaultSQLitePath is the database file used when the sqlite driver is
// selected without a DSN.
const DefaultSQLitePath = "project-control.db"

type Config struct {
	Port             int
	DBDriver         string
	DBDSN            string
	CORSOrigins      []string
	SnapshotEnabled  bool
	SnapshotInterval time.Duration
}

// Defaults returns the configuration used when nothing is set. DBDSN stays
// empty; Load fills in DefaultSQLitePath for the sqlite driver only.
func Defaults() Config {
	return Config{
		Port:             8080,
		DBDriver:         DriverSQLite,
		CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
		SnapshotEnabled:  true,
		SnapshotInterval: 24 * time.Hour,
	}
}

// Load reads .env (if present) and the environment, then applies flags from
// args. Pass os.Args[1:] from main.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := cfg.fromEnv(os.Getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "storage backend: sqlite, postgres or memory")
	fs.StringVar(&cfg.DBDSN, "db", cfg.DBDSN, `SQLite path (":memory:" for in-memory, default `+DefaultSQLitePath+`) or Postgres DSN`)
	fs.BoolVar(&cfg.SnapshotEnabled, "snapshots", cfg.SnapshotEnabled, "record EAC snapshots periodically")
	fs.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "interval between EAC snapshots")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.DBDriver == DriverSQLite && cfg.DBDSN == "" {
		cfg.DBDSN = DefaultSQLitePath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fromEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = port
	}
	if v := getenv("DB_DRIVER"); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getenv("DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := getenv("SNAPSHOT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SNAPSHOT_ENABLED: %w", err)
		}
		c.SnapshotEnabled = enabled
	}
	if v := getenv("SNAPSHOT_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SNAPSHOT_INTERVAL: %w", err)
		}
		c.SnapshotInterval = interval
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver == DriverPostgres && c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is not set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SnapshotEnabled && c.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
