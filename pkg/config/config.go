// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"invledger/pkg/reconcile"
)

const devSecret = "dev-insecure-secret-change"

// Config holds everything the server and CLI need at startup.
type Config struct {
	Port              string
	LogLevel          string
	CatalogPath       string
	CatalogWatch      bool
	DSN               string
	AutoMigrate       bool
	JWTSecret         []byte
	AdminUsername     string
	AdminPassword     string
	Engine            reconcile.Config
	QuantityIsolation string
	ItemIsolation     string
	DiagDir           string
	MaxUploadBytes    int64
}

// Persistence reports whether a database is configured.
func (c *Config) Persistence() bool {
	return c.DSN != ""
}

// InsecureSecret reports whether the development JWT secret is in use.
func (c *Config) InsecureSecret() bool {
	return string(c.JWTSecret) == devSecret
}

// Load reads the environment. Every malformed value is reported, not just
// the first.
func Load() (*Config, error) {
	e := &env{}
	cfg := &Config{
		Port:              e.str("PORT", "8081"),
		LogLevel:          strings.ToUpper(e.str("LOG_LEVEL", "INFO")),
		CatalogPath:       e.str("CATALOG_PATH", "ftf_items.json"),
		CatalogWatch:      e.boolean("CATALOG_WATCH", true),
		DSN:               e.str("DB_DSN", ""),
		AutoMigrate:       e.boolean("DB_AUTO_MIGRATE", true),
		JWTSecret:         []byte(e.str("JWT_SECRET", devSecret)),
		AdminUsername:     e.str("ADMIN_USERNAME", ""),
		AdminPassword:     e.str("ADMIN_PASSWORD", ""),
		QuantityIsolation: e.str("QUANTITY_ISOLATION", "threshold"),
		ItemIsolation:     e.str("ITEM_ISOLATION", "saturation"),
		DiagDir:           e.str("DIAG_DIR", ""),
		MaxUploadBytes:    int64(e.integer("MAX_UPLOAD_MB", 10)) << 20,
	}

	ec := reconcile.DefaultConfig()
	ec.Grid.Width = e.integer("CANVAS_WIDTH", ec.Grid.Width)
	ec.Grid.Height = e.integer("CANVAS_HEIGHT", ec.Grid.Height)
	ec.Grid.RowPercent = e.float("GRID_ROW_PERCENT", ec.Grid.RowPercent)
	ec.Grid.ColumnPercents = e.floats("GRID_COLUMN_PERCENTS", ec.Grid.ColumnPercents)
	ec.Grid.CornerPercent = e.float("CORNER_PERCENT", ec.Grid.CornerPercent)
	ec.Grid.TextStripPercent = e.float("TEXT_STRIP_PERCENT", ec.Grid.TextStripPercent)
	ec.Threshold = e.integer("MATCH_THRESHOLD", ec.Threshold)
	ec.ImageTimeout = e.duration("IMAGE_TIMEOUT", ec.ImageTimeout)
	cfg.Engine = ec

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		e.errs = append(e.errs, err)
	}
	if err := ec.Grid.Validate(); err != nil {
		e.errs = append(e.errs, err)
	}
	if ec.Threshold < 0 || ec.Threshold > 100 {
		e.errs = append(e.errs, fmt.Errorf("MATCH_THRESHOLD %d outside 0..100", ec.Threshold))
	}
	if cfg.MaxUploadBytes <= 0 {
		e.errs = append(e.errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		e.errs = append(e.errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetupLogging installs a text slog handler at the given level as default.
func SetupLogging(w io.Writer, level string) {
	lvl, _ := ParseLevel(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.ToLower(e.str(key, ""))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) floats(key string, def []float64) []float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	var out []float64
	for _, part := range strings.Split(v, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		out = append(out, f)
	}
	return out
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
