// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	StoreDriver    string // "mysql" or "memory"
	DBUser         string
	DBPass         string // optional
	DBHost         string
	DBPort         string
	DBName         string
	AutoMigrate    bool   // apply embedded migrations at startup
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int
	LogLevel       string
	LogFormat      string // "text" or "json"
	AdminEmail     string // bootstrap admin, skipped when empty
	AdminPassword  string
	CORSOrigins    []string
}

// Load reads the .env file when present and then the environment.  Missing
// required variables are collected into a single error.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	r := &reader{}
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           r.must("APP_PORT"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		DBPass:         os.Getenv("DB_PASS"),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
		JWTSecret:      r.must("JWT_SECRET"),
		AccessTTLMin:   r.intOr("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: r.intOr("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     r.intOr("BCRYPT_COST", 10),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", "text"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		CORSOrigins:    splitList(envStr("CORS_ORIGINS", "*")),
	}

	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = r.must("DB_USER")
		cfg.DBHost = r.must("DB_HOST")
		cfg.DBPort = r.must("DB_PORT")
		cfg.DBName = r.must("DB_NAME")
	case StoreMemory:
	default:
		r.errs = append(r.errs, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver))
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		r.errs = append(r.errs, errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set"))
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// reader accumulates validation errors so every missing key is reported at
// once.
type reader struct{ errs []error }

func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.errs = append(r.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (r *reader) intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
