// Package config loads application configuration from environment
// variables. Database and server settings are required and fail the
// process at startup; signing secrets are deliberately optional here so a
// missing secret surfaces as a configuration error on the route that needs
// it rather than preventing the whole service from booting.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	APIJWTSecret  string // secret signing API tokens (optional; checked at use)
	DocsJWTSecret string // secret signing documentation tokens (optional; falls back to API secret)
	SwaggerSecret string // shared secret clients exchange for a documentation token

	BcryptCost int // bcrypt cost factor for password hashing
}

// Load reads configuration from environment variables. Required variables
// are enforced by must(); missing values exit with a fatal log message.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		APIJWTSecret:  os.Getenv("API_JWT_SECRET"),
		DocsJWTSecret: os.Getenv("DOCS_JWT_SECRET"),
		SwaggerSecret: os.Getenv("SWAGGER_ACCESS_SECRET"),

		BcryptCost: envInt("BCRYPT_COST", 12),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// SecretPrefix returns the first eight characters of a secret for log
// output. A secret too short to truncate is redacted entirely so a full
// secret can never reach the logs.
func SecretPrefix(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8]
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
