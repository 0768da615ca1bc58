// Package config loads application configuration from environment variables.
// A .env file in the working directory is read first when present.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration.  Integration credentials
// live in Integrations so that a deployment can run with any subset of
// third-party services enabled.
type Config struct {
	Env            string // application environment (dev, test, prod)
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // optional
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string // HS256 signing secret for access tokens
	AccessTTLMin   int    // access token lifetime in minutes
	RefreshTTLDays int    // refresh token lifetime in days
	BcryptCost     int
	SiteURL        string        // public origin of the web app, used for redirects and the sitemap
	PublicURL      string        // public origin of this API, prefixes stored media URLs
	StorageDir     string        // root directory for generated media
	SubCheckEvery  time.Duration // minimum spacing of remote subscription checks per user
	BodyLimit      string        // echo body limit, e.g. "2M"

	Integrations Integrations
	Log          LogConfig
}

// LoadDotEnv reads .env into the process environment.  A missing file is
// not an error; variables already set in the environment win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("config: load %s: %v", p, err)
		}
	}
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and a missing value exits the process.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		SiteURL:        envStr("SITE_URL", "http://localhost:5173"),
		PublicURL:      envStr("PUBLIC_URL", "http://localhost:"+envStr("APP_PORT", "8080")),
		StorageDir:     envStr("STORAGE_DIR", "storage"),
		SubCheckEvery:  envDur("SUBSCRIPTION_CHECK_INTERVAL", 30*time.Second),
		BodyLimit:      envStr("BODY_LIMIT", "2M"),
		Integrations:   LoadIntegrations(),
		Log:            LoadLogConfig(),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
