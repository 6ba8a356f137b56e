package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mailtoken/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variable names understood by parseEnv.
const (
	EnvHTTPAddr      = "HTTP_ADDR"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvAuthSecret    = "AUTH_SECRET"
	EnvTokenTTLSec   = "TOKEN_TTL_SEC"
	EnvReqTimeoutSec = "REQUEST_TIMEOUT_SEC"
	EnvDBMaxConns    = "DB_MAX_CONNS"
	EnvLogLevel      = "LOG_LEVEL"
	EnvRunMigrations = "RUN_MIGRATIONS"
)

// parseEnv overlays values from environment variables. A dotenv file given
// with -env is loaded first; otherwise ./.env is loaded if it exists.
// Variables already present in the process environment are never
// overwritten by the file.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlags(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if v, ok := lookup(EnvHTTPAddr); ok {
		config.EndpointAddrHTTP = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok {
		config.DatabaseDSN = v
	}
	if v, ok := lookup(EnvAuthSecret); ok {
		config.AuthSecret = v
	}
	if v, ok := lookup(EnvTokenTTLSec); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.TokenTTL = time.Duration(n) * time.Second
		}
	}
	if v, ok := lookup(EnvReqTimeoutSec); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	if v, ok := lookup(EnvDBMaxConns); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.DatabaseMaxConns = n
		}
	}
	if v, ok := lookup(EnvLogLevel); ok {
		config.LogLevel = v
	}
	if v, ok := lookup(EnvRunMigrations); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.RunMigrations = b
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
