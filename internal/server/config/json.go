package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mailtoken/internal/flagx"
	"github.com/dmitrijs2005/mailtoken/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations accept "1h"-style strings or integer nanoseconds.
// Absent fields keep the value already present in Config.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	DatabaseDSN             *string         `json:"database_dsn"`
	AuthSecret              *string         `json:"auth_secret"`
	TokenTTL                *timex.Duration `json:"token_ttl"`
	RequestTimeout          *timex.Duration `json:"request_timeout"`
	DatabaseMaxConns        *int            `json:"database_max_conns"`
	DatabaseConnMaxLifetime *timex.Duration `json:"database_conn_max_lifetime"`
	LogLevel                *string         `json:"log_level"`
	RunMigrations           *bool           `json:"run_migrations"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flag. Nothing happens when the flag is absent. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.AuthSecret != nil {
		config.AuthSecret = *c.AuthSecret
	}
	if c.TokenTTL != nil {
		config.TokenTTL = c.TokenTTL.Duration
	}
	if c.RequestTimeout != nil {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.DatabaseMaxConns != nil {
		config.DatabaseMaxConns = *c.DatabaseMaxConns
	}
	if c.DatabaseConnMaxLifetime != nil {
		config.DatabaseConnMaxLifetime = c.DatabaseConnMaxLifetime.Duration
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
	if c.RunMigrations != nil {
		config.RunMigrations = *c.RunMigrations
	}
}
