package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mailtoken/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":4000")
//	-d string   PostgreSQL DSN
//	-s string   server secret
//	-t int      token time-to-live, seconds
//	-r int      per-request store timeout, seconds
//	-m int      max pooled database connections
//	-l string   log level
//
// Only the flags above are picked out of os.Args, so the CLI can define its
// own flags without collisions.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AuthSecret, "s", config.AuthSecret, "server secret")
	tokenTTL := fs.Int("t", int(config.TokenTTL.Seconds()), "token time-to-live (in seconds)")
	requestTimeout := fs.Int("r", int(config.RequestTimeout.Seconds()), "per-request store timeout (in seconds)")
	fs.IntVar(&config.DatabaseMaxConns, "m", config.DatabaseMaxConns, "max database connections")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenTTL = time.Duration(*tokenTTL) * time.Second
	config.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
