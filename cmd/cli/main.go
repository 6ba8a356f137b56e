// Package main provides the entry point for mailtoken-cli.
package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/mailtoken/internal/admin"
	"github.com/dmitrijs2005/mailtoken/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()
	app := admin.App(cfg, admin.PostgresOpener, os.Stdout)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
