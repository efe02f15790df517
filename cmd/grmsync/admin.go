package main

import (
	"context"
	"encoding/json"
	"io"
	"text/tabwriter"

	"github.com/hyperengineering/grmsync/internal/config"
	"github.com/hyperengineering/grmsync/internal/store"
)

var (
	dbOverride string
	jsonOutput bool
)

// loadConfig loads configuration and applies the --db override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbOverride != "" {
		if cfg.Database.Driver == "postgres" {
			cfg.Database.DSN = dbOverride
		} else {
			cfg.Database.Path = dbOverride
		}
	}
	return cfg, nil
}

// openStore opens the configured store for an admin command.
func openStore(ctx context.Context) (*store.SQLStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Database.Driver, cfg.Database.Target())
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
