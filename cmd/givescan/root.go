package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/givescan/givescan/internal/storage"
	"github.com/givescan/givescan/internal/storage/csvbackend"
	"github.com/givescan/givescan/internal/storage/jsonbackend"
	"github.com/givescan/givescan/internal/storage/postgres"
	"github.com/givescan/givescan/internal/storage/sqlite"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "givescan",
	Short:        "Find nearby donation opportunities",
	Long:         "givescan searches for donation-accepting organizations around a location,\nenriches them with contact details and scraped emails, and renders a report.",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("api-key", "", "places API key (env GIVESCAN_API_KEY or GOOGLE_MAPS_API_KEY)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "emit JSON logs")
	pf.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")

	for _, name := range []string{"api-key", "log-level", "log-json", "metrics-port"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIVESCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetBool("log-json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func apiKey() string {
	if k := viper.GetString("api-key"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_MAPS_API_KEY")
}

// openBackend opens the storage backend named by kind. path is a file path
// for the file-backed kinds and a DSN for postgres.
func openBackend(ctx context.Context, kind, path string) (storage.Backend, error) {
	switch kind {
	case "json":
		return jsonbackend.New(path)
	case "csv":
		return csvbackend.New(path)
	case "sqlite":
		return sqlite.New(path)
	case "postgres":
		return postgres.New(ctx, path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want json, csv, sqlite, or postgres)", kind)
	}
}
