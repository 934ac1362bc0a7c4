// tabview serves two tabular datasets (main and history) for searching
// and faceted filtering, and manages them from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabview/internal/config"
	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/logging"
	"github.com/JonMunkholm/tabview/internal/parse"
	"github.com/JonMunkholm/tabview/internal/store"
)

var version = "dev"

var (
	configFile string
	envFile    string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+describeError(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tabview",
	Short: "Search and filter uploaded CSV/XLSX datasets",
	Long: `tabview keeps one "main" and one "history" dataset, each replaced
wholesale by uploading a CSV or XLSX file, and serves them for free-text
search and per-column checkbox filtering.

Configuration comes from struct defaults, an optional YAML file
(--config or CONFIG_FILE) and environment variables. A .env file is
loaded first when present.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, importCmd, queryCmd, facetsCmd, clearCmd, statusCmd)
}

// loadConfig reads .env, then the layered config, and installs the logger.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Overload(envFile); err == nil {
		slog.Debug("loaded env file", "path", envFile)
	}

	path := configFile
	if path == "" {
		path = os.Getenv(config.FileEnv)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// serviceOptions maps config onto the service.
func serviceOptions(cfg *config.Config) core.Options {
	return core.Options{
		Parse: parse.Options{
			SheetName:          cfg.Parse.SheetName,
			SheetMarker:        cfg.Parse.SheetMarker,
			ConvertDateSerials: cfg.Parse.ConvertDateSerials,
			RawCells:           cfg.Parse.RawCells,
		},
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		UploadTimeout: cfg.Upload.Timeout,
		ResultTTL:     cfg.Upload.ResultTTL,
		AuditCapacity: cfg.Upload.AuditCapacity,
	}
}

// openService opens the configured store and boots a service on it. The
// caller closes the returned store.
func openService(ctx context.Context, cfg *config.Config) (*core.Service, *store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	svc := core.NewService(st, serviceOptions(cfg))
	if err := svc.Boot(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("load datasets: %w", err)
	}
	return svc, st, nil
}

// describeError prefers the user-facing message when one exists.
func describeError(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}
