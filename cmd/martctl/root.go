package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"order-mart/internal/config"
	"order-mart/internal/observability"
	"order-mart/internal/store"
)

type rootConfig struct {
	configFile    string
	driver        string
	inputDir      string
	outputDir     string
	referenceDate string
}

var rootCfg rootConfig

var rootCmd = &cobra.Command{
	Use:   "martctl [command]",
	Short: "Rebuild and inspect the order mart",
	Long: `Runs the order mart pipeline against the configured store and prints the
materialized views it produced. Flags override the YAML file named by
--config (or CONFIG_FILE) and the environment.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootCfg.configFile, "config", "c", "", "YAML config file (or CONFIG_FILE env)")
	pf.StringVar(&rootCfg.driver, "driver", "", "store driver: memory, csv or postgres")
	pf.StringVar(&rootCfg.inputDir, "input-dir", "", "directory holding the input CSV files")
	pf.StringVar(&rootCfg.outputDir, "output-dir", "", "directory the CSV store writes outputs to")
	pf.StringVar(&rootCfg.referenceDate, "reference-date", "", "pin the run's current date (YYYY-MM-DD)")
}

// loadConfig resolves defaults, file, environment, then flags.
func loadConfig() (*config.Config, error) {
	path := rootCfg.configFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if rootCfg.driver != "" {
		cfg.Store.Driver = rootCfg.driver
	}
	if rootCfg.inputDir != "" {
		cfg.Store.InputDir = rootCfg.inputDir
	}
	if rootCfg.outputDir != "" {
		cfg.Store.OutputDir = rootCfg.outputDir
	}
	if rootCfg.referenceDate != "" {
		cfg.Pipeline.ReferenceDate = rootCfg.referenceDate
	}
	return cfg, cfg.Validate()
}

type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	close  func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Logger)

	st, closeFn, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: st, close: closeFn}, nil
}
