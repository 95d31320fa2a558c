package main

import (
	"github.com/spf13/cobra"

	"crev/internal/config"
	"crev/internal/logging"
	"crev/internal/version"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "crev",
	Short: "crev - context retrieval evaluation",
	Long: `crev scores how well coding-agent trajectories retrieve the context a fix
needs. It compares viewed files, symbols, and line spans against gold
annotations and reports final-context quality, trajectory efficiency, and
edit localization.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("crev version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Path to configuration file (JSON or YAML)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})
}
