// Package cmd implements the CLI commands for listing-aggregator.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/listing-aggregator/internal/config"
	"github.com/donaldgifford/listing-aggregator/pkg/logger"
)

const envPrefix = "LAGG"

var (
	envFile string
	rootCmd = &cobra.Command{
		Use:   "listing-aggregator",
		Short: "Search, rank and store product listings",
		Long: "listing-aggregator searches the eBay Browse API and Amazon search pages,\n" +
			"normalizes the results into one listing schema, sorts them by price or\n" +
			"rating and saves the ranked list to a database table.",
		SilenceUsage: true,
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initViper)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "config.yaml",
		"config file path (defaults and environment are used when it does not exist)")
	pf.StringVar(&envFile, "env-file", config.DefaultEnvFile,
		"dotenv file holding EBAY_CLIENT_ID and EBAY_CLIENT_SECRET")
	pf.String("output", outputTable, "output format (table, detail, json, csv)")
	pf.String("log-level", "", "override logging.level (debug, info, warn, error)")
	pf.String("log-format", "", "override logging.format (text, json)")
	pf.StringSlice("sources", nil, "override the enabled sources (ebay, amazon)")

	for _, name := range []string{"config", "output", "log-level", "log-format", "sources"} {
		cobra.CheckErr(viper.BindPFlag(name, pf.Lookup(name)))
	}

	rootCmd.AddCommand(
		searchCommand(),
		serveCommand(),
		migrateCommand(),
		listingsCommand(),
		versionCommand(),
	)
}

func initViper() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file. When the file is missing and the path
// was not chosen explicitly, defaults plus the environment are used so the
// CLI works without any YAML.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := viper.GetString("config")
	explicit := cmd.Flags().Changed("config") || os.Getenv(envPrefix+"_CONFIG") != ""

	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) && !explicit {
		cfg, err = config.Default(envFile)
	} else {
		cfg, err = config.LoadWithEnvFile(path, envFile)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := applyOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides layers flag and LAGG_* environment values over the file.
func applyOverrides(cfg *config.Config) error {
	if v := viper.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("log-format"); v != "" {
		if err := logger.ValidateFormat(v); err != nil {
			return err
		}
		cfg.Logging.Format = v
	}
	if v := viper.GetStringSlice("sources"); len(v) > 0 {
		sources := make([]string, 0, len(v))
		for _, s := range v {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != config.SourceEbay && s != config.SourceAmazon {
				return fmt.Errorf("unknown source %q (want ebay or amazon)", s)
			}
			sources = append(sources, s)
		}
		cfg.Sources = sources
	}
	return nil
}

// newLogger builds the process logger from cfg and installs it as the slog
// default.
func newLogger(cfg *config.Config) *slog.Logger {
	l := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(l)
	return l
}
