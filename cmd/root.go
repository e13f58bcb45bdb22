// Package cmd provides the tessera command-line interface.
//
// Configuration is read with viper from, highest priority first:
//
//  1. command-line flags (--port, --host, --dev, --write)
//  2. TESSERA_<SECTION>_<KEY> environment variables
//  3. config/<TESSERA_ENV>.yml next to the config file
//  4. the config file: --config, TESSERA_CONFIG_FILE, or .tessera.yml
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tessera/internal/config"
	"github.com/conneroisu/tessera/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "A live content server for Markdown sites",
	Long: `Tessera compiles a directory of Markdown and pass-through documents into
an in-memory site, serves it over HTTP with conditional GET, and rebuilds it
whenever the sources change.

Quick Start:
  tessera serve --dev     Serve with live reload
  tessera build           Write the site to the output directory
  tessera routes          List every route`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tessera.yml, can also use TESSERA_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig selects the config file and enables TESSERA_ environment
// variables. A missing file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TESSERA_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tessera")
	}

	viper.SetEnvPrefix("TESSERA")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && viper.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
	}
}

// loadConfig loads the configuration and a logger configured from it.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
