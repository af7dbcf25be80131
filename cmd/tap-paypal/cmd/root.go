// Package cmd implements the CLI commands for tap-paypal.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/tap-paypal/internal/config"
	"github.com/donaldgifford/tap-paypal/internal/sink"
	"github.com/donaldgifford/tap-paypal/pkg/logger"
)

var (
	cfgFile  string
	discover bool
)

var rootCmd = &cobra.Command{
	Use:   "tap-paypal",
	Short: "Singer tap for PayPal invoices",
	Long: "tap-paypal extracts PayPal invoices incrementally and writes them as\n" +
		"Singer SCHEMA, RECORD and STATE messages on stdout. Each invoice becomes\n" +
		"one header row, one row per line item and one row per refund.",
	Example: `  tap-paypal --config config.yaml --state state.json > out.jsonl
  tap-paypal --config config.yaml --discover
  tap-paypal serve --config config.yaml`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if discover {
			return writeCatalog(cmd.OutOrStdout())
		}
		return runSync(cmd)
	},
}

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

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "config.yaml", "config file path (YAML or JSON)")
	flags.String("state", "", "state file path, overrides state.path")
	flags.String("start-date", "", "first day to sync when no bookmark exists (YYYY-MM-DD or RFC 3339)")
	flags.String("end-date", "", "last day to sync (default today, UTC)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json, pretty)")

	for _, name := range []string{"state", "start-date", "end-date", "log-level", "log-format"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}

	rootCmd.Flags().BoolVar(&discover, "discover", false, "print the Singer catalog and exit")

	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCommand())
}

func initViper() {
	viper.SetEnvPrefix("TAP_PAYPAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Credentials are environment-only; they never appear as flags.
	cobra.CheckErr(viper.BindEnv("client-id"))
	cobra.CheckErr(viper.BindEnv("client-secret"))
}

// loadConfig reads the config file and applies flag and TAP_PAYPAL_*
// environment overrides before validation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, viperOverrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func viperOverrides(cfg *config.Config) {
	if v := viper.GetString("client-id"); v != "" {
		cfg.PayPal.ClientID = v
	}
	if v := viper.GetString("client-secret"); v != "" {
		cfg.PayPal.ClientSecret = v
	}
	if v := viper.GetString("state"); v != "" {
		cfg.State.Path = v
	}
	if v := viper.GetString("start-date"); v != "" {
		cfg.PayPal.StartDate = v
	}
	if v := viper.GetString("end-date"); v != "" {
		cfg.PayPal.EndDate = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(cfg.Logging.Level, cfg.Logging.Format)
}

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print the Singer catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeCatalog(cmd.OutOrStdout())
		},
	}
}

func writeCatalog(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sink.Catalog())
}
