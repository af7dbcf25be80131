// Package cmd implements the tapctl CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/tap-paypal/internal/api/client"
)

// A sync runs inside the request, so the default leaves room for a long one.
const defaultTimeout = 10 * time.Minute

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tapctl",
		Short: "CLI client for the tap-paypal service",
		Long: "tapctl is a command-line client for a tap-paypal service started\n" +
			"with 'tap-paypal serve'. It triggers syncs and inspects the bookmark,\n" +
			"run history and stored invoice rows.",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if f := viper.GetString("output"); f != "table" && f != "json" {
				return fmt.Errorf("--output must be table or json (got %q)", f)
			}
			return nil
		},
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command. Errors have already been printed by cobra.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.tapctl.yaml)")
	flags.String("server", "http://localhost:8080", "tap-paypal service URL")
	flags.String("output", "table", "output format (table, json)")
	flags.Duration("timeout", defaultTimeout, "request timeout")

	for _, name := range []string{"server", "output", "timeout"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}

	rootCmd.AddCommand(syncCmd(), stateCmd(), runsCmd(), rowsCmd())
}

// initConfig reads ~/.tapctl.yaml (or --config) and TAPCTL_* variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tapctl")
	}

	viper.SetEnvPrefix("TAPCTL")
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	case cfgFile != "" || !errors.As(err, &notFound):
		cobra.CheckErr(fmt.Errorf("reading config: %w", err))
	}
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"),
		apiclient.WithHTTPClient(&http.Client{Timeout: viper.GetDuration("timeout")}))
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}
