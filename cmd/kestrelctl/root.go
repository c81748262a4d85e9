package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	cfgFile string
	cfg     *domain.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kestrelctl",
	Short: "Operator CLI for the Kestrel loan status engine",
	Long: `kestrelctl runs loan status lookups against the configured customer store,
validates model and encoder artifacts, seeds customer records and load tests
a running Kestrel server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("KESTREL_CONFIG"), "config file (default: built-in defaults plus KESTREL_* env)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(newLookupCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newRotateCmd())
	rootCmd.AddCommand(newBenchmarkCmd())
}

// initLogging keeps CLI output readable: component logs go to stderr and
// only warnings show unless --debug is set.
func initLogging() {
	level := slog.LevelWarn
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
