package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"customer-statement-validator/cmd/validator/config"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "validator",
	Short: "Customer statement validation tool",
	Long: `Validator checks monthly customer statement records delivered as CSV or XML.
Every transaction reference must be unique and every end balance must equal
the start balance plus the mutation. Only failing records are reported.

Examples:
  validator validate --file records.csv
  validator validate --file records.xml --output-format xlsx --output-file report.xlsx
  validator serve --listen :8080
  validator version`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, config.KeyVerbose, "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, config.KeyLogFormat, "text", "log format: text, json")

	viper.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup(config.KeyVerbose))
	viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup(config.KeyLogFormat))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool(config.KeyVerbose) {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// VALIDATOR_OUTPUT_FORMAT, VALIDATOR_COLUMNS_REFERENCE, ...
	viper.SetEnvPrefix("VALIDATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}

	logConfig, err := config.CreateLoggerConfig(viper.GetBool(config.KeyVerbose), viper.GetString(config.KeyLogFormat))
	if err != nil {
		return err
	}
	logConfig.Writer = cmd.ErrOrStderr()

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return errors.ConfigurationError("logger", logConfig.Level, err)
	}
	logger.SetGlobalLogger(log)
	return nil
}

// bindFlags binds the flags of the running command only, so commands sharing
// a flag name do not override each other's binding
func bindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return errors.InternalError("flag binding", err)
	}
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "validator %s\n", getVersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
