package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/lifeline/internal/config"
	"github.com/hugo-lorenzo-mato/lifeline/internal/core"
	"github.com/hugo-lorenzo-mato/lifeline/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	noColor   bool
	quiet     bool

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "lifeline",
	Short: "Supervise background work, capture diagnostics, never die silently",
	Long: `lifeline is the operational-resilience host for long-running control
processes. It runs background work as supervised units with bounded retry
budgets, terminates them through a graceful-then-forced cancellation
protocol on shutdown, and captures full diagnostic state to read-only,
collision-free log artifacts when something goes fatally or critically
wrong.

Running 'lifeline' without arguments prints this help.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
	// Released binaries stamp the core identity too, so snapshot headers
	// and diagnostic reports carry the same tag the operator sees.
	if version != "" && version != "dev" {
		core.Version = version
	}
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .lifeline.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, pretty, text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-essential output")

	// Bind flags to viper (errors are nil when flag exists)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".lifeline")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/lifeline")
	}

	viper.SetEnvPrefix("LIFELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	return nil
}

// loadConfig unmarshals the effective configuration through the loader,
// reusing the global viper so flag bindings apply.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}

// newLogger builds the CLI logger from the effective configuration. The
// --no-color flag downgrades auto/pretty output to plain text.
func newLogger(cfg *config.Config) *logging.Logger {
	return newLoggerTo(cfg, nil)
}

// newLoggerTo is newLogger with an explicit output; serve uses it to route
// every log line through the error-stream multiplexer. A nil output means
// standard error.
func newLoggerTo(cfg *config.Config, output io.Writer) *logging.Logger {
	format := cfg.Log.Format
	if noColor && (format == "auto" || format == "pretty") {
		format = "text"
	}
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: format,
		Output: output,
	})
}
