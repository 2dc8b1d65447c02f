// Package cli provides the command-line interface for log-sentinel.
package cli

import (
	"fmt"
	"os"

	"log-sentinel/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "log-sentinel",
		Short: "Real-time detection of attack patterns in application logs",
		Long: `log-sentinel follows an application log file, parses every line, evaluates
it against a catalog of detection rules and raises alerts.

Logs and alerts are stored durably, queryable over HTTP and streamed live to
subscribers over server-sent events and websockets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", utils.DefaultConfigPath, "Configuration file path (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newRulesCommand(opts))
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newReplayCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, and builds the logger it describes.
func (o *options) loadConfig() (*utils.Config, *logrus.Logger, func(), error) {
	config, loaded, err := utils.LoadConfigOrDefault(o.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config %s: %w", o.configPath, err)
	}
	if o.logLevel != "" {
		config.Logging.Level = o.logLevel
	}

	logger, closer, err := utils.NewLoggerFromConfig(config.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	if loaded {
		logger.Infof("Loaded configuration from %s", o.configPath)
	} else {
		logger.Infof("Config file %s not found, using default configuration", o.configPath)
	}

	cleanup := func() {
		if err := closer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}
	return config, logger, cleanup, nil
}
