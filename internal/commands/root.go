// Package commands defines the momo-etl CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/buildinfo"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/logger"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
	logJSON    bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "momo-etl",
		Short:   "Mobile money SMS processing pipeline",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (defaults apply when unset)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit console logs as JSON")

	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newQueryCommand(opts))
	rootCmd.AddCommand(newExportCommand(opts))

	return rootCmd
}

// setup loads configuration and builds the logger for a subcommand. The
// returned closer flushes the logger.
func (o *rootOptions) setup() (*config.Config, *zap.SugaredLogger, func(), error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, nil, err
	}

	log, closeLog, err := logger.New(logger.Options{
		Level:    o.logLevel,
		FilePath: cfg.LogFilePath,
		JSON:     o.logJSON,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closeLog, nil
}
