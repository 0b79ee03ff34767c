// Package cli implements the pagecheck command line, which runs scenarios
// in-process without the queue or database.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/pagecheck-service/pkg/config"
	"github.com/user/pagecheck-service/pkg/logger"
)

// app is shared by subcommands once the root command has loaded it.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd creates the root command for the pagecheck CLI.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "pagecheck",
		Short:         "Verify pagination consistency of a listing site",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().String("env-file", "", "env file to read configuration from (default .env)")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "console", "log format: console or json")
	cmd.AddCommand(newRunCmd(a), newScenariosCmd(a))

	return cmd
}
