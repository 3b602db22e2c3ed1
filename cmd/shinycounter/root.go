package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceejiggy/shinycounter/internal/config"
	"github.com/ceejiggy/shinycounter/pkg/logger"
)

// cli holds what PersistentPreRunE resolved for the subcommands.
type cli struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "shinycounter",
		Short: "Shiny hunting counters with odds and OBS mirroring",
		Long: `shinycounter keeps encounter counters for shiny hunts, estimates the chance
of having found the shiny so far, and mirrors counter values into OBS text
and image sources.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML config file (default: $"+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(c))
	root.AddCommand(newOddsCmd())
	root.AddCommand(newCountersCmd(c))
	root.AddCommand(newResetCmd(c))
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads configuration and the global logger. Logs go to stderr so
// command output stays clean.
func (c *cli) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if c.configFile != "" {
		cfg, err = config.LoadFile(cmd.Context(), c.configFile)
	} else {
		cfg, err = config.Load(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	c.cfg = cfg
	return nil
}
