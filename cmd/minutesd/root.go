package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"minutes/internal/config"
	"minutes/internal/daemon"
	"minutes/internal/logging"
)

const logFileName = "minutesd.log"

// daemonFactory builds the daemon from a loaded config. Tests swap in
// stubbed collaborators.
type daemonFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error)

func defaultFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	return daemon.New(ctx, cfg, logger, daemon.Collaborators{})
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(defaultFactory, true)
}

func newRootCommandWith(factory daemonFactory, requireCredentials bool) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "minutesd",
		Short:         "Run the minutes daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, logger, err := bootstrap(cmd.Context(), configPath, factory, requireCredentials)
			if err != nil {
				return err
			}
			if err := d.Run(cmd.Context()); err != nil {
				_ = d.Close()
				return err
			}
			logger.Info("minutesd shutting down")
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification using the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := bootstrap(cmd.Context(), configPath, factory, false)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	})

	return rootCmd
}

func bootstrap(ctx context.Context, configPath string, factory daemonFactory, requireCredentials bool) (*daemon.Daemon, *slog.Logger, error) {
	cfg, path, exists, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if requireCredentials {
		if err := cfg.ValidateCredentials(); err != nil {
			return nil, nil, err
		}
	}

	logger, err := logging.NewFromConfig(cfg, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	if !exists {
		logger.Info("config file not found; using defaults", logging.String("path", path))
	}

	d, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, logger, nil
}
