// Package main is the entry point for the widget service.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/companin/widget/internal/config"
	"github.com/companin/widget/pkg/logger"
)

const defaultEnvFile = ".env"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, *logger.Logger, error)

func newRootCommand() *cobra.Command {
	var logLevel, envFile string

	root := &cobra.Command{
		Use:           "widget",
		Short:         "Companin embeddable chat widget service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "file of environment variables to load first")

	// loadConfig reads the environment and applies global flags.
	loadConfig := func() (*config.Config, *logger.Logger, error) {
		cfg := config.Load()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log, err := newLogger(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger.SetGlobal(log)
		return cfg, log, nil
	}

	root.AddCommand(newServeCommand(loadConfig))
	root.AddCommand(newLoaderCommand(loadConfig))
	root.AddCommand(newEventsCommand(loadConfig))
	return root
}

// loadEnvFile loads path into the environment without overriding variables
// already set. A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.DevMode && isatty.IsTerminal(os.Stdout.Fd()) {
		return logger.NewDevelopment()
	}
	return logger.New(cfg.LogLevel)
}
