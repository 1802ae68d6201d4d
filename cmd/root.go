package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kilianp07/rotaplan/app"
	"github.com/kilianp07/rotaplan/config"
	"github.com/kilianp07/rotaplan/infra/logger"
)

var (
	cfgPath string
	envPath string
)

var rootCmd = &cobra.Command{
	Use:           "rotaplan",
	Short:         "Vehicle rotation optimizer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "dotenv file exported before the ROTA_ overrides are read")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration file. Without an explicit --config a
// missing default file yields the built-in defaults.
func loadConfig() (*config.Config, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withService loads the configuration, starts a Service and hands both to fn
// with a context cancelled on SIGINT or SIGTERM.
func withService(cfgHook func(*config.Config), fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgHook != nil {
		cfgHook(cfg)
	}
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(ctx, svc)
}

// loadEnv exports the dotenv file. Variables already set in the environment
// win; a missing default file is not an error.
func loadEnv() error {
	if envPath == "" {
		return nil
	}
	err := godotenv.Load(envPath)
	if errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("env-file") {
		logger.New("main").Debugf("no %s file found (using environment variables)", envPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}
