package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/internal/logger"
	"telbill/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.WorkerServiceName,
		Short: "Pipeline worker for call records and bills",
		Long:  "Pipeline worker consumes every registered trigger topic and runs the matching pipeline service",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(triggersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start consuming triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				logging.NewEarlyLog().Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ctx = logging.WithServiceName(ctx, constants.WorkerServiceName)
			log.InfowCtx(ctx, "Starting pipeline worker")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

// triggersCmd prints the trigger table without touching any backend.
func triggersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triggers",
		Short: "List the triggers and queues of every pipeline service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			registry, err := buildRegistry(cfg, serviceDeps{})
			if err != nil {
				return err
			}

			for _, trigger := range registry.Triggers() {
				def, _ := registry.Lookup(trigger)
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-24s -> %s\n", def.Name, def.Trigger, def.Queue)
			}
			return nil
		},
	}
}
