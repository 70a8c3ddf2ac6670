package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quirkfeed/internal/app"
	"quirkfeed/internal/config"
	"quirkfeed/internal/logger"
)

// set by -ldflags "-X main.version=..."
var version = "dev"

var (
	configFile string
	addr       string
	env        string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "quirkfeed",
		Short:        "Serve a themed feed of odd images with generated captions",
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config and PORT)")
	rootCmd.Flags().StringVar(&env, "env", "", "Runtime environment: production or development")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quirkfeed %s (%s)\n", version, runtime.Version())
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = addr
	}
	if cmd.Flags().Changed("env") {
		cfg.Log.Env = env
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.InitLogger(cfg.Log.Env, cfg.Log.Level)
	defer logger.Sync()

	srv, err := app.NewServer(cfg, app.WithLogger(log))
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting quirkfeed",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.Duration("theme_ttl", cfg.Cache.ThemeTTL),
		zap.Duration("feed_ttl", cfg.Cache.FeedTTL))
	if err := srv.Run(ctx); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		return err
	}
	log.Info("Server stopped")
	return nil
}
