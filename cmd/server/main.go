package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/oinkroom/internal/app"
	"github.com/vovakirdan/oinkroom/internal/config"
	applog "github.com/vovakirdan/oinkroom/internal/log"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "oinkroom",
		Short:        "Instance presence and broadcast relay server",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "path to config file (default ./config.yaml)")
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(versionCmd())
	cmd.AddCommand(configCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, overrides, true)
			if err != nil {
				return err
			}

			logger := applog.NewFormat(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("invalid configuration")
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting oinkroom server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&overrides.PathPrefix, "path-prefix", "", "prefix for every route, e.g. /.proxy")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.DurationVar(&overrides.HandshakeTimeout, "handshake-timeout", 0, "time allowed for the websocket hello frame")
	flags.DurationVar(&overrides.CredentialTTL, "credential-ttl", 0, "session credential lifetime (0 disables expiry)")
	flags.IntVar(&overrides.ActionVariants, "action-variants", 0, "number of sound variants per action")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the resolved configuration as YAML, secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, config.Config{}, false)
			if err != nil {
				return err
			}
			cfg.ClientSecret = redact(cfg.ClientSecret)
			cfg.JWTSecret = redact(cfg.JWTSecret)

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

// loadConfig resolves defaults < file < env < flags. Only serve may create
// a missing config file.
func loadConfig(cmd *cobra.Command, overrides config.Config, writeDefault bool) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}

	var (
		cfg      config.Config
		resolved string
	)
	if writeDefault {
		cfg, resolved, err = config.Load(applog.New("warn"), path)
	} else {
		cfg, resolved, err = config.Inspect(path)
	}
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", resolved, err)
	}
	cfg.UpdateFrom(overrides)
	return cfg, nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
