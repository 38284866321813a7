package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendera/backoffice-gateway/internal/app"
	"github.com/tendera/backoffice-gateway/internal/config"
	"github.com/tendera/backoffice-gateway/internal/remote"
	"github.com/tendera/backoffice-gateway/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the gateway server.

The server requires a configuration file (--config) that specifies:
- The upstream procurement API endpoint and timeouts
- Listen address and shutdown behavior
- Resource dependency extensions, notification buffer and telemetry

See examples/ directory for a sample configuration.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath, "upstream", cfg.Upstream.Endpoint)

	// Wait for the upstream before serving; this is the only retry loop in
	// the gateway.
	if err := remote.WaitReady(ctx, cfg.Upstream.Endpoint, cfg.Upstream.GetReadinessTimeout()); err != nil {
		return err
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}

	appOpts := []app.GatewayAppOptions{
		app.WithConfig(cfg),
		app.WithMeterProvider(meterProvider),
	}
	if address := viper.GetString("address"); address != "" {
		appOpts = append(appOpts, app.WithAddress(address))
	}

	gateway, err := app.NewGatewayApp(ctx, appOpts...)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- gateway.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	}

	return gateway.Stop(cfg.GetShutdownTimeout())
}
