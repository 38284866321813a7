package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendera/backoffice-gateway/internal/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate a configuration file",
	Long: `Load and validate a gateway configuration file without starting the server.
Exits non-zero when the configuration is invalid.`,
	RunE: runCheckConfig,
}

func init() {
	checkConfigCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := checkConfigCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	graph, err := cfg.BuildGraph()
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("Configuration OK: upstream=%s address=%s resources=%d\n",
		cfg.Upstream.Endpoint, cfg.GetAddress(), len(graph.Keys()))
	return nil
}
