package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run the central PUB/SUB event broker",
	Long: `Run the broker: an XSUB frontend for publishers proxied to an XPUB
backend for subscribers, with per-topic counters and an optional JSON
metrics endpoint.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		broker := eisenbahn.NewBroker(eisenbahn.BrokerOptions{
			Frontend:    cfg.BrokerFrontendTransport(),
			Backend:     cfg.BrokerBackendTransport(),
			MetricsPort: cfg.Broker.MetricsPort,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := broker.Run(ctx); err != nil {
			return err
		}
		slog.Info("broker exited cleanly")
		return nil
	},
}

// loadConfig reads the topology file, falling back to the local IPC
// defaults when it does not exist. Invalid files are fatal.
func loadConfig() (eisenbahn.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Info("no topology config, using local defaults", "path", configPath)
		return eisenbahn.LocalConfig(), nil
	}
	return eisenbahn.ConfigFromFile(configPath)
}

func contextWithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
