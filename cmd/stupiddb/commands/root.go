// Package commands wires the stupiddb CLI command tree.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	debugFlag  bool
	dataDir    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "stupiddb",
	Short: "Event-analytics platform: segment store, graph, compute fabric, event bus",
	Long: `stupiddb - event analytics over day-partitioned segments.

Telemetry documents land in compressed segments, project into a property
graph, and feed a priority-scheduled compute fabric whose results drive
rule-based anomaly detection on the eisenbahn event bus.

Workers cooperate over the bus:

  stupiddb broker            # central PUB/SUB proxy
  stupiddb ingest-worker     # pipeline: records -> segments -> graph
  stupiddb compute-worker    # scheduler: pagerank, communities, anomalies

Topology comes from eisenbahn.toml (EISENBAHN_* env vars override).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if debugFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "data directory root")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "eisenbahn.toml", "eisenbahn topology config")

	rootCmd.AddCommand(
		brokerCmd,
		ingestWorkerCmd,
		computeWorkerCmd,
		segmentCmd,
		catalogCmd,
		versionCmd,
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
