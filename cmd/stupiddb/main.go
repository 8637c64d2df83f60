// Package main is the entry point for the unified stupiddb CLI.
//
// Usage:
//
//	stupiddb [flags] <command> [args]
//
// Commands:
//
//	broker          - Run the central PUB/SUB event broker
//	ingest-worker   - Run the ingest pipeline worker
//	compute-worker  - Run the compute scheduler worker
//	segment         - Segment store operations (stats, list, evict)
//	catalog         - Catalog operations (rebuild, show)
//	version         - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/stupid-db/stupid-db/cmd/stupiddb/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
