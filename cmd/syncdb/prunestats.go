package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneStatsCmd = &cobra.Command{
	Use:   "prune-stats",
	Short: "Print the tracked-query LRU state",
	RunE:  runPruneStats,
}

func runPruneStats(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	eng, err := openEngine(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer eng.Close()

	stats := eng.mgr.Stats()

	fmt.Printf("Server cache size:  %d bytes\n", stats.CacheSizeBytes)
	fmt.Printf("Tracked queries:\n")
	fmt.Printf("  active:    %d\n", stats.ActiveQueries)
	fmt.Printf("  inactive:  %d\n", stats.InactiveQueries)
	fmt.Printf("Prune cycles run:    %d\n", stats.PruneCycles)
	fmt.Printf("Queries pruned:      %d\n", stats.PrunedQueries)
	return nil
}
