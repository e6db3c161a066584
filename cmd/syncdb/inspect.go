package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect PATH",
	Short: "Dump a path's persisted server cache as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

type inspectResult struct {
	Path             string      `json:"path"`
	FullyInitialized bool        `json:"fully_initialized"`
	Filtered         bool        `json:"filtered"`
	Value            interface{} `json:"value"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	eng, err := openEngine(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer eng.Close()

	path := pathkey.New(args[0])
	cache := eng.mgr.GetServerCache(query.New(path))

	result := inspectResult{
		Path:             path.String(),
		FullyInitialized: cache.FullyInitialized,
		Filtered:         cache.Filtered,
		Value:            cache.Node.Export(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
