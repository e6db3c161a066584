package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" // profiling endpoints
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodetree/syncdb/pkg/metrics"
	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/synctree"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync core with a loopback backend and a metrics endpoint",
	Long: `serve starts the persistence manager, a SyncTree driven by an
in-process loopback backend standing in for a real server connection, and
exposes /metrics, /health, /ready, and /live over HTTP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP endpoint")
	serveCmd.Flags().Duration("loopback-delay", 50*time.Millisecond, "Delay before the loopback backend echoes a server push")
	serveCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	loopbackDelay, _ := cmd.Flags().GetDuration("loopback-delay")
	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")

	eng, err := openEngine(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	metrics.RegisterComponent("persistence", true, "ready")

	listener := synctree.NewLoopbackListenProvider(node.Empty, loopbackDelay)
	_ = synctree.New(eng.mgr, listener, 0)
	metrics.RegisterComponent("listener", true, "ready")

	metricsCollector := metrics.NewCollector(eng.mgr)
	metricsCollector.Start()
	fmt.Println("✓ Metrics collector started")

	metrics.SetVersion(Version)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if pprofEnabled {
			// net/http/pprof registers its handlers on http.DefaultServeMux.
			mux.Handle("/debug/pprof/", http.DefaultServeMux)
		}
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			fmt.Printf("Metrics server error: %v\n", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints:\n")
	fmt.Printf("  - Health check: http://%s/health\n", metricsAddr)
	fmt.Printf("  - Readiness:    http://%s/ready\n", metricsAddr)
	fmt.Printf("  - Liveness:     http://%s/live\n", metricsAddr)

	if pprofEnabled {
		fmt.Printf("✓ Profiling endpoints enabled at http://%s/debug/pprof/\n", metricsAddr)
	}

	fmt.Println()
	fmt.Println("syncdb is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	metricsCollector.Stop()
	if err := eng.Close(); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
