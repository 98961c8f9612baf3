package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arenasql/arenasql/pkg/kv"
	"github.com/arenasql/arenasql/pkg/kv/pebblekv"
	"github.com/arenasql/arenasql/pkg/log"
	"github.com/arenasql/arenasql/pkg/manifest"
	"github.com/arenasql/arenasql/pkg/metrics"
	"github.com/arenasql/arenasql/pkg/session"
	"github.com/arenasql/arenasql/pkg/session/wire"
)

// serveCmd starts the wire-protocol listener, serves connections until
// SIGINT/SIGTERM, then drains in-flight transactions and shuts down
// (spec.md §6.5). Exit code 0 on a clean drain, 1 on bind or config error.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ArenaSQL wire-protocol server",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		m, err := manifest.Load(configPath)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}

		cluster := session.NewCluster(m, func(catalogName string) (kv.Store, error) {
			dir := filepath.Join(m.CatalogsDir, catalogName)
			return pebblekv.Open(dir, pebblekv.DefaultConfig())
		})

		addr := fmt.Sprintf("%s:%d", host, port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("serve: binding %s: %w", addr, err)
		}

		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", true, "ready")
		metrics.RegisterComponent("catalog", true, "ready")
		metrics.RegisterComponent("wire", true, "listening")

		collector := metrics.NewCollector(cluster)
		collector.Start()
		defer collector.Stop()

		go serveMetricsHTTP(metricsAddr)

		log.WithComponent("cmd").Info().
			Str("addr", addr).
			Str("metrics_addr", metricsAddr).
			Msg("arenasql-cluster listening")
		fmt.Printf("ArenaSQL listening on %s (metrics: http://%s/metrics)\n", addr, metricsAddr)

		connCh := make(chan net.Conn)
		acceptErrCh := make(chan error, 1)
		go acceptLoop(listener, connCh, acceptErrCh)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case conn := <-connCh:
				go serveConn(cluster, conn)

			case err := <-acceptErrCh:
				log.WithComponent("cmd").Warn().Err(err).Msg("listener accept failed")

			case <-sigCh:
				fmt.Println("\nShutting down...")
				_ = listener.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := cluster.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				fmt.Println("Shutdown complete")
				return nil
			}
		}
	},
}

func acceptLoop(listener net.Listener, connCh chan<- net.Conn, errCh chan<- error) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}
}

func serveMetricsHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithComponent("cmd").Warn().Err(err).Msg("metrics server stopped")
	}
}

// serveConn drives one client connection through the handshake and then
// the simple-query loop until the client disconnects or errors out.
func serveConn(cluster *session.Cluster, conn net.Conn) {
	defer conn.Close()
	ctx := context.Background()

	result, err := wire.PerformHandshake(ctx, conn, cluster)
	if err != nil {
		log.WithComponent("cmd").Warn().Err(err).Msg("handshake failed")
		return
	}
	defer cluster.CloseSession(result.SessionID)

	sessionCtx, ok := cluster.Session(result.SessionID)
	if !ok {
		log.WithComponent("cmd").Warn().Str("session", result.SessionID).
			Msg("session vanished immediately after handshake")
		return
	}

	executor := session.NewExecutor(sessionCtx, nil, nil)
	if err := wire.RunSimpleQueryLoop(ctx, conn, executor); err != nil {
		log.WithSession(result.SessionID).Debug().Err(err).Msg("connection closed")
	}

	if t := sessionCtx.CurrentTransaction(); t != nil {
		_ = t.Rollback()
		sessionCtx.EndTransaction()
	}
}
