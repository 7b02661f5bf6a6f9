package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/galerago/galera/pkg/config"
	"github.com/galerago/galera/pkg/galera"
	"github.com/galerago/galera/pkg/gcs"
	"github.com/galerago/galera/pkg/gcs/local"
	"github.com/galerago/galera/pkg/gcstransport"
	"github.com/galerago/galera/pkg/log"
	"github.com/galerago/galera/pkg/metrics"
	"github.com/galerago/galera/pkg/wsdbstore"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run or inspect a replication node",
}

func init() {
	nodeStartCmd.Flags().String("listen", "", "Address to serve this node's GCS broker on (empty: do not serve)")
	nodeStartCmd.Flags().String("peer", "", "Address of an existing node's GCS broker to join (empty: bootstrap a new group)")
	nodeStartCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the /metrics, /health, /ready, /live HTTP endpoints")

	nodeStatusCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address of a running node's health endpoint")

	nodeCmd.AddCommand(nodeStartCmd)
	nodeCmd.AddCommand(nodeStatusCmd)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// dialGCS builds the gcs.Client this node will drive its coordinator
// with: a loopback provider with no peer/listen flags, a client dialed
// against an existing peer's broker, or (when --listen is set with no
// --peer) a freshly-served broker this node also dials into, so the
// bootstrapping node observes its own actions through the exact same
// transport every later joiner will use.
func dialGCS(ctx context.Context, listenAddr, peerAddr string) (gcs.Client, func(), error) {
	if listenAddr == "" && peerAddr == "" {
		provider := local.New()
		return provider, func() { _ = provider.Close() }, nil
	}

	var dialTarget string
	var grpcServer *grpc.Server

	if listenAddr != "" {
		lis, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
		}
		broker := gcstransport.NewBroker()
		grpcServer = grpc.NewServer()
		gcstransport.RegisterGCSServer(grpcServer, broker)
		go func() { _ = grpcServer.Serve(lis) }()
		dialTarget = listenAddr
		log.WithComponent("galera").Info().Str("addr", listenAddr).Msg("gcs broker listening")
	}
	if peerAddr != "" {
		dialTarget = peerAddr
	}

	client, err := gcstransport.Dial(ctx, dialTarget,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		if grpcServer != nil {
			grpcServer.Stop()
		}
		return nil, nil, err
	}

	cleanup := func() {
		_ = client.Close()
		if grpcServer != nil {
			grpcServer.Stop()
		}
	}
	return client, cleanup, nil
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a replication node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		listenAddr, _ := cmd.Flags().GetString("listen")
		peerAddr, _ := cmd.Flags().GetString("peer")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, cleanupGCS, err := dialGCS(ctx, listenAddr, peerAddr)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to establish gcs transport: %w", err)
		}
		defer cleanupGCS()

		coord := galera.New(cfg.GaleraConfig(), client, nil)

		var store *wsdbstore.Store
		if cfg.WSPersistency {
			store, err = wsdbstore.Open(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("failed to open wsdbstore: %w", err)
			}
			defer store.Close()

			coord.SetPersistHooks(galera.PersistHooks{
				OnAppend: func(seqno int64, encoded []byte) {
					if err := store.PutWS(seqno, encoded); err != nil {
						log.WithComponent("wsdbstore").Warn().Err(err).Msg("persist write-set failed")
					}
				},
				OnCommit: func(seqno int64) {
					if err := store.SetLastCommitted(seqno); err != nil {
						log.WithComponent("wsdbstore").Warn().Err(err).Msg("persist last_committed failed")
					}
				},
				OnPurge: func(upTo int64) {
					if err := store.DeleteUpTo(upTo); err != nil {
						log.WithComponent("wsdbstore").Warn().Err(err).Msg("purge cert-log failed")
					}
					if err := store.SetPurgedUpTo(upTo); err != nil {
						log.WithComponent("wsdbstore").Warn().Err(err).Msg("persist purged_up_to failed")
					}
				},
			})
		}

		recvCtx, stopRecv := context.WithCancel(context.Background())
		defer stopRecv()
		go func() {
			if err := coord.RunReceiver(recvCtx); err != nil {
				log.WithComponent("galera").Warn().Err(err).Msg("receiver loop stopped")
			}
		}()

		collector := metrics.NewCollector(coord)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterCriticalComponent("gcs", true, "connected")
		metrics.RegisterCriticalComponent("coordinator", true, "running")

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		errCh := make(chan error, 1)
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()

		fmt.Printf("node running, last_committed=%d\n", coord.LastCommitted())
		fmt.Printf("metrics: http://%s/metrics  health: http://%s/health\n", metricsAddr, metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nshutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\n%v\n", err)
		}
		return nil
	},
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running node's health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		resp, err := http.Get(fmt.Sprintf("http://%s/health", metricsAddr))
		if err != nil {
			return fmt.Errorf("failed to reach node: %w", err)
		}
		defer resp.Body.Close()

		var status map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("failed to decode health response: %w", err)
		}

		encoded, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(encoded))
		return nil
	},
}
