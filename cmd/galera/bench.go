package main

import (
	"context"
	"fmt"
	"time"

	"github.com/galerago/galera/pkg/galera"
	"github.com/galerago/galera/pkg/gcs/local"
	"github.com/galerago/galera/pkg/wsdb"
	"github.com/spf13/cobra"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Throughput benchmarks against an in-process coordinator",
}

func init() {
	benchLocalCommitCmd.Flags().Int("count", 10000, "Number of single-row commits to drive through the local-commit path")
	benchLocalCommitCmd.Flags().Int("connections", 4, "Number of distinct simulated connections committing concurrently")

	benchCmd.AddCommand(benchLocalCommitCmd)
}

var benchLocalCommitCmd = &cobra.Command{
	Use:   "local-commit",
	Short: "Drive synthetic single-row write-sets through BeginCommit/CommitComplete",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		conns, _ := cmd.Flags().GetInt("connections")
		if conns < 1 {
			conns = 1
		}

		provider := local.New()
		defer provider.Close()

		cfg := galera.DefaultConfig()
		coord := galera.New(cfg, provider, nil)

		// BeginCommit resolves certification and both ordered queues
		// inline from the return value of gcs.Repl, so this benchmark
		// never needs to drain actions via RunReceiver; that loop is
		// for applying OTHER nodes' write-sets, and running it here
		// against the same coordinator's own loopback queue would
		// double-process every committed write-set.

		results := make(chan error, count)
		start := time.Now()

		perConn := count / conns
		remainder := count % conns
		trxID := uint64(0)

		for c := 0; c < conns; c++ {
			n := perConn
			if c == 0 {
				n += remainder
			}
			connID := uint64(c + 1)
			go func(connID uint64, n int, firstTrx uint64) {
				for i := 0; i < n; i++ {
					trxID := firstTrx + uint64(i)
					key := wsdb.WSKeyRecord{
						DBTable: "bench.t",
						Key:     wsdb.TableKey{{Type: wsdb.KeyPartInt, Data: []byte{byte(trxID), byte(trxID >> 8), byte(trxID >> 16)}}},
					}
					if err := coord.TrxStore().AppendRowKey(trxID, connID, key, wsdb.ActionInsert); err != nil {
						results <- err
						continue
					}
					res, err := coord.BeginCommit(context.Background(), trxID, connID, nil)
					if err != nil {
						results <- err
						continue
					}
					if res == galera.ResultOK {
						err = coord.CommitComplete(trxID)
					}
					results <- err
				}
			}(connID, n, trxID)
			trxID += uint64(n)
		}

		var failures int
		for i := 0; i < count; i++ {
			if err := <-results; err != nil {
				failures++
			}
		}

		elapsed := time.Since(start)
		fmt.Printf("committed %d write-sets (%d failures) in %s (%.0f commits/sec)\n",
			count-failures, failures, elapsed, float64(count)/elapsed.Seconds())
		fmt.Printf("last_committed=%d\n", coord.LastCommitted())
		return nil
	},
}
