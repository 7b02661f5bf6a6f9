package galera

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/galerago/galera/pkg/cert"
	"github.com/galerago/galera/pkg/gcs"
	"github.com/galerago/galera/pkg/jobqueue"
	"github.com/galerago/galera/pkg/log"
	"github.com/galerago/galera/pkg/queue"
	"github.com/galerago/galera/pkg/trxstore"
	"github.com/galerago/galera/pkg/wsdb"
)

// Result is the outcome of the local-commit path.
type Result int

const (
	ResultOK Result = iota
	ResultTrxFail
	ResultConnFail
	ResultFatal
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultTrxFail:
		return "trx-fail"
	case ResultConnFail:
		return "connection-fail"
	case ResultFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrFlowControlTimeout is returned when the local-commit path exhausts its
// flow-control retry budget while GCS remains paused.
var ErrFlowControlTimeout = errors.New("galera: exceeded flow control retry budget")

// ApplyFunc executes a decoded write-set's effects against the host store:
// connection-context statements, then row/column/RBR data, then commit.
// The coordinator does not implement a storage engine itself — this hook is
// where one plugs in.
type ApplyFunc func(ws *wsdb.WS) error

type jobCtx struct {
	seqno int64
	ws    *wsdb.WS
}

// Coordinator is the replication core: it owns the local trx store, the
// certification index, the two ordered delivery queues, the parallel
// applier job queue, and drives both the local-commit and remote-apply
// paths against a gcs.Client.
type Coordinator struct {
	cfg Config
	gcs gcs.Client

	trxs  *trxstore.Store
	certs *cert.Index

	toQueue     *queue.Queue
	commitQueue *queue.Queue

	jobs        *jobqueue.JobQueue[jobCtx]
	idleWorkers chan jobqueue.WorkerID

	lastCommitted atomic.Int64

	reportMu      chan struct{} // 1-buffered mutex substitute guarding reportCounter
	reportCounter int

	apply ApplyFunc

	persist PersistHooks

	logger log.Config
}

// PersistHooks lets a host process durably record certification state
// (pkg/wsdbstore, when Config.WSPersistency is set) without the
// coordinator depending on a storage engine directly. Any nil hook is
// skipped.
type PersistHooks struct {
	// OnAppend fires once a write-set has certified and been appended to
	// the active-seqno list, carrying the already-encoded WS bytes.
	OnAppend func(seqno int64, encoded []byte)
	// OnCommit fires whenever last_committed_trx advances.
	OnCommit func(seqno int64)
	// OnPurge fires after the certification index purges up to a seqno.
	OnPurge func(upTo int64)
}

// SetPersistHooks wires durable persistence callbacks into the
// coordinator; pass a zero PersistHooks to disable persistence.
func (c *Coordinator) SetPersistHooks(h PersistHooks) {
	c.persist = h
}

// New creates a coordinator. apply may be nil, in which case applied
// write-sets are only certified and ordered, never executed against a host
// store (useful for certification-only benchmarking).
func New(cfg Config, client gcs.Client, apply ApplyFunc) *Coordinator {
	if apply == nil {
		apply = func(*wsdb.WS) error { return nil }
	}

	c := &Coordinator{
		cfg:         cfg,
		gcs:         client,
		trxs:        trxstore.New(cfg.LocalCacheSize),
		certs:       cert.New(),
		toQueue:     queue.New(0, cfg.ToQueueCapacity),
		commitQueue: queue.New(0, cfg.CommitQueueCapacity),
		apply:       apply,
		reportMu:    make(chan struct{}, 1),
	}
	c.reportMu <- struct{}{}
	c.lastCommitted.Store(wsdb.SeqnoUndefined)

	conflict := func(a, b jobCtx) bool {
		return cert.Conflicts(a.ws, a.seqno, b.ws, b.seqno)
	}
	c.jobs = jobqueue.New(cfg.MaxWorkers, conflict)
	c.idleWorkers = make(chan jobqueue.WorkerID, cfg.MaxWorkers)
	for i := 0; i < cfg.MaxWorkers; i++ {
		id, err := c.jobs.SpawnWorker()
		if err != nil {
			panic("galera: failed to pre-spawn applier worker: " + err.Error())
		}
		c.idleWorkers <- id
	}

	return c
}

// LastCommitted returns the process-wide last_committed_trx counter.
func (c *Coordinator) LastCommitted() int64 {
	return c.lastCommitted.Load()
}

func (c *Coordinator) publishLastCommitted(global int64) {
	for {
		cur := c.lastCommitted.Load()
		if global <= cur {
			return
		}
		if c.lastCommitted.CompareAndSwap(cur, global) {
			if c.persist.OnCommit != nil {
				c.persist.OnCommit(global)
			}
			return
		}
	}
}

// safeToDiscard computes the minimum of last_committed_trx and the oldest
// last_seen_trx currently referenced by an in-flight write-set
// (specification §4.6.3).
func (c *Coordinator) safeToDiscard() int64 {
	safe := c.lastCommitted.Load()
	if oldest, found := c.trxs.OldestReferencedLastSeen(); found && oldest < safe {
		safe = oldest
	}
	return safe
}

// reportIfDue increments the report-interval counter and, when it wraps,
// reports the safe-to-discard seqno to the group.
func (c *Coordinator) reportIfDue() {
	<-c.reportMu
	c.reportCounter++
	due := c.cfg.ReportInterval > 0 && c.reportCounter >= c.cfg.ReportInterval
	if due {
		c.reportCounter = 0
	}
	c.reportMu <- struct{}{}

	if due {
		if err := c.gcs.SetLastApplied(c.safeToDiscard()); err != nil {
			log.WithComponent("galera").Warn().Err(err).Msg("set_last_applied failed")
		}
	}
}

// waitForFlowControl blocks while the provider reports flow control
// engaged, up to the configured retry budget.
func (c *Coordinator) waitForFlowControl(ctx context.Context) error {
	for i := 0; i < c.cfg.FlowControlRetries; i++ {
		if !c.gcs.Paused() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.FlowControlDelay):
		}
	}
	if c.gcs.Paused() {
		return ErrFlowControlTimeout
	}
	return nil
}

// TrxStore exposes the local transaction store so callers can feed it via
// AppendQuery/AppendRowKey/AppendRow/SetConnectionVariable before driving
// BeginCommit.
func (c *Coordinator) TrxStore() *trxstore.Store { return c.trxs }

// CertIndex exposes the certification index, mainly for metrics.
func (c *Coordinator) CertIndex() *cert.Index { return c.certs }

// ToQueueHead and CommitQueueHead expose queue head positions for metrics.
func (c *Coordinator) ToQueueHead() int64     { return c.toQueue.Head() }
func (c *Coordinator) CommitQueueHead() int64 { return c.commitQueue.Head() }

// ToQueueGrab and ToQueueRelease expose to_queue directly for total-order
// isolation actions (e.g. DDL) that bracket their own critical section
// without going through the local-commit or remote-apply paths.
func (c *Coordinator) ToQueueGrab(ctx context.Context, seqnoLocal int64) error {
	return c.toQueue.Grab(ctx, seqnoLocal)
}

func (c *Coordinator) ToQueueRelease(seqnoLocal int64) error {
	return c.toQueue.Release(seqnoLocal)
}
