package galera

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/galerago/galera/pkg/gcs"
	"github.com/galerago/galera/pkg/log"
	"github.com/galerago/galera/pkg/wsdb"
)

// RunReceiver runs the single receive thread forever: it dequeues delivered
// actions from GCS and dispatches each to certification and/or apply. It
// returns when Recv returns a non-nil error (typically gcs.ErrClosed or
// ctx's cancellation).
func (c *Coordinator) RunReceiver(ctx context.Context) error {
	for {
		action, err := c.gcs.Recv(ctx)
		if err != nil {
			return err
		}
		c.dispatch(ctx, action)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, action gcs.Action) {
	switch action.Type {
	case gcs.ActionData:
		c.handleDataAction(ctx, action)
	case gcs.ActionCommitCut:
		c.handleCommitCut(ctx, action)
	case gcs.ActionConf, gcs.ActionSnapshot:
		c.handleConfOrSnapshot(ctx, action)
	}
}

func (c *Coordinator) handleDataAction(ctx context.Context, action gcs.Action) {
	logger := log.WithSeqno(action.SeqnoGlobal, action.SeqnoLocal)

	if err := c.toQueue.Grab(ctx, action.SeqnoLocal); err != nil {
		logger.Warn().Err(err).Msg("to_queue grab failed for data action")
		return
	}

	ws, decodeErr := wsdb.Decode(action.Payload)
	if decodeErr != nil {
		logger.Warn().Err(decodeErr).Msg("write-set malformed, advancing via self-cancel")
		_ = c.toQueue.Release(action.SeqnoLocal)
		_ = c.commitQueue.SelfCancel(action.SeqnoLocal)
		return
	}

	certErr := c.certs.Test(ws, ws.LastSeenTrx, action.SeqnoGlobal, true)
	if certErr == nil {
		c.certs.Append(ws, action.SeqnoGlobal)
		if c.persist.OnAppend != nil {
			c.persist.OnAppend(action.SeqnoGlobal, action.Payload)
		}
	}
	_ = c.toQueue.Release(action.SeqnoLocal)

	if certErr != nil {
		_ = c.commitQueue.SelfCancel(action.SeqnoLocal)
		return
	}

	if ws.Type == wsdb.WSTypeConn {
		c.applySerialized(action, ws)
		return
	}

	go c.applyParallel(ctx, action, ws)
}

// applySerialized handles connection-context write-sets: applied in order,
// with no parallel apply and no commit retry.
func (c *Coordinator) applySerialized(action gcs.Action, ws *wsdb.WS) {
	logger := log.WithSeqno(action.SeqnoGlobal, action.SeqnoLocal)

	if err := c.commitQueue.Grab(context.Background(), action.SeqnoLocal); err != nil {
		logger.Warn().Err(err).Msg("commit_queue grab failed for connection write-set")
		return
	}
	if err := c.apply(ws); err != nil {
		logger.Error().Err(err).Msg("apply failed for connection write-set")
	}
	c.publishLastCommitted(action.SeqnoGlobal)
	_ = c.commitQueue.Release(action.SeqnoLocal)
	c.reportIfDue()
}

// applyParallel handles trx write-sets: scheduled onto the job queue so
// non-conflicting write-sets apply concurrently, but commit order always
// follows seqno order via commit_queue.
func (c *Coordinator) applyParallel(ctx context.Context, action gcs.Action, ws *wsdb.WS) {
	logger := log.WithSeqno(action.SeqnoGlobal, action.SeqnoLocal)

	var workerID = <-c.idleWorkers
	defer func() { c.idleWorkers <- workerID }()

	if err := c.jobs.StartJob(ctx, workerID, jobCtx{seqno: action.SeqnoGlobal, ws: ws}); err != nil {
		logger.Warn().Err(err).Msg("start_job failed")
		return
	}

	applyErr := c.apply(ws)
	if applyErr != nil {
		logger.Error().Err(applyErr).Msg("apply failed for trx write-set")
	}

	if err := c.commitQueue.Grab(ctx, action.SeqnoLocal); err != nil {
		logger.Warn().Err(err).Msg("commit_queue grab failed after apply")
		c.jobs.EndJob(workerID)
		return
	}
	c.jobs.EndJob(workerID)

	c.publishLastCommitted(action.SeqnoGlobal)
	_ = c.commitQueue.Release(action.SeqnoLocal)
	c.reportIfDue()
}

func (c *Coordinator) handleCommitCut(ctx context.Context, action gcs.Action) {
	if err := c.toQueue.Grab(ctx, action.SeqnoLocal); err != nil {
		return
	}
	if value, err := decodeCommitCut(action.Payload); err == nil {
		c.certs.PurgeUpTo(value)
		if c.persist.OnPurge != nil {
			c.persist.OnPurge(value)
		}
	}
	_ = c.toQueue.Release(action.SeqnoLocal)
	_ = c.commitQueue.SelfCancel(action.SeqnoLocal)
}

func (c *Coordinator) handleConfOrSnapshot(ctx context.Context, action gcs.Action) {
	if err := c.toQueue.Grab(ctx, action.SeqnoLocal); err != nil {
		return
	}
	_ = c.toQueue.Release(action.SeqnoLocal)
	_ = c.commitQueue.SelfCancel(action.SeqnoLocal)

	if isPrimaryConf(action.Payload) {
		if err := c.gcs.Join(); err != nil {
			log.WithComponent("galera").Warn().Err(err).Msg("join failed after primary configuration change")
		}
	}
}

// EncodeCommitCut and decodeCommitCut serialise the purge_up_to value
// carried by a COMMIT_CUT action: an 8-byte little-endian seqno.
func EncodeCommitCut(seqno int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(seqno))
	return buf
}

func decodeCommitCut(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, errors.New("galera: malformed commit-cut payload")
	}
	return int64(binary.LittleEndian.Uint64(payload)), nil
}

// isPrimaryConf reports whether a CONF action's payload marks the new
// configuration primary. The wire convention is a single non-zero byte.
func isPrimaryConf(payload []byte) bool {
	return len(payload) > 0 && payload[0] != 0
}
