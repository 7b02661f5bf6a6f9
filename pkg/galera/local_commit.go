package galera

import (
	"context"
	"errors"

	"github.com/galerago/galera/pkg/cert"
	"github.com/galerago/galera/pkg/log"
	"github.com/galerago/galera/pkg/queue"
	"github.com/galerago/galera/pkg/trxstore"
	"github.com/galerago/galera/pkg/wsdb"
)

// BeginCommit drives the local-commit path (specification §4.6.1) through
// certification and installation, leaving commit_queue held on success so
// the caller can perform the host DBMS commit before calling
// CommitComplete. An unknown trx or an empty write-set also returns
// ResultOK, without replicating or grabbing any queue. ResultTrxFail and
// ResultConnFail mean the trx descriptor has already been deleted and no
// further queue interaction is needed; ResultFatal returns without deleting
// the descriptor.
func (c *Coordinator) BeginCommit(ctx context.Context, trxID, connID uint64, rbrBytes []byte) (Result, error) {
	logger := log.WithTrxID(trxID)

	if err := c.waitForFlowControl(ctx); err != nil {
		return ResultFatal, err
	}

	if _, aborted, err := c.trxs.SeqnoGlobal(trxID); err == nil && aborted {
		c.trxs.DeleteTrx(trxID)
		return ResultTrxFail, nil
	}

	ws, err := c.trxs.BuildWriteSet(trxID, connID, rbrBytes, c.LastCommitted)
	if err != nil {
		if errors.Is(err, trxstore.ErrUnknownTrx) {
			return ResultOK, nil
		}
		return ResultFatal, err
	}
	if ws.Empty() {
		c.trxs.DeleteTrx(trxID)
		return ResultOK, nil
	}

	encoded := wsdb.Encode(ws)

	global, localSeq, err := c.gcs.Repl(ctx, encoded)
	if err != nil {
		c.trxs.ReleaseLastSeenRef(trxID)
		c.trxs.DeleteTrx(trxID)
		return ResultConnFail, err
	}

	if _, aborted, _ := c.trxs.SeqnoGlobal(trxID); aborted {
		c.toQueue.SelfCancel(localSeq)
		c.commitQueue.SelfCancel(localSeq)
		c.trxs.ReleaseLastSeenRef(trxID)
		c.trxs.DeleteTrx(trxID)
		return ResultTrxFail, nil
	}

	if err := c.trxs.AssignSeqnos(trxID, localSeq, global); err != nil {
		return ResultFatal, err
	}

	grabErr := c.toQueue.Grab(ctx, localSeq)
	if errors.Is(grabErr, queue.ErrCancelled) || errors.Is(grabErr, queue.ErrInterrupted) {
		c.commitQueue.SelfCancel(localSeq)
		c.trxs.ReleaseLastSeenRef(trxID)
		c.trxs.DeleteTrx(trxID)
		return ResultTrxFail, nil
	}
	if grabErr != nil {
		return ResultFatal, grabErr
	}

	certErr := c.certs.Test(ws, ws.LastSeenTrx, global, true)
	if certErr == nil {
		c.certs.Append(ws, global)
		if c.persist.OnAppend != nil {
			c.persist.OnAppend(global, encoded)
		}
	}
	c.trxs.ReleaseLastSeenRef(trxID)

	if certErr != nil {
		if !errors.Is(certErr, cert.ErrFail) {
			return ResultFatal, certErr
		}
		_ = c.toQueue.Release(localSeq)
		_ = c.commitQueue.SelfCancel(localSeq)
		c.trxs.DeleteTrx(trxID)
		return ResultTrxFail, nil
	}

	if err := c.toQueue.Release(localSeq); err != nil {
		return ResultFatal, err
	}

	if err := c.commitQueue.Grab(ctx, localSeq); err != nil {
		return ResultFatal, err
	}

	if c.cfg.MarkCommitEarly {
		c.publishLastCommitted(global)
	}

	logger.Debug().Int64("seqno_global", global).Int64("seqno_local", localSeq).Msg("commit_queue grabbed, ready for host commit")
	return ResultOK, nil
}

// CommitComplete finishes the local-commit path once the host DBMS has
// committed: it releases commit_queue, publishes last_committed, reports to
// the group when the report interval wraps, and frees the trx descriptor.
func (c *Coordinator) CommitComplete(trxID uint64) error {
	localSeq, global, err := c.trxs.Seqnos(trxID)
	if err != nil {
		return err
	}

	if err := c.commitQueue.Release(localSeq); err != nil {
		return err
	}
	c.publishLastCommitted(global)
	c.reportIfDue()

	return c.trxs.DeleteTrx(trxID)
}
