package gcstransport

import (
	"context"
	"sync"

	"github.com/galerago/galera/pkg/gcs"
)

// Broker is a GCSServer that serializes Repl/Send calls from every
// connected node into one append-only action log and streams that log
// out to each Recv caller from the beginning, the same total-order
// contract pkg/gcs/local.Provider gives a single process, generalized
// to multiple network-connected callers.
type Broker struct {
	mu         sync.Mutex
	cond       *sync.Cond
	nextGlobal int64
	log        []gcs.Action
	closed     bool
	paused     bool
}

// NewBroker creates an empty Broker with seqno numbering starting at 0.
func NewBroker() *Broker {
	b := &Broker{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

var _ GCSServer = (*Broker)(nil)

func (b *Broker) appendLocked(typ gcs.ActionType, payload []byte, global int64) gcs.Action {
	a := gcs.Action{Type: typ, Payload: payload, SeqnoGlobal: global, SeqnoLocal: int64(len(b.log))}
	b.log = append(b.log, a)
	b.cond.Broadcast()
	return a
}

// Repl appends payload as a DATA action under the next global seqno.
func (b *Broker) Repl(ctx context.Context, req *ReplRequest) (*ReplResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, gcs.ErrClosed
	}
	global := b.nextGlobal
	b.nextGlobal++
	a := b.appendLocked(gcs.ActionData, req.Payload, global)
	return &ReplResponse{SeqnoGlobal: a.SeqnoGlobal, SeqnoLocal: a.SeqnoLocal}, nil
}

// Send appends payload as a CONF action without a meaningful global seqno.
func (b *Broker) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, gcs.ErrClosed
	}
	b.appendLocked(gcs.ActionConf, req.Payload, gcs.SeqnoUndefined)
	return &SendResponse{}, nil
}

// SetLastApplied is acknowledged for protocol symmetry; the broker does
// not itself need a per-node watermark to serialize the action log.
func (b *Broker) SetLastApplied(ctx context.Context, req *LastAppliedRequest) (*LastAppliedResponse, error) {
	return &LastAppliedResponse{}, nil
}

// Join clears flow control, mirroring pkg/gcs/local.Provider.Join.
func (b *Broker) Join(ctx context.Context, req *JoinRequest) (*JoinResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
	return &JoinResponse{}, nil
}

// Paused reports the broker's current flow-control state.
func (b *Broker) Paused(ctx context.Context, req *PausedRequest) (*PausedResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &PausedResponse{Paused: b.paused}, nil
}

// SetPaused lets an operator (or a test) toggle flow control on the
// broker; real flow-control policy belongs to the coordinator, not the
// transport, so this is exposed as a plain method rather than an RPC.
func (b *Broker) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = paused
}

// Recv streams the action log to the caller starting at index 0 and
// blocks for new entries once caught up.
func (b *Broker) Recv(req *RecvRequest, stream GCS_RecvServer) error {
	idx := 0
	for {
		b.mu.Lock()
		for idx >= len(b.log) && !b.closed {
			b.cond.Wait()
		}
		if idx >= len(b.log) && b.closed {
			b.mu.Unlock()
			return gcs.ErrClosed
		}
		a := b.log[idx]
		idx++
		b.mu.Unlock()

		if err := stream.Send(&RecvResponse{
			Type:        int32(a.Type),
			Payload:     a.Payload,
			SeqnoGlobal: a.SeqnoGlobal,
			SeqnoLocal:  a.SeqnoLocal,
		}); err != nil {
			return err
		}

		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		default:
		}
	}
}

// Close unblocks every pending Recv stream and refuses further Repl/Send
// calls.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
	return nil
}
