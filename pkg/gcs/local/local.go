package local

import (
	"context"
	"sync"

	"github.com/galerago/galera/pkg/gcs"
)

// Provider is a single-process loopback implementation of gcs.Client. It
// assigns seqnos from one monotonic counter shared by both global and
// local numbering, since a single-node deployment never has a second
// member to diverge from.
type Provider struct {
	mu          sync.Mutex
	cond        *sync.Cond
	nextSeqno   int64
	queue       []gcs.Action
	closed      bool
	paused      bool
	lastApplied int64
	joined      bool
}

// New creates a loopback provider with seqno numbering starting at 0.
func New() *Provider {
	p := &Provider{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

var _ gcs.Client = (*Provider)(nil)

func (p *Provider) enqueueLocked(typ gcs.ActionType, payload []byte, global int64) gcs.Action {
	local := p.nextSeqno
	p.nextSeqno++
	a := gcs.Action{Type: typ, Payload: payload, SeqnoGlobal: global, SeqnoLocal: local}
	p.queue = append(p.queue, a)
	p.cond.Broadcast()
	return a
}

// Repl assigns the payload the next seqno (used for both global and local
// numbering) and delivers it to the same process's Recv loop.
func (p *Provider) Repl(ctx context.Context, payload []byte) (int64, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, 0, gcs.ErrClosed
	}
	global := p.nextSeqno
	a := p.enqueueLocked(gcs.ActionData, payload, global)
	return a.SeqnoGlobal, a.SeqnoLocal, nil
}

// Send enqueues payload as a CONF action without a meaningful global seqno.
func (p *Provider) Send(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gcs.ErrClosed
	}
	p.enqueueLocked(gcs.ActionConf, payload, gcs.SeqnoUndefined)
	return nil
}

// Recv blocks until an action is queued or the provider is closed.
func (p *Provider) Recv(ctx context.Context) (gcs.Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return gcs.Action{}, err
			}
		}
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return gcs.Action{}, gcs.ErrClosed
	}
	a := p.queue[0]
	p.queue = p.queue[1:]
	return a, nil
}

// SetLastApplied records the locally-reported safe-to-discard seqno.
func (p *Provider) SetLastApplied(seqno int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastApplied = seqno
	return nil
}

// LastApplied returns the most recent value SetLastApplied recorded,
// exposed for tests.
func (p *Provider) LastApplied() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastApplied
}

// Join marks this node as having state and accepting flow-control
// accounting; a single-node loopback is trivially always primary.
func (p *Provider) Join() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = true
	p.paused = false
	return nil
}

// Paused reports the current flow-control state.
func (p *Provider) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// SetPaused lets tests (and a future flow-control policy) toggle the
// provider's paused state.
func (p *Provider) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
	p.cond.Broadcast()
}

// Close unblocks any Recv callers with gcs.ErrClosed and refuses further
// Repl/Send calls.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}
