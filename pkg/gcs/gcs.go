package gcs

import (
	"context"
	"errors"

	"github.com/galerago/galera/pkg/wsdb"
)

// ErrClosed is returned by Recv once the provider has been closed and no
// further actions will ever be delivered.
var ErrClosed = errors.New("gcs: provider closed")

// ActionType distinguishes the four kinds of action recv() can dequeue
// (specification §4.7).
type ActionType int

const (
	ActionData ActionType = iota
	ActionCommitCut
	ActionConf
	ActionSnapshot
)

func (t ActionType) String() string {
	switch t {
	case ActionData:
		return "DATA"
	case ActionCommitCut:
		return "COMMIT_CUT"
	case ActionConf:
		return "CONF"
	case ActionSnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// Action is one delivered unit from the channel.
type Action struct {
	Type        ActionType
	Payload     []byte
	SeqnoGlobal int64 // wsdb.SeqnoUndefined for some non-data actions
	SeqnoLocal  int64 // contiguous across every action kind
}

// Client is the contract the replication coordinator needs from a group
// communication provider.
type Client interface {
	// Repl atomically broadcasts payload and returns once this process has
	// observed its own delivery, yielding both seqnos.
	Repl(ctx context.Context, payload []byte) (seqnoGlobal, seqnoLocal int64, err error)

	// Send broadcasts payload without waiting for delivery; used for small
	// signalling actions.
	Send(ctx context.Context, payload []byte) error

	// Recv blocks until the next action is available for delivery.
	Recv(ctx context.Context) (Action, error)

	// SetLastApplied informs peers of the locally-safe-to-discard seqno.
	SetLastApplied(seqno int64) error

	// Join tells the group this node has state and accepts flow-control
	// accounting.
	Join() error

	// Paused reports whether the provider currently has flow control
	// engaged; the local-commit path backs off and retries while true.
	Paused() bool

	Close() error
}

// SeqnoUndefined re-exports wsdb.SeqnoUndefined for actions that do not
// carry a meaningful global seqno (most CONF and some SNAPSHOT actions).
const SeqnoUndefined = wsdb.SeqnoUndefined
