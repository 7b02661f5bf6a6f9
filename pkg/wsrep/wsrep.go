package wsrep

import (
	"context"
	"errors"

	"github.com/galerago/galera/pkg/galera"
	"github.com/galerago/galera/pkg/wsdb"
)

// Status is one of the eight provider status codes (specification §4.8).
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusTrxMissing
	StatusTrxFail
	StatusBFAbort
	StatusConnFail
	StatusNodeFail
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusTrxMissing:
		return "trx-missing"
	case StatusTrxFail:
		return "trx-fail"
	case StatusBFAbort:
		return "bf-abort"
	case StatusConnFail:
		return "connection-fail"
	case StatusNodeFail:
		return "node-fail"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrInvalidArgument is returned by façade calls given out-of-range or
// nil arguments, before anything reaches the coordinator.
var ErrInvalidArgument = errors.New("wsrep: invalid argument")

// ApplyCallback executes a remote write-set's effects against the host
// store; StartWSCallback initializes the host's per-write-set apply
// context before Apply runs against the given global seqno; LogCallback
// receives diagnostic lines the core wants surfaced to the host's own
// logging.
type (
	ApplyCallback   func(ws *wsdb.WS) error
	StartWSCallback func(seqno int64) error
	LogCallback     func(level, msg string)
)

// Callbacks are the set a host registers via ConfigureCallbacks.
type Callbacks struct {
	Apply   ApplyCallback
	StartWS StartWSCallback
	Log     LogCallback
}

// Provider is the façade a host DBMS links against. It owns no replication
// state itself — it validates arguments and translates between the host's
// calling convention and *galera.Coordinator.
type Provider struct {
	coord     *galera.Coordinator
	callbacks Callbacks
}

// Load constructs the façade over an already-configured coordinator. The
// specification's load_provider(path) is a dynamic-library discovery step
// with no Go analogue worth emulating — callers construct the coordinator
// directly (see cmd/galera) and hand it to Load.
func Load(coord *galera.Coordinator) *Provider {
	return &Provider{coord: coord}
}

// ConfigureCallbacks stores the apply, start-ws, and log callbacks on the
// Provider. Apply and StartWS are both required; Log is optional. The
// stored callbacks are not invoked by the coordinator: remote apply uses
// the ApplyFunc the coordinator was constructed with.
func (p *Provider) ConfigureCallbacks(cb Callbacks) Status {
	if cb.Apply == nil || cb.StartWS == nil {
		return StatusWarning
	}
	p.callbacks = cb
	return StatusOK
}

// AppendQuery validates and forwards to the local trx store.
func (p *Provider) AppendQuery(trxID, connID uint64, sql []byte, ts int64, rndSeed uint32) Status {
	if len(sql) == 0 {
		return StatusWarning
	}
	if err := p.coord.TrxStore().AppendQuery(trxID, connID, sql, ts, rndSeed); err != nil {
		return StatusFatal
	}
	return StatusOK
}

// AppendRowKey validates the action and forwards to the local trx store.
func (p *Provider) AppendRowKey(trxID, connID uint64, key wsdb.WSKeyRecord, action wsdb.Action) Status {
	if !action.Valid() {
		return StatusWarning
	}
	if err := key.Validate(); err != nil {
		return StatusWarning
	}
	if err := p.coord.TrxStore().AppendRowKey(trxID, connID, key, action); err != nil {
		return StatusFatal
	}
	return StatusOK
}

// AppendRow forwards an optional row payload to the most recently appended
// key on trxID.
func (p *Provider) AppendRow(trxID uint64, payload []byte) Status {
	if err := p.coord.TrxStore().AppendRow(trxID, payload); err != nil {
		return StatusWarning
	}
	return StatusOK
}

// SetVariable and SetDatabase both record connection-context SQL that must
// precede slave apply of the connection's next write-set.
func (p *Provider) SetVariable(connID uint64, name string, sqlSetter []byte) Status {
	if name == "" {
		return StatusWarning
	}
	_ = p.coord.TrxStore().SetConnectionVariable(connID, name, sqlSetter)
	return StatusOK
}

func (p *Provider) SetDatabase(connID uint64, useSQL []byte) Status {
	return p.SetVariable(connID, "database", useSQL)
}

// ToExecuteStart/ToExecuteEnd bracket a totally-ordered action that isn't a
// regular data trx (e.g. DDL executed under total order isolation). They
// map directly onto to_queue grab/release.
func (p *Provider) ToExecuteStart(ctx context.Context, seqnoLocal int64) Status {
	if err := p.coord.ToQueueGrab(ctx, seqnoLocal); err != nil {
		return resultFromQueueErr(err)
	}
	return StatusOK
}

func (p *Provider) ToExecuteEnd(seqnoLocal int64) Status {
	if err := p.coord.ToQueueRelease(seqnoLocal); err != nil {
		return StatusFatal
	}
	return StatusOK
}

// PreCommit drives the local-commit path up to (and including) grabbing
// commit_queue, translating galera.Result into a wsrep Status.
func (p *Provider) PreCommit(ctx context.Context, trxID, connID uint64, rbrBytes []byte) Status {
	res, err := p.coord.BeginCommit(ctx, trxID, connID, rbrBytes)
	if err != nil {
		return resultFromCommitErr(err)
	}
	return resultFromResult(res)
}

// PostCommit finishes a local commit after the host DBMS has durably
// committed.
func (p *Provider) PostCommit(trxID uint64) Status {
	if err := p.coord.CommitComplete(trxID); err != nil {
		return StatusFatal
	}
	return StatusOK
}

// PostRollback is called when the host rolls back before replication was
// ever attempted; no queue interaction is needed (specification §4.6.1
// step 14).
func (p *Provider) PostRollback(trxID uint64) Status {
	_ = p.coord.TrxStore().DeleteTrx(trxID)
	return StatusOK
}

func resultFromResult(r galera.Result) Status {
	switch r {
	case galera.ResultOK:
		return StatusOK
	case galera.ResultTrxFail:
		return StatusTrxFail
	case galera.ResultConnFail:
		return StatusConnFail
	default:
		return StatusFatal
	}
}

func resultFromCommitErr(err error) Status {
	if errors.Is(err, galera.ErrFlowControlTimeout) {
		return StatusNodeFail
	}
	return StatusFatal
}

func resultFromQueueErr(err error) Status {
	if err == nil {
		return StatusOK
	}
	return StatusBFAbort
}
