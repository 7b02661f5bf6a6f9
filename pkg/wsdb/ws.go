package wsdb

import "errors"

// ErrMalformed is the §7 "malformed-ws" error kind: decode failed on a
// length overflow, unknown action code, or an invariant violation. The
// caller still advances delivery queues via self-cancel so ordering is
// preserved; this error only says the payload could not be interpreted.
var ErrMalformed = errors.New("wsdb: malformed write-set")

// Action is the effect an item has on a row.
type Action uint8

const (
	ActionInsert Action = 1
	ActionUpdate Action = 2
	ActionDelete Action = 3
)

func (a Action) valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Valid reports whether a is one of the defined action codes (insert,
// update, delete).
func (a Action) Valid() bool {
	return a.valid()
}

// Level is the granularity at which a trx write-set records its effects.
type Level uint32

const (
	LevelQuery Level = iota
	LevelRow
	LevelColumn
	LevelRBRBlob
)

// ColumnRecord is one column value captured for an item recorded at
// LevelColumn granularity.
type ColumnRecord struct {
	Col   uint16
	DType uint8
	Data  []byte
}

// WSItem is one row-level effect of a transaction: an action plus the key
// identifying the row, and at most one of a column list or an opaque row
// blob (or neither, when only the key is recorded).
type WSItem struct {
	Action  Action
	Key     WSKeyRecord
	Columns []ColumnRecord // populated when level == LevelColumn
	Row     []byte         // populated when level == LevelRow and a payload was captured
	HasRow  bool           // distinguishes "Row present but empty" from "no row payload"
}

// QueryRecord is one SQL statement captured for replication, with enough
// state (timestamp, RNG seed) to reproduce non-deterministic functions
// during apply.
type QueryRecord struct {
	Bytes     []byte
	Timestamp int64
	RandSeed  uint32
}

// WSType distinguishes a transaction write-set from a connection write-set.
type WSType uint8

const (
	WSTypeTrx  WSType = 1
	WSTypeConn WSType = 2
)

// WS is one transaction's (or connection's) replicated write-set.
//
// Invariants (validated by Validate, not by the zero value):
//   - if Level == LevelRBRBlob, RBRBuf is non-empty; Queries/Items may be empty.
//   - otherwise at least one of Queries or Items is non-empty.
//   - LastSeenTrx >= 0.
type WS struct {
	Type WSType

	LocalTrxID  uint64
	LastSeenTrx int64 // the certification lower bound; committer's view of last_committed at build time

	Level Level

	ConnQueries []QueryRecord // connection-context statements (USE/SET) to apply before this WS
	Queries     []QueryRecord
	Items       []WSItem

	RBRBuf []byte
}

// Validate checks the write-set invariants described in the data model.
func (ws *WS) Validate() error {
	if ws.LastSeenTrx < 0 {
		return errors.New("wsdb: last_seen_trx must be >= 0")
	}
	if ws.Level == LevelRBRBlob {
		if len(ws.RBRBuf) == 0 {
			return errors.New("wsdb: RBR-blob write-set requires rbr_buf_len > 0")
		}
	} else if len(ws.Queries) == 0 && len(ws.Items) == 0 {
		return errors.New("wsdb: write-set has neither queries nor items")
	}
	for _, item := range ws.Items {
		if !item.Action.valid() {
			return ErrMalformed
		}
		if err := item.Key.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the write-set carries no replicable effect at all —
// the local-commit path (§4.6.1 step 3) deletes the trx and returns OK
// without ever calling repl() in this case.
func (ws *WS) Empty() bool {
	return len(ws.Queries) == 0 && len(ws.Items) == 0 && len(ws.RBRBuf) == 0
}
