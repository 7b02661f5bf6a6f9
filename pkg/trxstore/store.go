package trxstore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/galerago/galera/pkg/wsdb"
)

// SeqnoAborted is the sentinel seqno_global value recorded on a local trx
// descriptor that lost a BF-abort race before or during replication.
const SeqnoAborted int64 = -2

// State is the local trx descriptor's lifecycle stage (specification §4.6.3).
type State int

const (
	StateBuilding State = iota
	StateReplicating
	StateReplicated
	StateCommitted
	StateAborted
	StateMissing
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "BUILDING"
	case StateReplicating:
		return "REPLICATING"
	case StateReplicated:
		return "REPLICATED"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	case StateMissing:
		return "MISSING"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is one of the descriptor's terminal states.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted || s == StateMissing
}

var (
	ErrUnknownTrx  = errors.New("trxstore: unknown local trx id")
	ErrBadAction   = errors.New("trxstore: row key action must be insert, update or delete")
	ErrNoWSBuilt   = errors.New("trxstore: build_write_set has not been called for this trx")
	ErrWSInFlight  = errors.New("trxstore: a write-set is already in flight for this trx")
	ErrNoPendingRow = errors.New("trxstore: append_row with no preceding append_row_key")
)

// pendingItem accumulates one row-level effect as append_row_key and the
// optional follow-on append_row are called.
type pendingItem struct {
	item wsdb.WSItem
}

// descriptor is one connection's open (or in-flight) local transaction.
type descriptor struct {
	trxID  uint64
	connID uint64

	state State

	seqnoLocal  int64
	seqnoGlobal int64
	lastSeenTrx int64

	lastSeenRefHeld bool

	level   wsdb.Level
	queries []wsdb.QueryRecord
	items   []pendingItem
	rbrBuf  []byte

	wsBuilt bool

	// bufBytes is the byte cost of queries/items/rbrBuf currently held in
	// memory (not yet spilled), counted against Store.used.
	bufBytes int64
	// spillPath is non-empty once this trx's pre-spill queries/items have
	// been written to disk; spilled content is gob-encoded and merged back
	// in at BuildWriteSet time.
	spillPath string
}

// connState is per-connection context queued by SetConnectionVariable and
// drained into the next write-set built for any trx on that connection.
type connState struct {
	pending []wsdb.QueryRecord
}

// LastSeenProvider supplies the value to stamp into a newly built write-set's
// last_seen_trx field: the committer's view of the highest globally
// committed seqno at assembly time.
type LastSeenProvider func() int64

// Store is the local transaction store, guarded by a single mutex per the
// specification's concurrency model (§5: "Local-trx store and connection
// store: one mutex each; operations are O(1) amortised"). It models the
// source's intrusive block-chained, cache-swap-to-disk buffer as an
// append-only arena keyed by trx id with an explicit byte-capacity spill
// threshold: once an append pushes the store's total buffered bytes over
// capacity, that trx's accumulated queries/items spill to a temp file and
// are merged back in at BuildWriteSet time.
type Store struct {
	mu    sync.Mutex
	trxs  map[uint64]*descriptor
	conns map[uint64]*connState

	lastSeenRefs map[int64]int

	// capacity bounds the store's total in-memory buffered bytes; 0 means
	// unbounded (no spill).
	capacity int64
	used     int64
}

// New creates an empty local transaction store. capacity bounds the total
// bytes of query/row payload held in memory across all open trxs; the trx
// whose append pushes the total over capacity spills to disk, and a trx
// that has already spilled does not spill again. 0 (or negative) disables
// spilling.
func New(capacity int64) *Store {
	return &Store{
		trxs:         make(map[uint64]*descriptor),
		conns:        make(map[uint64]*connState),
		lastSeenRefs: make(map[int64]int),
		capacity:     capacity,
	}
}

func (s *Store) trx(trxID uint64, connID uint64, create bool) *descriptor {
	d, ok := s.trxs[trxID]
	if !ok {
		if !create {
			return nil
		}
		d = &descriptor{trxID: trxID, connID: connID, state: StateBuilding, seqnoLocal: wsdb.SeqnoUndefined, seqnoGlobal: wsdb.SeqnoUndefined}
		s.trxs[trxID] = d
	}
	return d
}

func (s *Store) conn(connID uint64) *connState {
	c, ok := s.conns[connID]
	if !ok {
		c = &connState{}
		s.conns[connID] = c
	}
	return c
}

// AppendQuery creates the trx on demand and appends one SQL statement to its
// query log.
func (s *Store) AppendQuery(trxID, connID uint64, sql []byte, ts int64, rndSeed uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, connID, true)
	d.queries = append(d.queries, wsdb.QueryRecord{Bytes: append([]byte(nil), sql...), Timestamp: ts, RandSeed: rndSeed})
	if d.level == wsdb.LevelRow {
		// mixed-mode trxs (query + row effects) stay at row level;
		// nothing to do here beyond recording — only AppendRowKey changes
		// the level, raising it to LevelRow.
	}
	return s.accountAndMaybeSpill(d, int64(len(sql)))
}

// AppendRowKey creates the trx on demand and opens a new pending item keyed
// by key, tagged with action. action must be insert, update or delete.
func (s *Store) AppendRowKey(trxID, connID uint64, key wsdb.WSKeyRecord, action wsdb.Action) error {
	if !action.Valid() {
		return ErrBadAction
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, connID, true)
	d.level = wsdb.LevelRow
	d.items = append(d.items, pendingItem{item: wsdb.WSItem{Action: action, Key: key}})
	return s.accountAndMaybeSpill(d, keyRecordSize(key))
}

// AppendRow attaches an optional row payload to the most recently opened
// item on trxID.
func (s *Store) AppendRow(trxID uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return ErrUnknownTrx
	}
	if len(d.items) == 0 {
		return ErrNoPendingRow
	}
	last := &d.items[len(d.items)-1]
	last.item.Row = append([]byte(nil), payload...)
	last.item.HasRow = true
	return s.accountAndMaybeSpill(d, int64(len(payload)))
}

// keyRecordSize estimates the byte cost of a key record for spill
// accounting purposes.
func keyRecordSize(key wsdb.WSKeyRecord) int64 {
	n := int64(len(key.DBTable))
	for _, p := range key.Key {
		n += int64(len(p.Data))
	}
	return n
}

// accountAndMaybeSpill charges addedBytes against the store's capacity and,
// if that pushes total usage over capacity, spills d's currently buffered
// queries/items/rbrBuf to a temp file to bring usage back down. d must
// already hold s.mu.
func (s *Store) accountAndMaybeSpill(d *descriptor, addedBytes int64) error {
	d.bufBytes += addedBytes
	s.used += addedBytes
	if s.capacity <= 0 || s.used <= s.capacity || d.spillPath != "" {
		return nil
	}
	return s.spillLocked(d)
}

// spillRecord is the gob-encoded payload written to a trx's spill file: the
// queries/items/rbrBuf accumulated before the spill threshold was crossed.
type spillRecord struct {
	Queries []wsdb.QueryRecord
	Items   []wsdb.WSItem
	RBRBuf  []byte
}

// spillLocked writes d's currently buffered queries/items/rbrBuf to a temp
// file and clears them from memory, reclaiming their byte cost from
// s.used. Later appends on d accumulate in memory again and are merged
// back with the spilled prefix at BuildWriteSet time. s.mu must be held.
func (s *Store) spillLocked(d *descriptor) error {
	items := make([]wsdb.WSItem, len(d.items))
	for i, p := range d.items {
		items[i] = p.item
	}
	rec := spillRecord{Queries: d.queries, Items: items, RBRBuf: d.rbrBuf}

	f, err := os.CreateTemp("", fmt.Sprintf("galera-trx-%d-*.spill", d.trxID))
	if err != nil {
		// Spilling is a capacity optimisation, not a correctness
		// requirement; keep buffering in memory rather than fail the
		// caller's append.
		return nil
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(rec); err != nil {
		os.Remove(f.Name())
		return nil
	}

	d.spillPath = f.Name()
	s.used -= d.bufBytes
	d.bufBytes = 0
	d.queries = nil
	d.items = nil
	d.rbrBuf = nil
	return nil
}

// loadSpilledLocked reads back d's spilled queries/items/rbrBuf, if any.
// s.mu must be held.
func loadSpilledLocked(d *descriptor) (spillRecord, error) {
	if d.spillPath == "" {
		return spillRecord{}, nil
	}
	f, err := os.Open(d.spillPath)
	if err != nil {
		return spillRecord{}, fmt.Errorf("trxstore: reopen spill file for trx %d: %w", d.trxID, err)
	}
	defer f.Close()

	var rec spillRecord
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return spillRecord{}, fmt.Errorf("trxstore: decode spill file for trx %d: %w", d.trxID, err)
	}
	return rec, nil
}

// removeSpillLocked deletes d's spill file, if any. s.mu must be held.
func removeSpillLocked(d *descriptor) {
	if d.spillPath == "" {
		return
	}
	os.Remove(d.spillPath)
	d.spillPath = ""
}

// SetConnectionVariable records SQL (USE db, SET VARIABLE=...) that must
// precede slave apply of this connection's next write-set.
func (s *Store) SetConnectionVariable(connID uint64, name string, sqlSetter []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conn(connID)
	c.pending = append(c.pending, wsdb.QueryRecord{Bytes: append([]byte(nil), sqlSetter...)})
	_ = name // name is informational only; the setter SQL is what's replayed
	return nil
}

// BuildWriteSet assembles trxID's accumulated state into a wsdb.WS, stamps
// last_seen_trx from lastSeen(), and increments that value's reference
// count so the certification index cannot purge past it while the
// write-set is in flight. Invariant: at most one write-set in flight per
// local trx id.
func (s *Store) BuildWriteSet(trxID, connID uint64, rbrBytes []byte, lastSeen LastSeenProvider) (*wsdb.WS, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.trx(trxID, connID, false)
	if d == nil {
		return nil, ErrUnknownTrx
	}
	if d.wsBuilt {
		return nil, ErrWSInFlight
	}

	spilled, err := loadSpilledLocked(d)
	if err != nil {
		return nil, err
	}
	queries := append(spilled.Queries, d.queries...)
	items := append(spilled.Items, func() []wsdb.WSItem {
		out := make([]wsdb.WSItem, len(d.items))
		for i, p := range d.items {
			out[i] = p.item
		}
		return out
	}()...)
	rbrBuf := d.rbrBuf
	if len(spilled.RBRBuf) > 0 {
		rbrBuf = spilled.RBRBuf
	}

	ws := &wsdb.WS{
		Type:       wsdb.WSTypeTrx,
		LocalTrxID: trxID,
		Queries:    queries,
	}

	c := s.conns[connID]
	if c != nil && len(c.pending) > 0 {
		ws.ConnQueries = c.pending
		c.pending = nil
	}

	if len(rbrBytes) > 0 {
		ws.Level = wsdb.LevelRBRBlob
		ws.RBRBuf = append([]byte(nil), rbrBytes...)
	} else if len(rbrBuf) > 0 {
		ws.Level = wsdb.LevelRBRBlob
		ws.RBRBuf = rbrBuf
	} else {
		ws.Level = d.level
		ws.Items = items
	}

	d.lastSeenTrx = lastSeen()
	ws.LastSeenTrx = d.lastSeenTrx

	s.lastSeenRefs[d.lastSeenTrx]++
	d.lastSeenRefHeld = true
	d.wsBuilt = true
	d.state = StateReplicating

	return ws, nil
}

// ReleaseLastSeenRef decrements the reference count BuildWriteSet placed on
// trxID's last_seen_trx value. Safe to call more than once; only the first
// call after a successful build has effect. The coordinator calls this once
// certification has resolved the write-set (success or failure).
func (s *Store) ReleaseLastSeenRef(trxID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.trxs[trxID]
	if !ok || !d.lastSeenRefHeld {
		return
	}
	d.lastSeenRefHeld = false
	if n := s.lastSeenRefs[d.lastSeenTrx]; n <= 1 {
		delete(s.lastSeenRefs, d.lastSeenTrx)
	} else {
		s.lastSeenRefs[d.lastSeenTrx] = n - 1
	}
}

// OldestReferencedLastSeen returns the smallest last_seen_trx value
// currently referenced by any in-flight write-set, used by the coordinator
// to compute the safe-to-discard seqno (specification §4.6.3). The second
// return value is false if nothing is currently referenced.
func (s *Store) OldestReferencedLastSeen() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	min, found := int64(0), false
	for v := range s.lastSeenRefs {
		if !found || v < min {
			min, found = v, true
		}
	}
	return min, found
}

// AssignSeqnos records the (local, global) seqno pair on trxID's
// descriptor. Idempotent: assigning the same pair twice succeeds silently.
func (s *Store) AssignSeqnos(trxID uint64, local, global int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return ErrUnknownTrx
	}
	if d.seqnoLocal != wsdb.SeqnoUndefined && (d.seqnoLocal != local || d.seqnoGlobal != global) {
		return fmt.Errorf("trxstore: trx %d already assigned seqnos (%d,%d), got (%d,%d)",
			trxID, d.seqnoLocal, d.seqnoGlobal, local, global)
	}
	d.seqnoLocal = local
	d.seqnoGlobal = global
	d.state = StateReplicated
	return nil
}

// MarkAborted sets trxID's seqno_global to the aborted sentinel, recording
// that it lost a BF-abort race.
func (s *Store) MarkAborted(trxID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return ErrUnknownTrx
	}
	d.seqnoGlobal = SeqnoAborted
	d.state = StateAborted
	return nil
}

// SeqnoGlobal returns trxID's currently recorded global seqno and whether
// it equals the aborted sentinel.
func (s *Store) SeqnoGlobal(trxID uint64) (seqno int64, aborted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return 0, false, ErrUnknownTrx
	}
	return d.seqnoGlobal, d.seqnoGlobal == SeqnoAborted, nil
}

// Seqnos returns the (local, global) pair currently recorded for trxID.
func (s *Store) Seqnos(trxID uint64) (local, global int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return 0, 0, ErrUnknownTrx
	}
	return d.seqnoLocal, d.seqnoGlobal, nil
}

// SetState transitions trxID's descriptor to state.
func (s *Store) SetState(trxID uint64, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return ErrUnknownTrx
	}
	d.state = state
	return nil
}

// State returns trxID's current lifecycle state.
func (s *Store) State(trxID uint64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.trx(trxID, 0, false)
	if d == nil {
		return 0, ErrUnknownTrx
	}
	return d.state, nil
}

// DeleteTrx frees trxID's block chain and releases any last_seen_trx
// reference it still holds.
func (s *Store) DeleteTrx(trxID uint64) error {
	s.mu.Lock()
	d, ok := s.trxs[trxID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownTrx
	}
	if d.lastSeenRefHeld {
		d.lastSeenRefHeld = false
		if n := s.lastSeenRefs[d.lastSeenTrx]; n <= 1 {
			delete(s.lastSeenRefs, d.lastSeenTrx)
		} else {
			s.lastSeenRefs[d.lastSeenTrx] = n - 1
		}
	}
	s.used -= d.bufBytes
	removeSpillLocked(d)
	delete(s.trxs, trxID)
	s.mu.Unlock()
	return nil
}

// Exists reports whether trxID currently has a descriptor.
func (s *Store) Exists(trxID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trxs[trxID]
	return ok
}
