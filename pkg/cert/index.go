package cert

import (
	"errors"
	"sync"

	"github.com/galerago/galera/pkg/wsdb"
)

// ErrFail is returned by Test when the write-set conflicts with one
// committed inside the open (last_seen, assigned) certification window, or when
// last_seen falls below the purged bound and history to prove non-conflict
// is no longer available.
var ErrFail = errors.New("cert: certification failed")

// activeEntry is one node of the active-seqno list: the record of a
// successfully certified write-set's keys, kept alive until purged. It
// owns its key blob outright — it is never an alias into the WS that
// produced it, since that WS may be freed as soon as certification
// completes.
type activeEntry struct {
	seqno        int64
	keyBlob      []byte
	rowFPs       []string // row fingerprints this entry installed, for by-keys purge
	next, prev   *activeEntry
}

// Index is the certification index: a table-level hash, a row-level hash,
// and the active-seqno list linking every currently-live certified entry in
// ascending seqno order.
type Index struct {
	mu sync.Mutex

	tableHash map[string]int64
	rowHash   map[string]*activeEntry

	head, tail *activeEntry
	purgedUpTo int64
}

// New creates an empty certification index. purgedUpTo starts at
// wsdb.SeqnoUndefined (-1), not zero, so that the very first write-set ever
// certified — whose last_seen_trx is legitimately -1, meaning "nothing has
// committed yet" — is not rejected as if history had already been purged
// past it.
func New() *Index {
	return &Index{
		tableHash:  make(map[string]int64),
		rowHash:    make(map[string]*activeEntry),
		purgedUpTo: wsdb.SeqnoUndefined,
	}
}

// Test runs the certification test for ws, which claims last_seen as its
// lower bound and assigned as its candidate global seqno. saveKeys mirrors
// the caller's intent to install on success: a soft (table-level) conflict
// is tolerated (logged, loop continues) when saveKeys is true, and is a
// hard failure when it is false. A row-level conflict always fails.
func (idx *Index) Test(ws *wsdb.WS, lastSeen, assigned int64, saveKeys bool) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if lastSeen < idx.purgedUpTo {
		return ErrFail
	}

	for _, item := range ws.Items {
		tableKey := string(wsdb.TableFingerprint(item.Key))
		if s, ok := idx.tableHash[tableKey]; ok && lastSeen < s && s < assigned {
			if !saveKeys {
				return ErrFail
			}
			// soft conflict: tolerated, continue checking other items.
		}

		rowKey := string(wsdb.RowFingerprint(item.Key))
		if e, ok := idx.rowHash[rowKey]; ok && lastSeen < e.seqno && e.seqno < assigned {
			return ErrFail
		}
	}

	return nil
}

// Append installs ws's keys at the given assigned seqno: every item's
// dbtable is recorded in the table hash, every item's row fingerprint is
// recorded in the row hash (replacing whatever entry was there before), and
// a new active-seqno entry is linked at the tail owning a private copy of
// the write-set's key composition.
//
// Callers hold to_queue for assigned while calling Test then Append, so at
// most one goroutine tests/installs at a time; the index's own mutex exists
// to serialise purge and table-hash reads against that single writer.
func (idx *Index) Append(ws *wsdb.WS, assigned int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry := &activeEntry{
		seqno:   assigned,
		keyBlob: wsdb.ComputeKeyComposition(ws),
	}

	for _, item := range ws.Items {
		tableKey := string(wsdb.TableFingerprint(item.Key))
		idx.tableHash[tableKey] = assigned

		rowKey := string(wsdb.RowFingerprint(item.Key))
		idx.rowHash[rowKey] = entry
		entry.rowFPs = append(entry.rowFPs, rowKey)
	}

	idx.linkTail(entry)
}

func (idx *Index) linkTail(e *activeEntry) {
	if idx.tail == nil {
		idx.head, idx.tail = e, e
		return
	}
	e.prev = idx.tail
	idx.tail.next = e
	idx.tail = e
}

func (idx *Index) unlink(e *activeEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		idx.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		idx.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

// PurgeUpTo removes every active-seqno entry with seqno < t, and for each
// one removes its row-hash fingerprints, but only where the row-hash slot
// still points at that exact entry (a newer write-set may have overwritten
// it already). It dispatches to a per-entry "by-keys" strategy when every
// entry in range still carries its fingerprint list, and falls back to a
// single full scan of the row hash otherwise; both produce the same
// outcome.
func (idx *Index) PurgeUpTo(t int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if t > idx.purgedUpTo {
		idx.purgedUpTo = t
	}

	if idx.canPurgeByKeys(t) {
		idx.purgeByKeys(t)
		return
	}
	idx.purgeFullScan(t)
}

func (idx *Index) canPurgeByKeys(t int64) bool {
	for e := idx.head; e != nil && e.seqno < t; e = e.next {
		if e.rowFPs == nil {
			return false
		}
	}
	return true
}

func (idx *Index) purgeByKeys(t int64) {
	for e := idx.head; e != nil && e.seqno < t; {
		for _, fp := range e.rowFPs {
			if cur, ok := idx.rowHash[fp]; ok && cur == e {
				delete(idx.rowHash, fp)
			}
		}
		next := e.next
		idx.unlink(e)
		e = next
	}
}

// purgeFullScan removes every row-hash entry whose target's seqno is below
// t by scanning the whole hash once, used when some active entries in
// range have lost their fingerprint list.
func (idx *Index) purgeFullScan(t int64) {
	for fp, e := range idx.rowHash {
		if e.seqno < t {
			delete(idx.rowHash, fp)
		}
	}
	for e := idx.head; e != nil && e.seqno < t; {
		next := e.next
		idx.unlink(e)
		e = next
	}
}

// PurgedUpTo returns the current purge bound.
func (idx *Index) PurgedUpTo() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.purgedUpTo
}

// ActiveCount returns the number of live entries in the active-seqno list,
// exposed for metrics and tests.
func (idx *Index) ActiveCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := 0
	for e := idx.head; e != nil; e = e.next {
		n++
	}
	return n
}
