package cert

import "github.com/galerago/galera/pkg/wsdb"

// Conflicts answers the job queue's parallel-apply predicate (specification
// §4.5): would running candidate (seqno, ws) concurrently with running
// (runningSeqno, runningWS) violate certification, if runningWS's effect
// were pretended not yet installed? It replays the certification test
// against a throwaway index holding only runningWS's keys, with
// last_seen_trx pinned to runningSeqno-1 — exactly enough history to make
// running's own keys visible as a conflict candidate and nothing else. This
// permits parallel apply between write-sets touching disjoint keys while
// still serialising apply of write-sets that touch the same rows.
func Conflicts(ws *wsdb.WS, seqno int64, runningWS *wsdb.WS, runningSeqno int64) bool {
	tmp := New()
	tmp.Append(runningWS, runningSeqno)

	err := tmp.Test(ws, runningSeqno-1, seqno, true)
	return err != nil
}
