package cert

import (
	"testing"

	"github.com/galerago/galera/pkg/wsdb"
	"github.com/stretchr/testify/require"
)

func wsWithKey(dbtable string, keyByte byte) *wsdb.WS {
	return &wsdb.WS{
		Type:       wsdb.WSTypeTrx,
		LocalTrxID: 1,
		Level:      wsdb.LevelRow,
		Items: []wsdb.WSItem{
			{
				Action: wsdb.ActionUpdate,
				Key: wsdb.WSKeyRecord{
					DBTable: dbtable,
					Key:     wsdb.TableKey{{Type: wsdb.KeyPartInt, Data: []byte{keyByte}}},
				},
			},
		},
	}
}

func TestCertifySimpleNonConflicting(t *testing.T) {
	idx := New()
	ws1 := wsWithKey("d.t", 1)
	require.NoError(t, idx.Test(ws1, 0, 1, true))
	idx.Append(ws1, 1)

	ws2 := wsWithKey("d.t", 2)
	require.NoError(t, idx.Test(ws2, 1, 2, true))
	idx.Append(ws2, 2)
}

func TestCertifyRowConflict(t *testing.T) {
	idx := New()
	ws1 := wsWithKey("d.t", 1)
	require.NoError(t, idx.Test(ws1, 0, 1, true))
	idx.Append(ws1, 1)

	// ws2 touches the same row and has a last_seen below seqno 1: conflict.
	ws2 := wsWithKey("d.t", 1)
	err := idx.Test(ws2, 0, 2, true)
	require.ErrorIs(t, err, ErrFail)
}

func TestCertifyRowNoConflictWhenLastSeenCovers(t *testing.T) {
	idx := New()
	ws1 := wsWithKey("d.t", 1)
	require.NoError(t, idx.Test(ws1, 0, 1, true))
	idx.Append(ws1, 1)

	// ws2's last_seen_trx (1) already covers seqno 1, so no conflict even
	// though it's the same row.
	ws2 := wsWithKey("d.t", 1)
	require.NoError(t, idx.Test(ws2, 1, 2, true))
}

func TestCertifySoftTableConflictToleratedWhenSaveKeys(t *testing.T) {
	idx := New()
	ws1 := wsWithKey("d.t", 1)
	require.NoError(t, idx.Test(ws1, 0, 1, true))
	idx.Append(ws1, 1)

	// Different row, same table, last_seen below seqno 1: a soft conflict.
	ws2 := wsWithKey("d.t", 2)
	require.NoError(t, idx.Test(ws2, 0, 2, true))

	// With saveKeys=false the same scenario must fail.
	err := idx.Test(ws2, 0, 2, false)
	require.ErrorIs(t, err, ErrFail)
}

func TestCertifyFailsBelowPurgeBound(t *testing.T) {
	idx := New()
	idx.PurgeUpTo(5)
	ws := wsWithKey("d.t", 1)
	err := idx.Test(ws, 3, 10, true)
	require.ErrorIs(t, err, ErrFail)
}

func TestPurgeRemovesOldEntriesOnly(t *testing.T) {
	idx := New()
	ws1 := wsWithKey("d.t", 1)
	idx.Append(ws1, 1)
	ws2 := wsWithKey("d.t", 2)
	idx.Append(ws2, 2)
	ws3 := wsWithKey("d.t", 3)
	idx.Append(ws3, 3)

	require.Equal(t, 3, idx.ActiveCount())
	idx.PurgeUpTo(3)
	require.Equal(t, 1, idx.ActiveCount())
	require.Equal(t, int64(3), idx.PurgedUpTo())
}

func TestPurgeDoesNotDeleteOverwrittenEntryOwner(t *testing.T) {
	idx := New()
	ws1 := wsWithKey("d.t", 1)
	idx.Append(ws1, 1) // installs row fingerprint for key=1 at seqno 1

	ws1b := wsWithKey("d.t", 1)
	idx.Append(ws1b, 5) // same row, overwrites the row-hash slot at seqno 5

	// Purging up to 2 must not remove the row-hash slot, since it now
	// belongs to the seqno-5 entry, not the purged seqno-1 entry.
	idx.PurgeUpTo(2)

	ws2 := wsWithKey("d.t", 1)
	err := idx.Test(ws2, 2, 6, true)
	require.ErrorIs(t, err, ErrFail, "row fingerprint installed at seqno 5 must still be visible")
}

func TestConflictsDetectsSharedKey(t *testing.T) {
	running := wsWithKey("d.t", 1)
	candidate := wsWithKey("d.t", 1)
	require.True(t, Conflicts(candidate, 10, running, 5))
}

func TestConflictsAllowsDisjointKeys(t *testing.T) {
	running := wsWithKey("d.t", 1)
	candidate := wsWithKey("d.t", 2)
	require.False(t, Conflicts(candidate, 10, running, 5))
}
