package wsrep

import (
	"context"
	"testing"

	"github.com/galerago/galera/pkg/galera"
	"github.com/galerago/galera/pkg/gcs/local"
	"github.com/galerago/galera/pkg/wsdb"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) (*Provider, *local.Provider) {
	t.Helper()
	gcsProvider := local.New()
	t.Cleanup(func() { gcsProvider.Close() })
	cfg := galera.DefaultConfig()
	cfg.ToQueueCapacity = 64
	cfg.CommitQueueCapacity = 64
	coord := galera.New(cfg, gcsProvider, nil)
	return Load(coord), gcsProvider
}

func TestAppendQueryRejectsEmptySQL(t *testing.T) {
	p, _ := newTestProvider(t)
	require.Equal(t, StatusWarning, p.AppendQuery(1, 1, nil, 0, 0))
}

func TestAppendRowKeyRejectsBadAction(t *testing.T) {
	p, _ := newTestProvider(t)
	key := wsdb.WSKeyRecord{DBTable: "d.t", Key: wsdb.TableKey{{Type: wsdb.KeyPartInt, Data: []byte{1}}}}
	require.Equal(t, StatusWarning, p.AppendRowKey(1, 1, key, wsdb.Action(99)))
}

func TestPreCommitThenPostCommitHappyPath(t *testing.T) {
	p, _ := newTestProvider(t)
	key := wsdb.WSKeyRecord{DBTable: "d.t", Key: wsdb.TableKey{{Type: wsdb.KeyPartInt, Data: []byte{1}}}}
	require.Equal(t, StatusOK, p.AppendRowKey(1, 1, key, wsdb.ActionInsert))

	require.Equal(t, StatusOK, p.PreCommit(context.Background(), 1, 1, nil))
	require.Equal(t, StatusOK, p.PostCommit(1))
}

func TestPostRollbackFreesDescriptor(t *testing.T) {
	p, _ := newTestProvider(t)
	require.Equal(t, StatusOK, p.AppendQuery(1, 1, []byte("x"), 0, 0))
	require.Equal(t, StatusOK, p.PostRollback(1))
}

func TestConfigureCallbacksRequiresApply(t *testing.T) {
	p, _ := newTestProvider(t)
	require.Equal(t, StatusWarning, p.ConfigureCallbacks(Callbacks{}))
	require.Equal(t, StatusWarning, p.ConfigureCallbacks(Callbacks{
		Apply: func(*wsdb.WS) error { return nil },
	}))
	require.Equal(t, StatusOK, p.ConfigureCallbacks(Callbacks{
		Apply:   func(*wsdb.WS) error { return nil },
		StartWS: func(seqno int64) error { return nil },
	}))
}

func TestStatusStrings(t *testing.T) {
	require.Equal(t, "ok", StatusOK.String())
	require.Equal(t, "trx-fail", StatusTrxFail.String())
	require.Equal(t, "bf-abort", StatusBFAbort.String())
}
