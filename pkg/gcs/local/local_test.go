package local

import (
	"context"
	"testing"

	"github.com/galerago/galera/pkg/gcs"
	"github.com/stretchr/testify/require"
)

func TestReplThenRecvDeliversSamePayload(t *testing.T) {
	p := New()
	defer p.Close()

	global, localSeq, err := p.Repl(context.Background(), []byte("ws-bytes"))
	require.NoError(t, err)
	require.Equal(t, int64(0), global)
	require.Equal(t, int64(0), localSeq)

	a, err := p.Recv(context.Background())
	require.NoError(t, err)
	require.Equal(t, gcs.ActionData, a.Type)
	require.Equal(t, []byte("ws-bytes"), a.Payload)
	require.Equal(t, global, a.SeqnoGlobal)
	require.Equal(t, localSeq, a.SeqnoLocal)
}

func TestSeqnosAreContiguous(t *testing.T) {
	p := New()
	defer p.Close()

	for i := 0; i < 5; i++ {
		_, localSeq, err := p.Repl(context.Background(), []byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, int64(i), localSeq)
	}
}

func TestSendHasUndefinedGlobalSeqno(t *testing.T) {
	p := New()
	defer p.Close()

	require.NoError(t, p.Send(context.Background(), []byte("signal")))
	a, err := p.Recv(context.Background())
	require.NoError(t, err)
	require.Equal(t, gcs.ActionConf, a.Type)
	require.Equal(t, gcs.SeqnoUndefined, a.SeqnoGlobal)
}

func TestCloseUnblocksRecv(t *testing.T) {
	p := New()
	done := make(chan error, 1)
	go func() {
		_, err := p.Recv(context.Background())
		done <- err
	}()

	require.NoError(t, p.Close())
	err := <-done
	require.ErrorIs(t, err, gcs.ErrClosed)
}

func TestSetLastAppliedRecorded(t *testing.T) {
	p := New()
	defer p.Close()
	require.NoError(t, p.SetLastApplied(42))
	require.Equal(t, int64(42), p.LastApplied())
}

func TestJoinClearsPaused(t *testing.T) {
	p := New()
	defer p.Close()
	p.SetPaused(true)
	require.True(t, p.Paused())
	require.NoError(t, p.Join())
	require.False(t, p.Paused())
}
