package gcstransport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/galerago/galera/pkg/gcs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func dialTestBroker(t *testing.T) (*Broker, *Client) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	broker := NewBroker()
	srv := grpc.NewServer()
	RegisterGCSServer(srv, broker)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cc, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	client := NewClient(cc)
	return broker, client
}

func TestReplAssignsIncreasingSeqnos(t *testing.T) {
	_, client := dialTestBroker(t)
	ctx := context.Background()

	g0, l0, err := client.Repl(ctx, []byte("ws-0"))
	require.NoError(t, err)
	g1, l1, err := client.Repl(ctx, []byte("ws-1"))
	require.NoError(t, err)

	require.Equal(t, int64(0), g0)
	require.Equal(t, int64(1), g1)
	require.Less(t, l0, l1)
}

func TestRecvDeliversInOrder(t *testing.T) {
	_, client := dialTestBroker(t)
	ctx := context.Background()

	_, _, err := client.Repl(ctx, []byte("first"))
	require.NoError(t, err)
	_, _, err = client.Repl(ctx, []byte("second"))
	require.NoError(t, err)

	a0, err := client.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, gcs.ActionData, a0.Type)
	require.Equal(t, []byte("first"), a0.Payload)

	a1, err := client.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), a1.Payload)
}

func TestJoinAndPausedRoundTrip(t *testing.T) {
	broker, client := dialTestBroker(t)

	require.False(t, client.Paused())

	broker.SetPaused(true)
	require.True(t, client.Paused())

	require.NoError(t, client.Join())
	require.False(t, client.Paused())
}

func TestSetLastAppliedIsAcknowledged(t *testing.T) {
	_, client := dialTestBroker(t)
	require.NoError(t, client.SetLastApplied(42))
}

func TestRecvUnblocksWithClosedErrorAfterClose(t *testing.T) {
	broker, client := dialTestBroker(t)

	done := make(chan error, 1)
	go func() {
		_, err := client.Recv(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, broker.Close())

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}
