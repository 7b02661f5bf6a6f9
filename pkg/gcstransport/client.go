package gcstransport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/galerago/galera/pkg/gcs"
	"google.golang.org/grpc"
)

// GCS_RecvClient is the client-side handle for the streaming Recv RPC.
type GCS_RecvClient interface {
	Recv() (*RecvResponse, error)
	grpc.ClientStream
}

type gcsRecvClient struct {
	grpc.ClientStream
}

func (x *gcsRecvClient) Recv() (*RecvResponse, error) {
	m := new(RecvResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// rawClient is the generated-style stub: one method per RPC, each a
// thin wrapper over *grpc.ClientConn.
type rawClient struct {
	cc *grpc.ClientConn
}

func (c *rawClient) Repl(ctx context.Context, in *ReplRequest) (*ReplResponse, error) {
	out := new(ReplResponse)
	if err := c.cc.Invoke(ctx, "/galera.gcs.GCS/Repl", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rawClient) Send(ctx context.Context, in *SendRequest) (*SendResponse, error) {
	out := new(SendResponse)
	if err := c.cc.Invoke(ctx, "/galera.gcs.GCS/Send", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rawClient) SetLastApplied(ctx context.Context, in *LastAppliedRequest) (*LastAppliedResponse, error) {
	out := new(LastAppliedResponse)
	if err := c.cc.Invoke(ctx, "/galera.gcs.GCS/SetLastApplied", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rawClient) Join(ctx context.Context, in *JoinRequest) (*JoinResponse, error) {
	out := new(JoinResponse)
	if err := c.cc.Invoke(ctx, "/galera.gcs.GCS/Join", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rawClient) Paused(ctx context.Context, in *PausedRequest) (*PausedResponse, error) {
	out := new(PausedResponse)
	if err := c.cc.Invoke(ctx, "/galera.gcs.GCS/Paused", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rawClient) Recv(ctx context.Context, in *RecvRequest) (GCS_RecvClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/galera.gcs.GCS/Recv", grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	x := &gcsRecvClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Client adapts a dialed GCS connection onto the gcs.Client contract the
// replication coordinator depends on, lazily opening one long-lived Recv
// stream and serializing access to it.
type Client struct {
	raw *rawClient
	cc  *grpc.ClientConn

	mu     sync.Mutex
	stream GCS_RecvClient
}

var _ gcs.Client = (*Client)(nil)

// Dial connects to a Broker listening at target.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	cc, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcstransport: dial %s: %w", target, err)
	}
	return &Client{raw: &rawClient{cc: cc}, cc: cc}, nil
}

// NewClient wraps an already-established connection, e.g. one obtained
// through an in-process bufconn dialer in tests.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{raw: &rawClient{cc: cc}, cc: cc}
}

// Repl broadcasts payload and returns once the broker has assigned it a
// position in the global action log.
func (c *Client) Repl(ctx context.Context, payload []byte) (int64, int64, error) {
	resp, err := c.raw.Repl(ctx, &ReplRequest{Payload: payload})
	if err != nil {
		return 0, 0, err
	}
	return resp.SeqnoGlobal, resp.SeqnoLocal, nil
}

// Send broadcasts payload without a meaningful global seqno.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	_, err := c.raw.Send(ctx, &SendRequest{Payload: payload})
	return err
}

// Recv blocks until the next action is available on the shared Recv
// stream, opening it on first use.
func (c *Client) Recv(ctx context.Context) (gcs.Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		stream, err := c.raw.Recv(ctx, &RecvRequest{})
		if err != nil {
			return gcs.Action{}, err
		}
		c.stream = stream
	}

	m, err := c.stream.Recv()
	if err == io.EOF {
		c.stream = nil
		return gcs.Action{}, gcs.ErrClosed
	}
	if err != nil {
		c.stream = nil
		return gcs.Action{}, err
	}
	return gcs.Action{
		Type:        gcs.ActionType(m.Type),
		Payload:     m.Payload,
		SeqnoGlobal: m.SeqnoGlobal,
		SeqnoLocal:  m.SeqnoLocal,
	}, nil
}

// SetLastApplied informs the broker of this node's safe-to-discard
// watermark.
func (c *Client) SetLastApplied(seqno int64) error {
	_, err := c.raw.SetLastApplied(context.Background(), &LastAppliedRequest{Seqno: seqno})
	return err
}

// Join tells the broker this node has state.
func (c *Client) Join() error {
	_, err := c.raw.Join(context.Background(), &JoinRequest{})
	return err
}

// Paused reports the broker's current flow-control state; a transport
// error is treated as not-paused rather than blocking the caller.
func (c *Client) Paused() bool {
	resp, err := c.raw.Paused(context.Background(), &PausedRequest{})
	if err != nil {
		return false
	}
	return resp.Paused
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.cc.Close()
}
