package gcstransport

import (
	"context"

	"google.golang.org/grpc"
)

// Wire messages for the GCS service. Field shapes mirror what a
// .proto-generated type would carry; see codec.go for how they're
// marshaled on the wire.

type ReplRequest struct {
	Payload []byte `json:"payload"`
}

type ReplResponse struct {
	SeqnoGlobal int64 `json:"seqno_global"`
	SeqnoLocal  int64 `json:"seqno_local"`
}

type SendRequest struct {
	Payload []byte `json:"payload"`
}

type SendResponse struct{}

type LastAppliedRequest struct {
	Seqno int64 `json:"seqno"`
}

type LastAppliedResponse struct{}

type JoinRequest struct{}

type JoinResponse struct{}

type PausedRequest struct{}

type PausedResponse struct {
	Paused bool `json:"paused"`
}

type RecvRequest struct{}

type RecvResponse struct {
	Type        int32  `json:"type"`
	Payload     []byte `json:"payload"`
	SeqnoGlobal int64  `json:"seqno_global"`
	SeqnoLocal  int64  `json:"seqno_local"`
}

// GCSServer is the service implementation contract: everything a Broker
// must provide to be registered against a *grpc.Server.
type GCSServer interface {
	Repl(context.Context, *ReplRequest) (*ReplResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	SetLastApplied(context.Context, *LastAppliedRequest) (*LastAppliedResponse, error)
	Join(context.Context, *JoinRequest) (*JoinResponse, error)
	Paused(context.Context, *PausedRequest) (*PausedResponse, error)
	Recv(*RecvRequest, GCS_RecvServer) error
}

// GCS_RecvServer is the server-side handle for the streaming Recv RPC.
type GCS_RecvServer interface {
	Send(*RecvResponse) error
	grpc.ServerStream
}

type gcsRecvServer struct {
	grpc.ServerStream
}

func (s *gcsRecvServer) Send(m *RecvResponse) error {
	return s.ServerStream.SendMsg(m)
}

func _GCS_Repl_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReplRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GCSServer).Repl(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/galera.gcs.GCS/Repl"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GCSServer).Repl(ctx, req.(*ReplRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GCS_Send_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GCSServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/galera.gcs.GCS/Send"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GCSServer).Send(ctx, req.(*SendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GCS_SetLastApplied_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LastAppliedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GCSServer).SetLastApplied(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/galera.gcs.GCS/SetLastApplied"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GCSServer).SetLastApplied(ctx, req.(*LastAppliedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GCS_Join_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(JoinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GCSServer).Join(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/galera.gcs.GCS/Join"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GCSServer).Join(ctx, req.(*JoinRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GCS_Paused_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PausedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GCSServer).Paused(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/galera.gcs.GCS/Paused"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GCSServer).Paused(ctx, req.(*PausedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _GCS_Recv_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(RecvRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(GCSServer).Recv(m, &gcsRecvServer{stream})
}

// ServiceDesc is the hand-declared equivalent of a protoc-gen-go-grpc
// _ServiceDesc for the GCS service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "galera.gcs.GCS",
	HandlerType: (*GCSServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Repl", Handler: _GCS_Repl_Handler},
		{MethodName: "Send", Handler: _GCS_Send_Handler},
		{MethodName: "SetLastApplied", Handler: _GCS_SetLastApplied_Handler},
		{MethodName: "Join", Handler: _GCS_Join_Handler},
		{MethodName: "Paused", Handler: _GCS_Paused_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Recv", Handler: _GCS_Recv_Handler, ServerStreams: true},
	},
	Metadata: "gcstransport.proto",
}

// RegisterGCSServer registers srv's RPC handlers against s.
func RegisterGCSServer(s *grpc.Server, srv GCSServer) {
	s.RegisterService(&ServiceDesc, srv)
}
