// Package gcstransport is a gRPC-based gcs.Client: a Broker sequences
// Repl/Send calls from any number of connected nodes into one global
// order and fans the resulting action log out over a server-streaming
// Recv RPC, and Client dials a Broker and presents it as a gcs.Client.
//
// The retrieved reference pack does not carry a protoc toolchain or any
// generated .pb.go stubs, so the wire messages here are plain Go structs
// carried by a hand-registered JSON encoding.Codec (codec.go) and the
// RPC plumbing (service.go) is the grpc.ServiceDesc a protoc-gen-go-grpc
// run over a .proto file of the same shape would produce, declared by
// hand instead of generated.
package gcstransport
