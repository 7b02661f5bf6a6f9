// Package local implements an in-process loopback gcs.Client: every Repl
// and Send call is immediately assigned the next contiguous seqno and
// queued for Recv. It is the provider used for single-node deployments and
// in tests that don't need the gRPC transport in pkg/gcstransport.
package local
