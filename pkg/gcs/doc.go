// Package gcs defines the group communication system contract the
// replication core consumes: atomic broadcast (Repl), fire-and-forget
// broadcast (Send), delivery (Recv), and the two group-membership signals
// (SetLastApplied, Join). Concrete providers live in pkg/gcs/local
// (single-process loopback) and pkg/gcstransport (gRPC-based, multi-node).
package gcs
