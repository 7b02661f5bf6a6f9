// Package trxstore is the local transaction store: it allocates a
// per-connection transaction descriptor the first time it's referenced,
// accumulates queries/keys/rows against it, and assembles a write-set ready
// for replication. It also tracks, per in-flight write-set, the last_seen_trx
// value it was stamped with, so the certification index knows how far back
// it must keep history before it is safe to purge.
package trxstore
