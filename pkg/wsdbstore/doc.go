// Package wsdbstore adapts the teacher's bbolt-backed BoltStore pattern
// (bucket-per-entity, db.Update/db.View closures) into durable storage
// for the certification index: a cert-log bucket keyed by big-endian
// seqno holding the encoded write-set, and a meta bucket holding
// last_committed_trx / purged_up_to. Only used when Config.WSPersistency
// is set — otherwise the certification index and trx store are purely
// in-memory.
package wsdbstore
