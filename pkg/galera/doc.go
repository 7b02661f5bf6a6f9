// Package galera is the replication coordinator: the component that ties
// the write-set codec, local trx store, certification index, ordered
// delivery queues, job queue and GCS client together into the local-commit
// and remote-apply paths described by the replication design.
package galera
