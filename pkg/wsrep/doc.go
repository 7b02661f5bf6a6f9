// Package wsrep is the provider-facing façade: it validates arguments,
// maps the replication coordinator's internal results onto the eight
// wsrep status codes, and exposes the function-table a host DBMS calls
// against (load, pre-commit, post-commit, post-rollback, append-query,
// append-row-key/row, set-variable/database, to-execute-start/end,
// configure-callbacks). Provider has no init or recv entry: the receive
// loop is galera.Coordinator.RunReceiver, driven outside this package.
package wsrep
