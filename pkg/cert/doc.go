// Package cert implements the certification index: given a write-set with a
// last_seen_trx lower bound and an assigned global seqno, it decides
// whether the write-set conflicts with anything committed in the open
// interval (last_seen_trx, assigned_seqno), then installs its keys so later
// write-sets can be checked against it in turn.
package cert
