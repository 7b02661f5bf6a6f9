// Package queue implements the strict-total-order delivery primitive shared
// by the certification queue (to_queue) and the commit queue (commit_queue):
// a seqno-indexed ring of slots that callers grab and release in ascending
// order, with cancel/self-cancel/interrupt escape hatches for aborted and
// not-yet-ordered transactions.
package queue
