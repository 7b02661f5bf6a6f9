/*
Package wsdb implements the write-set (WS) data model: the entity describing
one transaction's replicated effects — statements or row images, the
composite keys each item touches, and a canonical little-endian wire codec.

A WS is either a trx write-set (carries queries, items, an optional RBR blob,
and the last_seen_trx certification lower bound) or a connection write-set
(a single DDL-like statement applied under total order on every node).

The codec in this package is deterministic: encoding the same WS value
always produces the same byte image (codec_test.go exercises the round-trip
property), and decoding validates every length prefix against the bytes
remaining before reading it, rejecting anything that would read past the
buffer as malformed rather than panicking.

Key fingerprints — the inputs to certification — are derived here too:
RowFingerprint identifies one key record down to its column values;
TableFingerprint coarsens that to just the table name, for the DDL-scope
conflict check of the certification index.
*/
package wsdb
