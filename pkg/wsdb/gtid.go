package wsdb

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SeqnoUndefined is the sentinel "no sequence number assigned yet" value.
const SeqnoUndefined int64 = -1

// GTID identifies a position in the global, totally-ordered channel: the
// channel's UUID plus a monotonic sequence number.
type GTID struct {
	UUID  uuid.UUID
	Seqno int64
}

// UndefinedGTID is the zero value with an undefined sequence number.
func UndefinedGTID() GTID {
	return GTID{Seqno: SeqnoUndefined}
}

// String renders the GTID in "UUID:SEQNO" textual form.
func (g GTID) String() string {
	return fmt.Sprintf("%s:%d", g.UUID.String(), g.Seqno)
}

// ParseGTID parses the "UUID:SEQNO" textual form.
func ParseGTID(s string) (GTID, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return GTID{}, fmt.Errorf("wsdb: malformed gtid %q", s)
	}
	id, err := uuid.Parse(s[:idx])
	if err != nil {
		return GTID{}, fmt.Errorf("wsdb: malformed gtid uuid: %w", err)
	}
	seqno, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return GTID{}, fmt.Errorf("wsdb: malformed gtid seqno: %w", err)
	}
	return GTID{UUID: id, Seqno: seqno}, nil
}

// MarshalBinary serialises the GTID as 24 bytes: UUID[16] || seqno_i64_le.
func (g GTID) MarshalBinary() []byte {
	out := make([]byte, 24)
	copy(out[0:16], g.UUID[:])
	binary.LittleEndian.PutUint64(out[16:24], uint64(g.Seqno))
	return out
}

// UnmarshalGTID parses the 24-byte binary form.
func UnmarshalGTID(b []byte) (GTID, error) {
	if len(b) != 24 {
		return GTID{}, fmt.Errorf("%w: gtid requires 24 bytes, got %d", ErrMalformed, len(b))
	}
	var g GTID
	copy(g.UUID[:], b[0:16])
	g.Seqno = int64(binary.LittleEndian.Uint64(b[16:24]))
	return g, nil
}
