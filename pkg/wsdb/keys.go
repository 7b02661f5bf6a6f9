package wsdb

import (
	"encoding/binary"
	"fmt"
)

// KeyPartType tags the shape of one column value inside a composite key.
type KeyPartType uint8

const (
	KeyPartChar KeyPartType = iota
	KeyPartInt
	KeyPartFloat
	KeyPartBlob
	KeyPartVoid
)

// MaxKeyPartLength is the invariant bound on a single key part's byte length.
const MaxKeyPartLength = 1024

// MaxDBTableLength is the invariant bound on a dbtable identifier's length.
const MaxDBTableLength = 256

// KeyPart is one column value used in a composite key.
type KeyPart struct {
	Type KeyPartType
	Data []byte
}

// Validate checks the length invariant on a key part.
func (p KeyPart) Validate() error {
	if len(p.Data) > MaxKeyPartLength {
		return fmt.Errorf("%w: key part length %d exceeds %d", ErrMalformed, len(p.Data), MaxKeyPartLength)
	}
	return nil
}

// TableKey is an ordered list of key parts composing one composite key.
// Invariant: at least one part.
type TableKey []KeyPart

// Validate checks the table key invariants.
func (k TableKey) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: table key has no parts", ErrMalformed)
	}
	for _, p := range k {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WSKeyRecord identifies one row or table a write-set item touches.
// Equality for certification purposes is defined on the full canonical byte
// image produced by encodeKeyRecord.
type WSKeyRecord struct {
	DBTable string
	Key     TableKey
}

// Validate checks the key record invariants.
func (r WSKeyRecord) Validate() error {
	if len(r.DBTable) > MaxDBTableLength {
		return fmt.Errorf("%w: dbtable length %d exceeds %d", ErrMalformed, len(r.DBTable), MaxDBTableLength)
	}
	return r.Key.Validate()
}

// encodeKeyRecord serialises the per-key inner block shared by
// RowFingerprint and ComputeKeyComposition:
//
//	[dbtable_len u16][dbtable][key_part_count u16]([type u8][part_len u16][part_bytes])*
func encodeKeyRecord(r WSKeyRecord) []byte {
	buf := make([]byte, 0, 2+len(r.DBTable)+2+16*len(r.Key))
	buf = appendU16(buf, uint16(len(r.DBTable)))
	buf = append(buf, r.DBTable...)
	buf = appendU16(buf, uint16(len(r.Key)))
	for _, part := range r.Key {
		buf = append(buf, byte(part.Type))
		buf = appendU16(buf, uint16(len(part.Data)))
		buf = append(buf, part.Data...)
	}
	return buf
}

// RowFingerprint is the certification row-hash key: the per-key inner block
// prefixed by its own total length, i.e. compute_key_composition's per-item
// format with the outer (whole-blob) length wrapper removed:
//
//	[full_key_len u16][dbtable_len u16][dbtable][key_part_count u16](...)*
func RowFingerprint(r WSKeyRecord) []byte {
	inner := encodeKeyRecord(r)
	out := make([]byte, 0, 2+len(inner))
	out = appendU16(out, uint16(len(inner)))
	out = append(out, inner...)
	return out
}

// TableFingerprint is the certification table-hash key: just the dbtable
// identifier, used for the coarse DDL-scope conflict check.
func TableFingerprint(r WSKeyRecord) []byte {
	return []byte(r.DBTable)
}

// ComputeKeyComposition serialises every item key in the write-set into one
// blob, prefixed by its total length. This is both the certification input
// and the payload cached in the active-seqno list.
func ComputeKeyComposition(ws *WS) []byte {
	var body []byte
	for _, item := range ws.Items {
		body = append(body, RowFingerprint(item.Key)...)
	}
	out := make([]byte, 0, 4+len(body))
	out = appendU32(out, uint32(len(body)))
	out = append(out, body...)
	return out
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendI64(buf []byte, v int64) []byte {
	return appendU64(buf, uint64(v))
}
