package wsdb

import (
	"encoding/binary"
	"fmt"
)

// Encode serialises ws into the canonical little-endian wire format
// (specification §6.1). Encoding the same value always produces the same
// byte image.
func Encode(ws *WS) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, byte(ws.Type))
	buf = appendU64(buf, ws.LocalTrxID)
	buf = appendI64(buf, ws.LastSeenTrx)
	buf = appendU32(buf, uint32(ws.Level))

	buf = appendU16(buf, uint16(len(ws.Queries)))
	for _, q := range ws.Queries {
		buf = encodeQuery(buf, q)
	}

	buf = appendU16(buf, uint16(len(ws.ConnQueries)))
	for _, q := range ws.ConnQueries {
		buf = encodeQuery(buf, q)
	}

	buf = appendU32(buf, uint32(len(ws.Items)))
	for _, item := range ws.Items {
		buf = encodeItem(buf, item)
	}

	buf = appendU32(buf, uint32(len(ws.RBRBuf)))
	buf = append(buf, ws.RBRBuf...)

	return buf
}

func encodeQuery(buf []byte, q QueryRecord) []byte {
	buf = appendU32(buf, uint32(len(q.Bytes)))
	buf = append(buf, q.Bytes...)
	buf = appendI64(buf, q.Timestamp)
	buf = appendU32(buf, q.RandSeed)
	return buf
}

func encodeItem(buf []byte, item WSItem) []byte {
	buf = append(buf, byte(item.Action))
	buf = appendKeyRecord(buf, item.Key)

	switch {
	case len(item.Columns) > 0:
		buf = append(buf, 1)
		buf = appendU16(buf, uint16(len(item.Columns)))
		for _, c := range item.Columns {
			buf = appendU16(buf, c.Col)
			buf = append(buf, c.DType)
			buf = appendU16(buf, uint16(len(c.Data)))
			buf = append(buf, c.Data...)
		}
	case item.HasRow:
		buf = append(buf, 2)
		buf = appendU32(buf, uint32(len(item.Row)))
		buf = append(buf, item.Row...)
	default:
		buf = append(buf, 0)
	}
	return buf
}

func appendKeyRecord(buf []byte, r WSKeyRecord) []byte {
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

// decoder is a cursor over an encoded buffer that fails closed: every read
// validates its length prefix against the bytes remaining before advancing.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) need(n int) error {
	if n < 0 || d.remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, n, d.remaining())
	}
	return nil
}

func (d *decoder) u8() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) u16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	v, err := d.u64()
	return int64(v), err
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, d.buf[d.pos:d.pos+n])
	d.pos += n
	return v, nil
}

// Decode parses the canonical wire format into a WS. It fails with
// ErrMalformed on any length prefix that would read past the remaining
// buffer, an unknown action code, or a key part exceeding MaxKeyPartLength.
func Decode(buf []byte) (*WS, error) {
	d := &decoder{buf: buf}
	ws := &WS{}

	typ, err := d.u8()
	if err != nil {
		return nil, err
	}
	ws.Type = WSType(typ)
	if ws.Type != WSTypeTrx && ws.Type != WSTypeConn {
		return nil, fmt.Errorf("%w: unknown ws type %d", ErrMalformed, typ)
	}

	if ws.LocalTrxID, err = d.u64(); err != nil {
		return nil, err
	}
	if ws.LastSeenTrx, err = d.i64(); err != nil {
		return nil, err
	}
	level, err := d.u32()
	if err != nil {
		return nil, err
	}
	ws.Level = Level(level)

	if ws.Queries, err = decodeQueries(d); err != nil {
		return nil, err
	}
	if ws.ConnQueries, err = decodeQueries(d); err != nil {
		return nil, err
	}

	itemCount, err := d.u32()
	if err != nil {
		return nil, err
	}
	ws.Items = make([]WSItem, 0, itemCount)
	for i := uint32(0); i < itemCount; i++ {
		item, err := decodeItem(d)
		if err != nil {
			return nil, err
		}
		ws.Items = append(ws.Items, item)
	}

	rbrLen, err := d.u32()
	if err != nil {
		return nil, err
	}
	if ws.RBRBuf, err = d.bytes(int(rbrLen)); err != nil {
		return nil, err
	}

	return ws, nil
}

func decodeQueries(d *decoder) ([]QueryRecord, error) {
	count, err := d.u16()
	if err != nil {
		return nil, err
	}
	out := make([]QueryRecord, 0, count)
	for i := uint16(0); i < count; i++ {
		q, err := decodeQuery(d)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func decodeQuery(d *decoder) (QueryRecord, error) {
	var q QueryRecord
	l, err := d.u32()
	if err != nil {
		return q, err
	}
	if q.Bytes, err = d.bytes(int(l)); err != nil {
		return q, err
	}
	if q.Timestamp, err = d.i64(); err != nil {
		return q, err
	}
	if q.RandSeed, err = d.u32(); err != nil {
		return q, err
	}
	return q, nil
}

func decodeItem(d *decoder) (WSItem, error) {
	var item WSItem
	action, err := d.u8()
	if err != nil {
		return item, err
	}
	item.Action = Action(action)
	if !item.Action.valid() {
		return item, fmt.Errorf("%w: unknown action code %d", ErrMalformed, action)
	}

	if item.Key, err = decodeKeyRecord(d); err != nil {
		return item, err
	}

	hasRow, err := d.u8()
	if err != nil {
		return item, err
	}
	switch hasRow {
	case 0:
	case 1:
		count, err := d.u16()
		if err != nil {
			return item, err
		}
		item.Columns = make([]ColumnRecord, 0, count)
		for i := uint16(0); i < count; i++ {
			var c ColumnRecord
			if c.Col, err = d.u16(); err != nil {
				return item, err
			}
			dtype, err := d.u8()
			if err != nil {
				return item, err
			}
			c.DType = dtype
			l, err := d.u16()
			if err != nil {
				return item, err
			}
			if c.Data, err = d.bytes(int(l)); err != nil {
				return item, err
			}
			item.Columns = append(item.Columns, c)
		}
	case 2:
		l, err := d.u32()
		if err != nil {
			return item, err
		}
		if item.Row, err = d.bytes(int(l)); err != nil {
			return item, err
		}
		item.HasRow = true
	default:
		return item, fmt.Errorf("%w: unknown has_row tag %d", ErrMalformed, hasRow)
	}

	return item, nil
}

func decodeKeyRecord(d *decoder) (WSKeyRecord, error) {
	var r WSKeyRecord
	dbtableLen, err := d.u16()
	if err != nil {
		return r, err
	}
	dbtable, err := d.bytes(int(dbtableLen))
	if err != nil {
		return r, err
	}
	r.DBTable = string(dbtable)
	if len(r.DBTable) > MaxDBTableLength {
		return r, fmt.Errorf("%w: dbtable length %d exceeds %d", ErrMalformed, len(r.DBTable), MaxDBTableLength)
	}

	partCount, err := d.u16()
	if err != nil {
		return r, err
	}
	r.Key = make(TableKey, 0, partCount)
	for i := uint16(0); i < partCount; i++ {
		typ, err := d.u8()
		if err != nil {
			return r, err
		}
		l, err := d.u16()
		if err != nil {
			return r, err
		}
		if int(l) > MaxKeyPartLength {
			return r, fmt.Errorf("%w: key part length %d exceeds %d", ErrMalformed, l, MaxKeyPartLength)
		}
		data, err := d.bytes(int(l))
		if err != nil {
			return r, err
		}
		r.Key = append(r.Key, KeyPart{Type: KeyPartType(typ), Data: data})
	}
	return r, nil
}
