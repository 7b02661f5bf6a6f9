package wsdb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGTIDStringAndParseRoundTrip(t *testing.T) {
	g := GTID{UUID: uuid.New(), Seqno: 12345}
	s := g.String()

	parsed, err := ParseGTID(s)
	require.NoError(t, err)
	require.Equal(t, g, parsed)
}

func TestUndefinedGTID(t *testing.T) {
	g := UndefinedGTID()
	require.Equal(t, SeqnoUndefined, g.Seqno)
}

func TestParseGTIDRejectsMalformed(t *testing.T) {
	_, err := ParseGTID("not-a-gtid")
	require.Error(t, err)

	_, err = ParseGTID(uuid.New().String() + ":not-a-number")
	require.Error(t, err)
}

func TestGTIDBinaryRoundTrip(t *testing.T) {
	g := GTID{UUID: uuid.New(), Seqno: 987654321}
	b := g.MarshalBinary()
	require.Len(t, b, 24)

	parsed, err := UnmarshalGTID(b)
	require.NoError(t, err)
	require.Equal(t, g, parsed)
}

func TestUnmarshalGTIDRejectsWrongLength(t *testing.T) {
	_, err := UnmarshalGTID([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrMalformed)
}
