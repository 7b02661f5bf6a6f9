package wsdbstore

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/galerago/galera/pkg/wsdb"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCertLog = []byte("cert-log")
	bucketMeta    = []byte("meta")
)

var (
	keyLastCommitted = []byte("last_committed_trx")
	keyPurgedUpTo    = []byte("purged_up_to")
)

// Store is a bbolt-backed durable ledger for certified write-sets and
// the two watermark values a node needs to resume certification across
// a restart.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the cert-log database under
// dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "wsdb.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("wsdbstore: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCertLog, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("wsdbstore: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func seqnoKey(seqno int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seqno))
	return key
}

// PutWS durably records the certified write-set encoded at seqno.
func (s *Store) PutWS(seqno int64, encoded []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCertLog)
		data := make([]byte, len(encoded))
		copy(data, encoded)
		return b.Put(seqnoKey(seqno), data)
	})
}

// GetWS retrieves and decodes the write-set stored at seqno.
func (s *Store) GetWS(seqno int64) (*wsdb.WS, error) {
	var ws *wsdb.WS
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCertLog)
		data := b.Get(seqnoKey(seqno))
		if data == nil {
			return fmt.Errorf("wsdbstore: no write-set at seqno %d", seqno)
		}
		decoded, err := wsdb.Decode(data)
		if err != nil {
			return err
		}
		ws = decoded
		return nil
	})
	return ws, err
}

// DeleteUpTo removes every cert-log entry with a seqno strictly less
// than upTo, mirroring a certification-index purge.
func (s *Store) DeleteUpTo(upTo int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCertLog)
		c := b.Cursor()
		bound := seqnoKey(upTo)
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(bound) {
				break
			}
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func putInt64(tx *bolt.Tx, key []byte, v int64) error {
	b := tx.Bucket(bucketMeta)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return b.Put(key, buf)
}

func getInt64(tx *bolt.Tx, key []byte, fallback int64) int64 {
	b := tx.Bucket(bucketMeta)
	data := b.Get(key)
	if data == nil {
		return fallback
	}
	return int64(binary.BigEndian.Uint64(data))
}

// SetLastCommitted durably records the process-wide last_committed_trx
// watermark.
func (s *Store) SetLastCommitted(seqno int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putInt64(tx, keyLastCommitted, seqno)
	})
}

// LastCommitted returns the durable last_committed_trx watermark,
// defaulting to wsdb.SeqnoUndefined if never set.
func (s *Store) LastCommitted() int64 {
	v := wsdb.SeqnoUndefined
	_ = s.db.View(func(tx *bolt.Tx) error {
		v = getInt64(tx, keyLastCommitted, wsdb.SeqnoUndefined)
		return nil
	})
	return v
}

// SetPurgedUpTo durably records the certification index's purge bound.
func (s *Store) SetPurgedUpTo(seqno int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putInt64(tx, keyPurgedUpTo, seqno)
	})
}

// PurgedUpTo returns the durable purge bound, defaulting to
// wsdb.SeqnoUndefined if never set.
func (s *Store) PurgedUpTo() int64 {
	v := wsdb.SeqnoUndefined
	_ = s.db.View(func(tx *bolt.Tx) error {
		v = getInt64(tx, keyPurgedUpTo, wsdb.SeqnoUndefined)
		return nil
	})
	return v
}
