package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"chordmesh/internal/ring"
)

var resourcesBucket = []byte("resources")

// wire layout of a stored value: 8-byte unix-nano timestamp, then the
// raw key string length (2 bytes), the raw key string, then the value.
func encodeRecord(res Resource) []byte {
	rawKey := []byte(res.RawKey)
	buf := make([]byte, 8+2+len(rawKey)+len(res.Value))
	binary.BigEndian.PutUint64(buf[0:8], uint64(res.StoredAt.UnixNano()))
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(rawKey)))
	copy(buf[10:10+len(rawKey)], rawKey)
	copy(buf[10+len(rawKey):], res.Value)
	return buf
}

func decodeRecord(key ring.Id, data []byte) (Resource, error) {
	if len(data) < 10 {
		return Resource{}, fmt.Errorf("store: corrupt record for %s", key)
	}
	storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(data[0:8])))
	rawLen := int(binary.BigEndian.Uint16(data[8:10]))
	if 10+rawLen > len(data) {
		return Resource{}, fmt.Errorf("store: corrupt record for %s", key)
	}
	rawKey := string(data[10 : 10+rawLen])
	value := data[10+rawLen:]
	valCopy := make([]byte, len(value))
	copy(valCopy, value)
	return Resource{Key: key, RawKey: rawKey, Value: valCopy, StoredAt: storedAt}, nil
}

// BoltStore is the production Store backend: a single-file embedded
// B-tree (go.etcd.io/bbolt) holding one bucket keyed by the 20-byte
// ring id.
type BoltStore struct {
	db      *bbolt.DB
	maxSize int64
}

// OpenBolt opens (creating if necessary) a bbolt database at path.
func OpenBolt(path string, maxSizeBytes int64) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resourcesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init bucket: %w", err)
	}
	return &BoltStore{db: db, maxSize: maxSizeBytes}, nil
}

func (s *BoltStore) Get(key ring.Id) (Resource, error) {
	var res Resource
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(resourcesBucket).Get(key.Bytes())
		if data == nil {
			return nil
		}
		found = true
		var err error
		res, err = decodeRecord(key, data)
		return err
	})
	if err != nil {
		return Resource{}, err
	}
	if !found {
		return Resource{}, ErrNotFound
	}
	return res, nil
}

func (s *BoltStore) Put(res Resource) error {
	if res.StoredAt.IsZero() {
		res.StoredAt = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(resourcesBucket).Put(res.Key.Bytes(), encodeRecord(res))
	})
}

func (s *BoltStore) Remove(key ring.Id) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(resourcesBucket)
		if b.Get(key.Bytes()) == nil {
			return ErrNotFound
		}
		return b.Delete(key.Bytes())
	})
}

func (s *BoltStore) GetAll() ([]Resource, error) {
	var out []Resource
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(resourcesBucket).ForEach(func(k, v []byte) error {
			id, err := ring.FromBytes(k)
			if err != nil {
				return nil // skip undecodable key, don't fail the whole scan
			}
			res, err := decodeRecord(id, v)
			if err != nil {
				return nil
			}
			out = append(out, res)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Between(from, to ring.Id) ([]Resource, error) {
	all, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, r := range all {
		if ring.InOpenArc(from, r.Key, to) || r.Key.Equal(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *BoltStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(resourcesBucket).Stats().KeyN
		return nil
	})
	return count, err
}

func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(resourcesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(resourcesBucket)
		return err
	})
}

func (s *BoltStore) MaxSize() int64 { return s.maxSize }

func (s *BoltStore) TotalSize() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

func (s *BoltStore) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var stale [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(resourcesBucket).ForEach(func(k, v []byte) error {
			if len(v) < 8 {
				return nil
			}
			storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(v[0:8])))
			if storedAt.Before(cutoff) {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(resourcesBucket)
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return len(stale), err
}

func (s *BoltStore) Close() error { return s.db.Close() }
