package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketResponses = []byte("responses")

// BoltCache keeps JSON documents on local disk with their write time.
type BoltCache struct {
	db  *bolt.DB
	now func() time.Time
}

type cacheEntry struct {
	StoredAt time.Time       `json:"stored_at"`
	Data     json.RawMessage `json:"data"`
}

// OpenBoltCache opens (or creates) a bbolt database at the given path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResponses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init: %w", err)
	}
	return &BoltCache{db: db, now: time.Now}, nil
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

// Put stores v under key, replacing any earlier entry.
func (c *BoltCache) Put(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	entry, err := json.Marshal(cacheEntry{StoredAt: c.now().UTC(), Data: data})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Put([]byte(key), entry)
	})
}

// Get decodes the entry for key into v. It reports false when the key is
// missing or, with a positive maxAge, older than maxAge.
func (c *BoltCache) Get(key string, maxAge time.Duration, v interface{}) (bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		// Bytes returned by Get are only valid inside the transaction.
		if b := tx.Bucket(bucketResponses).Get([]byte(key)); b != nil {
			raw = append([]byte(nil), b...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return false, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	if maxAge > 0 && c.now().Sub(entry.StoredAt) > maxAge {
		return false, nil
	}
	if err := json.Unmarshal(entry.Data, v); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *BoltCache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Delete([]byte(key))
	})
}

// Keys lists cached keys in byte order.
func (c *BoltCache) Keys() ([]string, error) {
	var keys []string
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
