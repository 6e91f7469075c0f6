// Package embedcache caches prompt embeddings across analysis runs so
// unchanged log entries are never re-embedded. Entries are keyed by a hash of
// model and text: a bolt file survives restarts, and a small in-process LRU
// keeps repeat lookups off disk.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.etcd.io/bbolt"
)

var bucketVectors = []byte("vectors")

const hotSize = 2048

// Cache is the two-layer embedding cache.
type Cache struct {
	db  *bbolt.DB
	hot *lru.Cache[string, []float32]
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embed cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init embed cache: %w", err)
	}

	hot, err := lru.New[string, []float32](hotSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, hot: hot}, nil
}

// Key derives the cache key for a (model, text) pair. Different models embed
// into different spaces, so the model name is part of the key.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for (model, text), or false on a miss.
func (c *Cache) Get(model, text string) ([]float32, bool) {
	key := Key(model, text)

	if vec, ok := c.hot.Get(key); ok {
		return vec, true
	}

	var vec []float32
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketVectors).Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &vec)
	})
	if err != nil || vec == nil {
		return nil, false
	}

	c.hot.Add(key, vec)
	return vec, true
}

// Put stores a vector for (model, text).
func (c *Cache) Put(model, text string, vec []float32) error {
	key := Key(model, text)

	err := c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(vec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketVectors).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("put embed cache: %w", err)
	}

	c.hot.Add(key, vec)
	return nil
}

// Len returns the number of durable cache entries.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketVectors).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying bolt file.
func (c *Cache) Close() error {
	return c.db.Close()
}
