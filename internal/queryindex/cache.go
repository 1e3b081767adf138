package queryindex

import (
	"bytes"
	"encoding/gob"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"qris/internal/qerr"
)

const cacheBucket = "query_index"

// Cache persists built Index values across runs, keyed by site name,
// language and trim-space variant, so that re-running the same site
// does not repay the Huffman-encoding cost of every candidate query
// (spec §4.6). Adapted from the teacher's bbolt-backed persistent
// cache, for a different key/value domain (query-index blobs instead
// of PII value/token pairs).
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) the bbolt database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, qerr.Wrap(qerr.ErrCacheMismatch, "open query index cache %q: %v", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, qerr.Wrap(qerr.ErrCacheMismatch, "create query index bucket: %v", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(site string, chinese, trimSpace bool) string {
	return fmt.Sprintf("%s|chinese=%v|trim=%v", site, chinese, trimSpace)
}

// entry is the gob-encoded cache payload: the built rows plus the
// query-set size they were built against, so a dictionary change is
// detected instead of silently served stale (qerr.ErrCacheMismatch).
type entry struct {
	QuerySetSize int
	Rows         []Row
}

// Get returns the cached Index for (site, chinese, trimSpace) if
// present and built against a query set of the given size.
func (c *Cache) Get(site string, chinese, trimSpace bool, querySetSize int) (*Index, bool) {
	var e entry
	found := false
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cacheBucket))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(cacheKey(site, chinese, trimSpace)))
		if v == nil {
			return nil
		}
		dec := gob.NewDecoder(bytes.NewReader(v))
		if err := dec.Decode(&e); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found || e.QuerySetSize != querySetSize {
		return nil, false
	}
	return &Index{Rows: e.Rows, Chinese: chinese, TrimSpace: trimSpace}, true
}

// Put stores idx under (site, chinese, trimSpace), tagged with the
// query-set size it was built against.
func (c *Cache) Put(site string, chinese, trimSpace bool, querySetSize int, idx *Index) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{QuerySetSize: querySetSize, Rows: idx.Rows}); err != nil {
		return qerr.Wrap(qerr.ErrCacheMismatch, "encode query index cache entry: %v", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cacheBucket))
		return b.Put([]byte(cacheKey(site, chinese, trimSpace)), buf.Bytes())
	})
}
