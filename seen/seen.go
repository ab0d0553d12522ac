// Package seen keeps a persistent set of article URLs that have already been
// archived, so repeat runs can skip them.
package seen

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("seen_urls")

// Index is a bbolt-backed set of URLs. Values hold the time a URL was
// marked.
type Index struct {
	db *bolt.DB
}

// Open opens or creates the index file at path.
func Open(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open seen index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create seen bucket: %w", err)
	}

	return &Index{db: db}, nil
}

// Has reports whether url has been marked.
func (i *Index) Has(url string) (bool, error) {
	var found bool
	err := i.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketName).Get([]byte(url)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read seen index: %w", err)
	}
	return found, nil
}

// Mark records url as archived at the given time.
func (i *Index) Mark(url string, at time.Time) error {
	err := i.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(url), []byte(at.UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("failed to update seen index: %w", err)
	}
	return nil
}

// MarkedAt returns when url was marked, or false if it never was.
func (i *Index) MarkedAt(url string) (time.Time, bool, error) {
	var raw []byte
	err := i.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(url)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read seen index: %w", err)
	}
	if raw == nil {
		return time.Time{}, false, nil
	}

	at, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, true, nil
	}
	return at, true, nil
}

// Count returns the number of marked URLs.
func (i *Index) Count() (int, error) {
	var n int
	err := i.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read seen index: %w", err)
	}
	return n, nil
}

// Close releases the index file.
func (i *Index) Close() error {
	return i.db.Close()
}
