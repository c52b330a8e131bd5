package exclusion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketExclusions  = []byte("exclusions")
	keyPaths          = []byte("paths")
	keyQueryParamSets = []byte("query_param_sets")
)

// BoltBackend keeps each rule list as a JSON value in a bbolt bucket.
type BoltBackend struct {
	db *bbolt.DB
}

func OpenBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketExclusions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create exclusions bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Load() (Rules, error) {
	var rules Rules
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketExclusions)
		if bucket == nil {
			return fmt.Errorf("exclusions bucket not found")
		}
		if data := bucket.Get(keyPaths); data != nil {
			if err := json.Unmarshal(data, &rules.Paths); err != nil {
				return fmt.Errorf("decode path rules: %w", err)
			}
		}
		if data := bucket.Get(keyQueryParamSets); data != nil {
			if err := json.Unmarshal(data, &rules.QueryParamSets); err != nil {
				return fmt.Errorf("decode query parameter set rules: %w", err)
			}
		}
		return nil
	})
	return rules, err
}

func (b *BoltBackend) Save(rules Rules) error {
	paths, err := json.Marshal(rules.Paths)
	if err != nil {
		return fmt.Errorf("encode path rules: %w", err)
	}
	sets, err := json.Marshal(rules.QueryParamSets)
	if err != nil {
		return fmt.Errorf("encode query parameter set rules: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketExclusions)
		if bucket == nil {
			return fmt.Errorf("exclusions bucket not found")
		}
		if err := bucket.Put(keyPaths, paths); err != nil {
			return err
		}
		return bucket.Put(keyQueryParamSets, sets)
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
