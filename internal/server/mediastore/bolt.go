package mediastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	bolt "go.etcd.io/bbolt"
)

const objectsBucket = "objects"

type boltRecord struct {
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// BoltStore keeps objects in a single bbolt bucket. It suits single-node
// deployments and tests.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bbolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open media db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(objectsBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create media bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	raw, err := json.Marshal(boltRecord{ContentType: contentType, Body: body})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(objectsBucket)).Put([]byte(key), raw)
	})
}

func (s *BoltStore) Get(_ context.Context, key string) (*Object, error) {
	var rec boltRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(objectsBucket)).Get([]byte(key))
		if raw == nil {
			return common.ErrorNotFound
		}
		// raw is only valid inside the transaction; Unmarshal copies it.
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &Object{Key: key, ContentType: rec.ContentType, Body: rec.Body}, nil
}

func (s *BoltStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(objectsBucket)).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

func (s *BoltStore) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(objectsBucket))
		for _, k := range keys {
			if err := bkt.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", common.ErrorUnsupported
}
