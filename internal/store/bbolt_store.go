package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"tbman/internal/types"
)

var bucketSessions = []byte("sessions")

// BboltSessionStore keeps the session list in a bbolt database. Keys are
// big-endian positions so Load returns sessions in their saved order.
type BboltSessionStore struct {
	path string
	db   *bolt.DB
}

func NewBboltSessionStore(path string) (*BboltSessionStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("session db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BboltSessionStore{path: path, db: db}, nil
}

func (s *BboltSessionStore) Path() string {
	return s.path
}

func (s *BboltSessionStore) Close() error {
	return s.db.Close()
}

func (s *BboltSessionStore) Load(ctx context.Context) ([]*types.Session, error) {
	sessions := []*types.Session{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSessions)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			var session types.Session
			if err := json.Unmarshal(value, &session); err != nil {
				return &CorruptError{Path: s.path, Err: err}
			}
			sessions = append(sessions, &session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *BboltSessionStore) Save(ctx context.Context, sessions []*types.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketSessions); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		bucket, err := tx.CreateBucket(bucketSessions)
		if err != nil {
			return err
		}
		for i, session := range sessions {
			if session == nil {
				continue
			}
			value, err := json.Marshal(session)
			if err != nil {
				return err
			}
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], uint64(i))
			if err := bucket.Put(key[:], value); err != nil {
				return err
			}
		}
		return nil
	})
}
