package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
	"go.etcd.io/bbolt"
)

var namesBucket = []byte("names")

const defaultBoltOpenTimeout = 5 * time.Second

// BoltStore keeps namehash -> name pairs in a single bbolt bucket.
type BoltStore struct {
	path string
	db   *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.InvalidArgument("DATABASE_PATH is required when STORE_DRIVER=bolt")
	}
	return &BoltStore{path: path}, nil
}

func (s *BoltStore) Load() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.StoreError("failed to create data directory", err)
		}
	}

	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: defaultBoltOpenTimeout})
	if err != nil {
		return domain.StoreError("failed to open bolt database", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(namesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return domain.StoreError("failed to create names bucket", err)
	}
	s.db = db
	return nil
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) GetName(_ context.Context, namehash string) (domain.NameRecord, bool, error) {
	var (
		record domain.NameRecord
		found  bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(namesBucket).Get([]byte(namehash))
		if value == nil {
			return nil
		}
		record = domain.NameRecord{Namehash: namehash, Name: string(value)}
		found = true
		return nil
	})
	if err != nil {
		return domain.NameRecord{}, false, domain.StoreError("failed to read name", err)
	}
	return record, found, nil
}

func (s *BoltStore) GetNames(_ context.Context, namehashes []string) (map[string]string, error) {
	found := make(map[string]string, len(namehashes))
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(namesBucket)
		for _, namehash := range namehashes {
			if value := bucket.Get([]byte(namehash)); value != nil {
				found[namehash] = string(value)
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("failed to query names", err)
	}
	return found, nil
}

func (s *BoltStore) UpsertName(ctx context.Context, record domain.NameRecord) error {
	return s.UpsertNames(ctx, []domain.NameRecord{record})
}

func (s *BoltStore) UpsertNames(_ context.Context, records []domain.NameRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(namesBucket)
		for _, record := range records {
			if err := bucket.Put([]byte(record.Namehash), []byte(record.Name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.StoreError("failed to upsert names", err)
	}
	return nil
}

func (s *BoltStore) CountNames(_ context.Context) (int64, error) {
	var count int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = int64(tx.Bucket(namesBucket).Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, domain.StoreError("failed to count names", err)
	}
	return count, nil
}
