package store

import (
	"context"
	"strings"

	"github.com/bcrosbie/namecache/internal/domain"
)

// NameStore is the persistence contract used by the cache service.
// Implementations report failures as domain.StoreError; a missing record is
// never an error.
type NameStore interface {
	Load() error
	Close() error

	GetName(ctx context.Context, namehash string) (domain.NameRecord, bool, error)
	GetNames(ctx context.Context, namehashes []string) (map[string]string, error)
	UpsertName(ctx context.Context, record domain.NameRecord) error
	// UpsertNames writes every record in a single transaction.
	UpsertNames(ctx context.Context, records []domain.NameRecord) error
	CountNames(ctx context.Context) (int64, error)
}

const namesTableSchema = `CREATE TABLE IF NOT EXISTS names (
	namehash TEXT PRIMARY KEY,
	name TEXT NOT NULL
)`

func validateRecord(record domain.NameRecord) error {
	if strings.TrimSpace(record.Namehash) == "" {
		return domain.InvalidArgument("namehash is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return domain.InvalidArgument("name is required")
	}
	return nil
}

func validateRecords(records []domain.NameRecord) error {
	for _, record := range records {
		if err := validateRecord(record); err != nil {
			return err
		}
	}
	return nil
}

// chunk splits keys into slices of at most size elements.
func chunk(keys []string, size int) [][]string {
	if len(keys) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		out = append(out, keys[start:end])
	}
	return out
}
