package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite caps bound parameters per statement; GetNames chunks below that.
const sqliteMaxLookupParams = 500

const defaultSQLitePingTimeout = 5 * time.Second

// SQLiteStore keeps the names table in a local SQLite file.
// WAL mode lets readers proceed while the single writer connection commits.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.InvalidArgument("DATABASE_PATH is required when STORE_DRIVER=sqlite")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.StoreError("failed to open sqlite database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{path: path, db: db}, nil
}

func (s *SQLiteStore) Load() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSQLitePingTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return domain.StoreError("failed to connect to sqlite database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return domain.StoreError(fmt.Sprintf("failed to execute %q", pragma), err)
		}
	}
	if _, err := s.db.ExecContext(ctx, namesTableSchema); err != nil {
		return domain.StoreError("failed to create names table", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) GetName(ctx context.Context, namehash string) (domain.NameRecord, bool, error) {
	record := domain.NameRecord{Namehash: namehash}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM names WHERE namehash = ?`, namehash).Scan(&record.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NameRecord{}, false, nil
	}
	if err != nil {
		return domain.NameRecord{}, false, domain.StoreError("failed to read name", err)
	}
	return record, true, nil
}

func (s *SQLiteStore) GetNames(ctx context.Context, namehashes []string) (map[string]string, error) {
	found := make(map[string]string, len(namehashes))
	for _, batch := range chunk(namehashes, sqliteMaxLookupParams) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, namehash := range batch {
			args[i] = namehash
		}
		if err := s.collectNames(ctx, found, `SELECT namehash, name FROM names WHERE namehash IN (`+placeholders+`)`, args...); err != nil {
			return nil, err
		}
	}
	return found, nil
}

func (s *SQLiteStore) collectNames(ctx context.Context, into map[string]string, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.StoreError("failed to query names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var namehash, name string
		if err := rows.Scan(&namehash, &name); err != nil {
			return domain.StoreError("failed to scan name row", err)
		}
		into[namehash] = name
	}
	if err := rows.Err(); err != nil {
		return domain.StoreError("failed to iterate name rows", err)
	}
	return nil
}

const sqliteUpsertName = `
	INSERT INTO names (namehash, name) VALUES (?, ?)
	ON CONFLICT(namehash) DO UPDATE SET name = excluded.name
`

func (s *SQLiteStore) UpsertName(ctx context.Context, record domain.NameRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsertName, record.Namehash, record.Name); err != nil {
		return domain.StoreError("failed to upsert name", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertNames(ctx context.Context, records []domain.NameRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}
	return upsertNamesTx(ctx, s.db, sqliteUpsertName, records)
}

func (s *SQLiteStore) CountNames(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM names`).Scan(&count); err != nil {
		return 0, domain.StoreError("failed to count names", err)
	}
	return count, nil
}

// upsertNamesTx runs statement once per record inside one transaction.
func upsertNamesTx(ctx context.Context, db *sql.DB, statement string, records []domain.NameRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, statement)
	if err != nil {
		return domain.StoreError("failed to prepare upsert", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, record.Namehash, record.Name); err != nil {
			return domain.StoreError("failed to upsert name", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.StoreError("failed to commit names", err)
	}
	return nil
}
