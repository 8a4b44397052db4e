package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db *sql.DB
}

const (
	defaultDBMaxOpenConns    = 25
	defaultDBMaxIdleConns    = 10
	defaultDBConnMaxLifetime = 30 * time.Minute
	defaultDBConnMaxIdleTime = 5 * time.Minute
	defaultDBPingTimeout     = 5 * time.Second
)

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, domain.InvalidArgument("DATABASE_URL is required when STORE_DRIVER=postgres")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, domain.StoreError("failed to open postgres connection", err)
	}
	db.SetMaxOpenConns(defaultDBMaxOpenConns)
	db.SetMaxIdleConns(defaultDBMaxIdleConns)
	db.SetConnMaxLifetime(defaultDBConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultDBConnMaxIdleTime)

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load() error {
	pingCtx, cancel := context.WithTimeout(context.Background(), defaultDBPingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return domain.StoreError("failed to connect to postgres", err)
	}
	if _, err := s.db.ExecContext(pingCtx, namesTableSchema); err != nil {
		return domain.StoreError("failed to ensure names table", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) GetName(ctx context.Context, namehash string) (domain.NameRecord, bool, error) {
	record := domain.NameRecord{Namehash: namehash}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM names WHERE namehash = $1`, namehash).Scan(&record.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NameRecord{}, false, nil
	}
	if err != nil {
		return domain.NameRecord{}, false, domain.StoreError("failed to read name", err)
	}
	return record, true, nil
}

func (s *PostgresStore) GetNames(ctx context.Context, namehashes []string) (map[string]string, error) {
	found := make(map[string]string, len(namehashes))
	if len(namehashes) == 0 {
		return found, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT namehash, name
		FROM names
		WHERE namehash = ANY($1)
	`, namehashes)
	if err != nil {
		return nil, domain.StoreError("failed to query names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var namehash, name string
		if err := rows.Scan(&namehash, &name); err != nil {
			return nil, domain.StoreError("failed to scan name row", err)
		}
		found[namehash] = name
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("failed to iterate name rows", err)
	}
	return found, nil
}

const postgresUpsertName = `
	INSERT INTO names (namehash, name)
	VALUES ($1, $2)
	ON CONFLICT (namehash) DO UPDATE
	SET name = EXCLUDED.name
`

func (s *PostgresStore) UpsertName(ctx context.Context, record domain.NameRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, postgresUpsertName, record.Namehash, record.Name); err != nil {
		return domain.StoreError("failed to upsert name", err)
	}
	return nil
}

func (s *PostgresStore) UpsertNames(ctx context.Context, records []domain.NameRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}
	return upsertNamesTx(ctx, s.db, postgresUpsertName, records)
}

func (s *PostgresStore) CountNames(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM names`).Scan(&count); err != nil {
		return 0, domain.StoreError("failed to count names", err)
	}
	return count, nil
}
