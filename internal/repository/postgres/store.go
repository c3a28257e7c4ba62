package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/ecclesia-hub/admin-client/pkg/database"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for the credential table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(fmt.Sprintf("credential migrations: %v", err))
	}
	return sub
}

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	database.DBTX
	Ping(ctx context.Context) error
}

// Store implements repository.KeyValueStore on a PostgreSQL table.
type Store struct {
	db DB
}

// NewStore creates a PostgreSQL-backed key-value store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the credential table if needed.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	return database.RunMigrations(ctx, s.db, Migrations(), logger)
}

const (
	getSQL    = `SELECT value FROM credential_kv WHERE key = $1`
	upsertSQL = `INSERT INTO credential_kv (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	deleteSQL = `DELETE FROM credential_kv WHERE key = ANY($1)`
	keysSQL   = `SELECT key FROM credential_kv WHERE starts_with(key, $1) ORDER BY key`
)

func (s *Store) Get(ctx context.Context, key string) (value string, err error) {
	ctx, end := database.TraceQuery(ctx, "GetCredential", getSQL)
	defer func() { end(err) }()

	err = s.db.QueryRow(ctx, getSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("select credential %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceQuery(ctx, "PutCredential", upsertSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("upsert credential %s: %w", key, err)
	}
	return nil
}

// SetMulti upserts every value in one transaction, in key order so
// concurrent writers lock rows in the same sequence.
func (s *Store) SetMulti(ctx context.Context, values map[string]string) (err error) {
	if len(values) == 0 {
		return nil
	}
	ctx, end := database.TraceQuery(ctx, "PutCredentials", upsertSQL)
	defer func() { end(err) }()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin credential tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, k := range keys {
		if _, err = tx.Exec(ctx, upsertSQL, k, values[k]); err != nil {
			return fmt.Errorf("upsert credential %s: %w", k, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit credential tx: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	ctx, end := database.TraceQuery(ctx, "DeleteCredentials", deleteSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, deleteSQL, keys); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) (keys []string, err error) {
	ctx, end := database.TraceQuery(ctx, "ListCredentialKeys", keysSQL)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, keysSQL, prefix)
	if err != nil {
		return nil, fmt.Errorf("list credential keys: %w", err)
	}
	keys, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan credential keys: %w", err)
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
