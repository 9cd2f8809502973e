package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	appLog "timecast/internal/log"
)

// SQLBlobs keeps every key in a single kv table. Both SQLite and Postgres
// are served by it; only the placeholders and the blob column type differ.
type SQLBlobs struct {
	db      *sql.DB
	getSQL  string
	putSQL  string
	closeFn func()
}

// OpenSQLiteBlobs opens (and migrates) the database file at path.
func OpenSQLiteBlobs(path string) (*SQLBlobs, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db, goose.DialectSQLite3, "BLOB"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLBlobs{
		db:     db,
		getSQL: `SELECT value FROM kv WHERE key = ?`,
		putSQL: `INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	}, nil
}

// OpenPostgresBlobs connects through a pgx pool and migrates the kv table.
func OpenPostgresBlobs(ctx context.Context, dsn string) (*SQLBlobs, error) {
	if dsn == "" {
		return nil, errors.New("store: postgres dsn is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := migrate(ctx, db, goose.DialectPostgres, "BYTEA"); err != nil {
		db.Close()
		pool.Close()
		return nil, err
	}
	return &SQLBlobs{
		db:     db,
		getSQL: `SELECT value FROM kv WHERE key = $1`,
		putSQL: `INSERT INTO kv (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		closeFn: pool.Close,
	}, nil
}

// migrate brings the kv schema up to date.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, blobType string) error {
	createKV := goose.NewGoMigration(1,
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (
				key TEXT PRIMARY KEY,
				value `+blobType+` NOT NULL
			)`)
			return err
		}},
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DROP TABLE kv`)
			return err
		}},
	)

	p, err := goose.NewProvider(dialect, db, nil, goose.WithGoMigrations(createKV))
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	for _, r := range results {
		appLog.Info("store migration applied", "version", r.Source.Version, "dialect", string(dialect))
	}
	return nil
}

func (s *SQLBlobs) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(s.getSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoBlob
	}
	return value, err
}

func (s *SQLBlobs) Put(key string, value []byte) error {
	_, err := s.db.Exec(s.putSQL, key, value)
	return err
}

func (s *SQLBlobs) Close() error {
	err := s.db.Close()
	if s.closeFn != nil {
		s.closeFn()
	}
	return err
}
