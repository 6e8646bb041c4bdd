// Package repomanager vends metadata repositories for a configured SQL
// backend and runs the matching goose migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/biterate/internal/dbx"
	"github.com/dmitrijs2005/biterate/internal/server/repositories/photos"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Photos(db dbx.DBTX) photos.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// New returns the manager for backend ("postgres" or "sqlite").
func New(backend string) (RepositoryManager, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendPostgres, "pg", "pgx":
		return NewPostgresRepositoryManager(), nil
	case BackendSQLite, "sqlite3":
		return NewSQLiteRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unsupported metadata backend %q", backend)
	}
}

// Open connects to the backend, verifies the connection and applies
// migrations. The caller owns the returned *sql.DB.
func Open(ctx context.Context, backend, dsn string) (*sql.DB, RepositoryManager, error) {
	m, err := New(backend)
	if err != nil {
		return nil, nil, err
	}

	var driver string
	switch m.(type) {
	case *SQLiteRepositoryManager:
		driver = sqliteDriverName
		dsn = sqliteDSN(dsn)
	default:
		driver = postgresDriverName
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == sqliteDriverName {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	return db, m, nil
}
