package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmitrijs2005/biterate/internal/common"
	"github.com/dmitrijs2005/biterate/internal/dbx"
	"github.com/dmitrijs2005/biterate/internal/server/models"
)

// SQLiteRepository stores upload_date as RFC3339Nano text in UTC, which
// keeps lexical and chronological order aligned.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, p *models.Photo) error {
	query :=
		`INSERT INTO photos (id, storage_key, original_filename, content_type, file_size, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?)
		 `

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.StorageKey, p.OriginalFilename, p.ContentType, p.FileSize,
		p.UploadDate.UTC().Format(time.RFC3339Nano))
	if err != nil {
		// the id is the primary key, so a plain UNIQUE violation is storage_key
		var sqErr *sqlite.Error
		if errors.As(err, &sqErr) && sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("storage key %q: %w", p.StorageKey, common.ErrorDuplicateKey)
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query :=
		`SELECT id, storage_key, original_filename, content_type, file_size, upload_date
		 FROM photos
		 WHERE id = ?
		 `

	p := &models.Photo{}
	var uploaded string
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.StorageKey, &p.OriginalFilename, &p.ContentType, &p.FileSize, &uploaded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	p.UploadDate, err = time.Parse(time.RFC3339Nano, uploaded)
	if err != nil {
		return nil, fmt.Errorf("parsing upload_date %q: %w", uploaded, err)
	}
	p.UploadDate = p.UploadDate.UTC()

	return p, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
