package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/biterate/internal/common"
	"github.com/dmitrijs2005/biterate/internal/dbx"
	"github.com/dmitrijs2005/biterate/internal/server/models"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Photo) error {
	query :=
		`INSERT INTO photos (id, storage_key, original_filename, content_type, file_size, upload_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.StorageKey, p.OriginalFilename, p.ContentType, p.FileSize, p.UploadDate.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("storage key %q: %w", p.StorageKey, common.ErrorDuplicateKey)
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query :=
		`SELECT id, storage_key, original_filename, content_type, file_size, upload_date
		 FROM photos
		 WHERE id = $1
		 `

	p := &models.Photo{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.StorageKey, &p.OriginalFilename, &p.ContentType, &p.FileSize, &p.UploadDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.UploadDate = p.UploadDate.UTC()

	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM photos WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
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
