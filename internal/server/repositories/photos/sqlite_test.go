package photos

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/biterate/internal/common"
	"github.com/dmitrijs2005/biterate/internal/server/models"
)

const sqliteSchema = `
CREATE TABLE photos (
    id                TEXT PRIMARY KEY,
    storage_key       TEXT NOT NULL UNIQUE,
    original_filename TEXT NOT NULL DEFAULT '',
    content_type      TEXT NOT NULL,
    file_size         INTEGER NOT NULL,
    upload_date       TEXT NOT NULL
)`

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "photos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return NewSQLiteRepository(db)
}

func TestSQLiteRepository_CreateGetDelete(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := samplePhoto()
	p.UploadDate = time.Date(2024, 10, 27, 3, 33, 20, 123456789, time.UTC)

	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
	assert.Equal(t, time.UTC, got.UploadDate.Location())

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLiteRepository_StoresUTC(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := samplePhoto()
	p.UploadDate = time.Date(2024, 10, 27, 5, 0, 0, 0, time.FixedZone("EET", 2*3600))

	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.UploadDate.Equal(p.UploadDate))
	assert.Equal(t, 3, got.UploadDate.Hour())
}

func TestSQLiteRepository_DuplicateIDFails(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := samplePhoto()

	require.NoError(t, repo.Create(ctx, p))

	dup := *p
	dup.StorageKey = "173000/0cc175b9c0f1b6a831c399e269772661_1730000000001.txt"
	err := repo.Create(ctx, &dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
	assert.NotErrorIs(t, err, common.ErrorDuplicateKey)
}

func TestSQLiteRepository_DuplicateStorageKey(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := samplePhoto()

	require.NoError(t, repo.Create(ctx, p))

	dup := *p
	dup.ID = "c9f0f895-fb98-4b91-9d4c-77c3d2a1b0e9"
	dup.OriginalFilename = "copy.txt"
	err := repo.Create(ctx, &dup)
	require.ErrorIs(t, err, common.ErrorDuplicateKey)

	_, err = repo.GetByID(ctx, dup.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLiteRepository_EmptyFilenameRoundTrips(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	p := samplePhoto()
	p.OriginalFilename = ""

	require.NoError(t, repo.Create(ctx, p))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.OriginalFilename)
}

func TestSQLiteRepository_MissingRecords(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "ghost"), common.ErrorNotFound)
}

func TestSQLiteRepository_ClosedDBErrors(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	repo := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	ctx := context.Background()
	err = repo.Create(ctx, &models.Photo{ID: "p1"})
	assert.Contains(t, err.Error(), "db error")
	_, err = repo.GetByID(ctx, "p1")
	assert.Contains(t, err.Error(), "db error")
	assert.Contains(t, repo.Delete(ctx, "p1").Error(), "db error")
}
