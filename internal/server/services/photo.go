package services

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/biterate/internal/common"
	"github.com/dmitrijs2005/biterate/internal/logging"
	"github.com/dmitrijs2005/biterate/internal/server/blobstore"
	"github.com/dmitrijs2005/biterate/internal/server/models"
	"github.com/dmitrijs2005/biterate/internal/server/repositories/photos"
)

const (
	opUpload      = "upload"
	opRetrieve    = "retrieve"
	opLookup      = "lookup"
	opDeleteBlob  = "delete_blob"
	opDeletePhoto = "delete_photo"

	// maxKeyAttempts bounds how many consecutive milliseconds Upload tries
	// when identical content already owns the key.
	maxKeyAttempts = 16
)

// UploadInput describes one incoming photo. Size is the declared length, or
// -1 when unknown; the stored FileSize is always the counted byte total.
type UploadInput struct {
	Content     io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type Option func(*PhotoService)

func WithLogger(l logging.Logger) Option {
	return func(s *PhotoService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for upload dates and storage keys.
func WithClock(now func() time.Time) Option {
	return func(s *PhotoService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *PhotoService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *PhotoService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithStagingDir sets where upload spools are written. Empty means the
// system temp directory.
func WithStagingDir(dir string) Option {
	return func(s *PhotoService) {
		s.stagingDir = dir
	}
}

// PhotoService coordinates the blob store and the metadata index. A
// metadata record is only written after its blob is durably stored.
type PhotoService struct {
	blobs      blobstore.BlobStore
	index      photos.Repository
	keys       *KeyGenerator
	logger     logging.Logger
	observer   Observer
	now        func() time.Time
	newID      func() string
	stagingDir string
}

func NewPhotoService(blobs blobstore.BlobStore, index photos.Repository, opts ...Option) *PhotoService {
	s := &PhotoService{
		blobs:    blobs,
		index:    index,
		logger:   logging.Nop(),
		observer: nopObserver{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.keys = NewKeyGenerator()
	s.logger = s.logger.With("module", "photo_service")
	return s
}

// Upload stages the content while hashing it, stores the blob under a key
// derived from the digest and then records the metadata. When the key is
// already indexed (same bytes and extension in the same millisecond), the
// key timestamp advances by one millisecond and the write is repeated. The
// overwritten blob held identical bytes, so the earlier record is unaffected.
func (s *PhotoService) Upload(ctx context.Context, in UploadInput) (p *models.Photo, err error) {
	start := time.Now()
	defer func() {
		s.observer.RecordOperation(opUpload, time.Since(start), err)
		if err == nil {
			s.observer.RecordUploadedBytes(p.FileSize)
		}
	}()

	if in.Content == nil {
		return nil, newError(KindInvalidInput, opUpload, in.Filename, errors.New("content is required"))
	}

	spool, err := os.CreateTemp(s.stagingDir, "upload-*")
	if err != nil {
		return nil, newError(KindStorageWrite, opUpload, in.Filename, err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	src := &trackingReader{ctx: ctx, r: in.Content}
	digest := s.keys.NewDigest()
	n, err := io.Copy(io.MultiWriter(spool, digest), src)
	if err != nil {
		if src.err != nil {
			return nil, newError(KindInvalidInput, opUpload, in.Filename, src.err)
		}
		return nil, newError(KindStorageWrite, opUpload, in.Filename, err)
	}
	if n == 0 {
		return nil, newError(KindInvalidInput, opUpload, in.Filename, errors.New("content is empty"))
	}
	if in.Size > 0 && in.Size != n {
		s.logger.Debug(ctx, "declared size differs from streamed size", "declared", in.Size, "streamed", n)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = common.DefaultContentType
	}

	sum := digest.Sum(nil)
	at := s.now()
	p = &models.Photo{
		ID:               s.newID(),
		OriginalFilename: in.Filename,
		ContentType:      contentType,
		FileSize:         n,
		UploadDate:       at.UTC(),
	}

	for attempt := 0; ; attempt++ {
		key := s.keys.Generate(sum, in.Filename, at.Add(time.Duration(attempt)*time.Millisecond))
		p.StorageKey = key

		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return nil, newError(KindStorageWrite, opUpload, in.Filename, err)
		}
		if err := s.blobs.Put(ctx, key, spool, n, contentType); err != nil {
			s.logger.Error(ctx, "blob write failed", "storage_key", key, "error", err)
			return nil, newError(KindStorageWrite, opUpload, key, err)
		}

		err := s.index.Create(ctx, p)
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrorDuplicateKey) {
			if attempt+1 < maxKeyAttempts {
				s.logger.Debug(ctx, "storage key already indexed, advancing timestamp", "storage_key", key, "attempt", attempt)
				continue
			}
			// the blob under key belongs to an existing record and is not orphaned
			s.logger.Warn(ctx, "storage key still indexed after retries", "storage_key", key, "id", p.ID, "attempts", maxKeyAttempts)
			return nil, newError(KindIndexWrite, opUpload, p.ID, err)
		}
		s.logger.Warn(ctx, "metadata write failed, blob orphaned", "storage_key", key, "id", p.ID, "error", err)
		return nil, newError(KindIndexWrite, opUpload, p.ID, err)
	}

	s.logger.Info(ctx, "photo uploaded", "id", p.ID, "storage_key", p.StorageKey, "size", n)
	return p, nil
}

// Retrieve returns the record and an open reader over its bytes. The caller
// must close the reader.
func (s *PhotoService) Retrieve(ctx context.Context, id string) (p *models.Photo, rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() { s.observer.RecordOperation(opRetrieve, time.Since(start), err) }()

	p, err = s.lookup(ctx, opRetrieve, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err = s.blobs.Get(ctx, p.StorageKey)
	if err != nil {
		s.logger.Error(ctx, "blob read failed", "id", id, "storage_key", p.StorageKey, "error", err)
		return nil, nil, newError(KindStorageRead, opRetrieve, id, err)
	}
	return p, rc, nil
}

// Lookup returns the metadata record only.
func (s *PhotoService) Lookup(ctx context.Context, id string) (p *models.Photo, err error) {
	start := time.Now()
	defer func() { s.observer.RecordOperation(opLookup, time.Since(start), err) }()

	return s.lookup(ctx, opLookup, id)
}

func (s *PhotoService) lookup(ctx context.Context, op, id string) (*models.Photo, error) {
	if id == "" {
		return nil, newError(KindNotFound, op, id, common.ErrorNotFound)
	}
	p, err := s.index.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, newError(KindNotFound, op, id, err)
		}
		return nil, newError(KindIndexRead, op, id, err)
	}
	return p, nil
}

// DeleteBlob removes the blob stored under key and leaves any metadata
// record pointing at it untouched. Deleting a missing blob succeeds.
func (s *PhotoService) DeleteBlob(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.observer.RecordOperation(opDeleteBlob, time.Since(start), err) }()

	if err := s.blobs.Delete(ctx, key); err != nil {
		if errors.Is(err, blobstore.ErrInvalidKey) {
			return newError(KindInvalidInput, opDeleteBlob, key, err)
		}
		return newError(KindStorageDelete, opDeleteBlob, key, err)
	}
	s.logger.Info(ctx, "blob deleted", "storage_key", key)
	return nil
}

// DeletePhoto removes the record and then its blob. A blob delete failure
// after the record is gone leaves an orphan blob.
func (s *PhotoService) DeletePhoto(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observer.RecordOperation(opDeletePhoto, time.Since(start), err) }()

	p, err := s.lookup(ctx, opDeletePhoto, id)
	if err != nil {
		return err
	}

	if err := s.index.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return newError(KindNotFound, opDeletePhoto, id, err)
		}
		return newError(KindIndexWrite, opDeletePhoto, id, err)
	}

	if err := s.blobs.Delete(ctx, p.StorageKey); err != nil {
		s.logger.Warn(ctx, "blob delete failed, blob orphaned", "id", id, "storage_key", p.StorageKey, "error", err)
		return newError(KindStorageDelete, opDeletePhoto, id, err)
	}

	s.logger.Info(ctx, "photo deleted", "id", id, "storage_key", p.StorageKey)
	return nil
}

// trackingReader remembers read-side failures so they can be told apart
// from spool write failures, and stops once ctx is done.
type trackingReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return 0, err
	}
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
