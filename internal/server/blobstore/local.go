package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/dmitrijs2005/biterate/internal/logging"
)

const (
	localTempDirName = ".tmp"
	localBlobDirName = "blobs"
	compressedSuffix = ".zst"
)

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithCompression stores blob payloads zstd-compressed on disk. Readers
// returned by Get always yield the original bytes.
func WithCompression(enabled bool) LocalOption {
	return func(s *LocalStore) {
		s.compress = enabled
	}
}

// WithLocalLogger sets the logger used by the store.
func WithLocalLogger(l logging.Logger) LocalOption {
	return func(s *LocalStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// LocalStore keeps blobs as files under root/blobs, one file per key. Keys
// map to relative paths, so the time partition of a photo key becomes a
// directory. Compressed blobs carry a .zst suffix; Get and Delete find a blob
// in either form, so toggling compression keeps existing blobs readable.
type LocalStore struct {
	root     string
	compress bool
	logger   logging.Logger
}

func NewLocalStore(root string, opts ...LocalOption) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	s := &LocalStore{root: abs, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "local_blobstore")
	return s, nil
}

// EnsureBucket creates the blob and temp directories.
func (s *LocalStore) EnsureBucket(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(s.root, localBlobDirName), 0o755); err != nil {
		return fmt.Errorf("creating blobs directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.root, localTempDirName), 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	return nil
}

// Put writes into a temp file and renames it into place, so readers never
// observe a partially written blob. A cancelled ctx aborts the copy.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	paths, err := s.pathsFromKey(key)
	if err != nil {
		return err
	}
	dst := paths[0]
	if r == nil {
		return errors.New("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, localTempDirName), "put-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := s.copyPayload(ctx, tmp, r); err != nil {
		return fmt.Errorf("writing blob %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing blob %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing blob %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("committing blob %q: %w", key, err)
	}
	committed = true

	// an older copy in the other format would otherwise outlive this write
	if err := os.Remove(paths[1]); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn(ctx, "removing stale blob copy", "key", key, "error", err)
	}

	s.logger.Debug(ctx, "blob stored", "key", key, "size", size, "compressed", s.compress)
	return nil
}

func (s *LocalStore) copyPayload(ctx context.Context, w io.Writer, r io.Reader) error {
	src := &ctxReader{ctx: ctx, r: r}
	if !s.compress {
		_, err := io.Copy(w, src)
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	paths, err := s.pathsFromKey(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("get blob %q: %w", key, err)
		}
		// paths[0] is compressed exactly when compression is on
		if compressed := (i == 0) == s.compress; !compressed {
			return f, nil
		}

		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("opening compressed blob %q: %w", key, err)
		}
		return &zstdReadCloser{dec: dec, f: f}, nil
	}
	return nil, fmt.Errorf("blob %q: %w", key, ErrBlobNotFound)
}

// Delete is idempotent: a missing blob is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	paths, err := s.pathsFromKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete blob %q: %w", key, err)
		}
	}
	s.cleanupEmptyDirs(filepath.Dir(paths[0]))
	return nil
}

// pathsFromKey returns the path written under the current compression
// setting first, then the path used by the other setting.
func (s *LocalStore) pathsFromKey(key string) ([2]string, error) {
	if err := ValidateKey(key); err != nil {
		return [2]string{}, err
	}
	plain := filepath.Join(s.root, localBlobDirName, filepath.FromSlash(key))
	if s.compress {
		return [2]string{plain + compressedSuffix, plain}, nil
	}
	return [2]string{plain, plain + compressedSuffix}, nil
}

// cleanupEmptyDirs removes empty partition directories left by Delete,
// stopping at the blobs directory or the first non-empty parent.
func (s *LocalStore) cleanupEmptyDirs(dir string) {
	blobsDir := filepath.Join(s.root, localBlobDirName)
	for dir != blobsDir && len(dir) > len(blobsDir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
