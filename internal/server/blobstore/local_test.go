package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T, opts ...LocalOption) (*LocalStore, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewLocalStore(root, opts...)
	require.NoError(t, err)
	require.NoError(t, s.EnsureBucket(context.Background()))
	return s, root
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}

func TestNewLocalStore_RequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	require.Error(t, err)
}

func TestLocalStore_PutGetDelete(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			s, root := newLocalStore(t, WithCompression(compress))
			ctx := context.Background()
			payload := bytes.Repeat([]byte("abc"), 4096)

			require.NoError(t, s.Put(ctx, testKey, bytes.NewReader(payload), int64(len(payload)), "text/plain"))

			rc, err := s.Get(ctx, testKey)
			require.NoError(t, err)
			assert.Equal(t, payload, readAll(t, rc))

			onDisk := filepath.Join(root, localBlobDirName, "173000", "900150983cd24fb0d6963f7d28e17f72_1730000000000.txt")
			if compress {
				onDisk += compressedSuffix
			}
			info, err := os.Stat(onDisk)
			require.NoError(t, err)
			if compress {
				assert.Less(t, info.Size(), int64(len(payload)))
			} else {
				assert.Equal(t, int64(len(payload)), info.Size())
			}

			require.NoError(t, s.Delete(ctx, testKey))
			_, err = s.Get(ctx, testKey)
			require.ErrorIs(t, err, ErrBlobNotFound)

			_, err = os.Stat(filepath.Join(root, localBlobDirName, "173000"))
			assert.True(t, os.IsNotExist(err), "empty partition directory should be removed")
		})
	}
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testKey, bytes.NewReader([]byte("first")), 5, ""))
	require.NoError(t, s.Put(ctx, testKey, bytes.NewReader([]byte("second")), 6, ""))

	rc, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), readAll(t, rc))
}

func TestLocalStore_EmptyBlob(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testKey, bytes.NewReader(nil), 0, ""))
	rc, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Empty(t, readAll(t, rc))
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	s, _ := newLocalStore(t)
	require.NoError(t, s.Delete(context.Background(), testKey))
}

func TestLocalStore_DeleteKeepsNonEmptyPartition(t *testing.T) {
	s, root := newLocalStore(t)
	ctx := context.Background()
	other := "173000/0cc175b9c0f1b6a831c399e269772661_1730000000001.txt"

	require.NoError(t, s.Put(ctx, testKey, bytes.NewReader([]byte("a")), 1, ""))
	require.NoError(t, s.Put(ctx, other, bytes.NewReader([]byte("b")), 1, ""))
	require.NoError(t, s.Delete(ctx, testKey))

	_, err := os.Stat(filepath.Join(root, localBlobDirName, "173000"))
	require.NoError(t, err)

	rc, err := s.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), readAll(t, rc))
}

func TestLocalStore_RejectsInvalidKeys(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "/abs/path", "a//b", "a/./b"} {
		require.ErrorIs(t, s.Put(ctx, key, bytes.NewReader([]byte("x")), 1, ""), ErrInvalidKey, key)
		_, err := s.Get(ctx, key)
		require.ErrorIs(t, err, ErrInvalidKey, key)
		require.ErrorIs(t, s.Delete(ctx, key), ErrInvalidKey, key)
	}
}

func TestLocalStore_PutCancelledLeavesNoFiles(t *testing.T) {
	s, root := newLocalStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, testKey, bytes.NewReader([]byte("data")), 4, "")
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(filepath.Join(root, localTempDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Get(context.Background(), testKey)
	require.ErrorIs(t, err, ErrBlobNotFound)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestLocalStore_PutReaderErrorCleansTemp(t *testing.T) {
	s, root := newLocalStore(t, WithCompression(true))
	boom := io.ErrUnexpectedEOF

	err := s.Put(context.Background(), testKey, failingReader{err: boom}, 10, "")
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(filepath.Join(root, localTempDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStore_PutRequiresReader(t *testing.T) {
	s, _ := newLocalStore(t)
	require.Error(t, s.Put(context.Background(), testKey, nil, 0, ""))
}

func TestLocalStore_ToggleCompressionKeepsBlobsReachable(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	plain, err := NewLocalStore(root)
	require.NoError(t, err)
	require.NoError(t, plain.EnsureBucket(ctx))
	require.NoError(t, plain.Put(ctx, testKey, bytes.NewReader([]byte("written plain")), 13, ""))

	zstdOn, err := NewLocalStore(root, WithCompression(true))
	require.NoError(t, err)
	other := "173000/0cc175b9c0f1b6a831c399e269772661_1730000000001.txt"
	require.NoError(t, zstdOn.Put(ctx, other, bytes.NewReader([]byte("written zstd")), 12, ""))

	rc, err := zstdOn.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("written plain"), readAll(t, rc))

	rc, err = plain.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []byte("written zstd"), readAll(t, rc))

	require.NoError(t, zstdOn.Delete(ctx, testKey))
	require.NoError(t, plain.Delete(ctx, other))
	_, err = zstdOn.Get(ctx, testKey)
	require.ErrorIs(t, err, ErrBlobNotFound)
	_, err = plain.Get(ctx, other)
	require.ErrorIs(t, err, ErrBlobNotFound)

	_, err = os.Stat(filepath.Join(root, localBlobDirName, "173000"))
	assert.True(t, os.IsNotExist(err), "partition dir should be removed")
}

func TestLocalStore_PutReplacesCopyInOtherFormat(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	plain, err := NewLocalStore(root)
	require.NoError(t, err)
	require.NoError(t, plain.EnsureBucket(ctx))
	require.NoError(t, plain.Put(ctx, testKey, bytes.NewReader([]byte("old")), 3, ""))

	zstdOn, err := NewLocalStore(root, WithCompression(true))
	require.NoError(t, err)
	require.NoError(t, zstdOn.Put(ctx, testKey, bytes.NewReader([]byte("new")), 3, ""))

	base := filepath.Join(root, localBlobDirName, filepath.FromSlash(testKey))
	_, err = os.Stat(base)
	assert.True(t, os.IsNotExist(err), "plain copy should be gone")
	assert.FileExists(t, base+compressedSuffix)

	rc, err := plain.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), readAll(t, rc))
}

func TestLocalStore_ZstExtensionIsNotMistakenForCompression(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()
	key := "173000/900150983cd24fb0d6963f7d28e17f72_1730000000000.zst"

	require.NoError(t, s.Put(ctx, key, bytes.NewReader([]byte("raw")), 3, ""))
	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), readAll(t, rc))
}
