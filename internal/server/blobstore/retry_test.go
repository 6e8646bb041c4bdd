package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	BlobStore
	failures int
	err      error
	calls    int
	bodies   []string
}

func (f *flakyStore) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) Put(_ context.Context, _ string, r io.Reader, _ int64, _ string) error {
	b, _ := io.ReadAll(r)
	f.bodies = append(f.bodies, string(b))
	return f.fail()
}

func (f *flakyStore) Get(context.Context, string) (io.ReadCloser, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("ok")), nil
}

func (f *flakyStore) Delete(context.Context, string) error { return f.fail() }

func (f *flakyStore) EnsureBucket(context.Context) error { return f.fail() }

func fastBackoff(retries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries)
	}
}

func TestRetryingStore_PutRewindsSeekableReader(t *testing.T) {
	inner := &flakyStore{failures: 2, err: errors.New("transient")}
	s := NewRetryingStore(inner, fastBackoff(5), nil)

	err := s.Put(context.Background(), testKey, bytes.NewReader([]byte("payload")), 7, "")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []string{"payload", "payload", "payload"}, inner.bodies)
}

func TestRetryingStore_PutStreamSingleAttempt(t *testing.T) {
	inner := &flakyStore{failures: 1, err: errors.New("transient")}
	s := NewRetryingStore(inner, fastBackoff(5), nil)

	r := io.MultiReader(strings.NewReader("payload"))
	err := s.Put(context.Background(), testKey, r, 7, "")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingStore_GiveUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("still down")
	inner := &flakyStore{failures: 10, err: boom}
	s := NewRetryingStore(inner, fastBackoff(2), nil)

	err := s.Delete(context.Background(), testKey)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStore_PermanentErrorsNotRetried(t *testing.T) {
	for _, perm := range []error{ErrBlobNotFound, ErrInvalidKey, context.Canceled} {
		inner := &flakyStore{failures: 10, err: perm}
		s := NewRetryingStore(inner, fastBackoff(5), nil)

		_, err := s.Get(context.Background(), testKey)
		require.ErrorIs(t, err, perm)
		assert.Equal(t, 1, inner.calls, perm.Error())
	}
}

func TestRetryingStore_GetAndEnsureBucketRecover(t *testing.T) {
	inner := &flakyStore{failures: 1, err: errors.New("transient")}
	s := NewRetryingStore(inner, fastBackoff(3), nil)

	rc, err := s.Get(context.Background(), testKey)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "ok", string(b))

	inner.calls = 0
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingStore_StopsOnContextCancel(t *testing.T) {
	inner := &flakyStore{failures: 100, err: errors.New("transient")}
	s := NewRetryingStore(inner, func() backoff.BackOff { return &backoff.ZeroBackOff{} }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Delete(ctx, testKey)
	require.Error(t, err)
	assert.LessOrEqual(t, inner.calls, 1)
}

func TestDefaultBackoff_UsesMaxElapsed(t *testing.T) {
	b := DefaultBackoff(0)()
	eb, ok := b.(*backoff.ExponentialBackOff)
	require.True(t, ok)
	assert.Zero(t, eb.MaxElapsedTime)
}
