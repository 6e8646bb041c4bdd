package blobstore

import (
	"context"
	"errors"
	"io"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/dmitrijs2005/biterate/internal/logging"
)

// RetryingStore wraps a BlobStore and retries transient failures with
// exponential backoff. Missing blobs, invalid keys and cancelled contexts are
// returned immediately.
type RetryingStore struct {
	delegate     BlobStore
	buildBackoff func() backoff.BackOff
	logger       logging.Logger
}

// DefaultBackoff retries for at most maxElapsed, starting at 100ms.
func DefaultBackoff(maxElapsed time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxElapsedTime = maxElapsed
		return b
	}
}

func NewRetryingStore(delegate BlobStore, factory func() backoff.BackOff, logger logging.Logger) *RetryingStore {
	if factory == nil {
		factory = DefaultBackoff(3 * time.Second)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &RetryingStore{delegate: delegate, buildBackoff: factory, logger: logger.With("module", "retrying_blobstore")}
}

// Put is retried only when r can be rewound; a plain stream gets one attempt.
func (s *RetryingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	seeker, ok := r.(io.Seeker)
	if !ok {
		return s.delegate.Put(ctx, key, r, size, contentType)
	}

	attempt := 0
	return s.retry(ctx, "put", key, func() error {
		if attempt > 0 {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
		}
		attempt++
		return s.delegate.Put(ctx, key, r, size, contentType)
	})
}

func (s *RetryingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.retry(ctx, "get", key, func() error {
		var err error
		rc, err = s.delegate.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (s *RetryingStore) Delete(ctx context.Context, key string) error {
	return s.retry(ctx, "delete", key, func() error { return s.delegate.Delete(ctx, key) })
}

func (s *RetryingStore) EnsureBucket(ctx context.Context) error {
	return s.retry(ctx, "ensure_bucket", "", func() error { return s.delegate.EnsureBucket(ctx) })
}

func (s *RetryingStore) retry(ctx context.Context, op, key string, fn func() error) error {
	b := backoff.WithContext(s.buildBackoff(), ctx)
	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn(ctx, "retrying blob operation", "op", op, "key", key, "wait", wait, "error", err)
	}
	return backoff.RetryNotify(wrapped, b, notify)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrBlobNotFound) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

var _ BlobStore = (*RetryingStore)(nil)
