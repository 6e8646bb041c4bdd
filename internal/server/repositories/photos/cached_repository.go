package photos

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dmitrijs2005/biterate/internal/server/models"
)

const defaultCacheSize = 1024

// CachedRepository keeps recently used records in an LRU in front of another
// Repository. Records are immutable once created, so entries only leave the
// cache on Delete or eviction.
type CachedRepository struct {
	delegate Repository
	cache    *lru.Cache[string, models.Photo]
}

// NewCachedRepository wraps delegate. A non-positive size uses the default.
func NewCachedRepository(delegate Repository, size int) (*CachedRepository, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, models.Photo](size)
	if err != nil {
		return nil, fmt.Errorf("creating metadata cache: %w", err)
	}
	return &CachedRepository{delegate: delegate, cache: cache}, nil
}

func (r *CachedRepository) Create(ctx context.Context, p *models.Photo) error {
	if err := r.delegate.Create(ctx, p); err != nil {
		return err
	}
	r.cache.Add(p.ID, *p)
	return nil
}

func (r *CachedRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	if p, ok := r.cache.Get(id); ok {
		return &p, nil
	}

	p, err := r.delegate.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, *p)
	return p, nil
}

func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	r.cache.Remove(id)
	return r.delegate.Delete(ctx, id)
}

// Len reports the number of cached records.
func (r *CachedRepository) Len() int {
	return r.cache.Len()
}

var (
	_ Repository = (*CachedRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*SQLiteRepository)(nil)
)
