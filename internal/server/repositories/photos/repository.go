// Package photos persists photo metadata records. Implementations return
// common.ErrorNotFound when a record is absent.
package photos

import (
	"context"

	"github.com/dmitrijs2005/biterate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	Delete(ctx context.Context, id string) error
}
