// Package profiles persists the CLI's channel profiles in sqlite.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/dropbox/internal/client/models"
)

// Repository stores profiles by name. Missing profiles are reported as
// common.ErrorNotFound.
type Repository interface {
	// Save inserts or replaces a profile. An existing cursor is kept.
	Save(ctx context.Context, p *models.Profile) error
	Get(ctx context.Context, name string) (*models.Profile, error)
	// List returns all profiles ordered by name.
	List(ctx context.Context) ([]*models.Profile, error)
	Delete(ctx context.Context, name string) error
	SetCursor(ctx context.Context, name, cursor string) error
}
