package apikeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindActiveByHash(ctx context.Context, hash string) (*models.APIKey, error)
	Revoke(ctx context.Context, id, channelID string, at time.Time) error
	ListByChannel(ctx context.Context, channelID string) ([]*models.APIKey, error)
}
