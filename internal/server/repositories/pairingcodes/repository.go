package pairingcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.PairingCode) error
	Get(ctx context.Context, code string) (*models.PairingCode, error)
	MarkUsed(ctx context.Context, code string, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
