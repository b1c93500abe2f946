package channels

import (
	"context"

	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ch *models.Channel) error
}
