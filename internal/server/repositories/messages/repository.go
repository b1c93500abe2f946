package messages

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type Repository interface {
	// Create stores m and sets m.CreatedAt to the assigned timestamp, which is
	// never earlier than m.CreatedAt and strictly after the channel's newest
	// message.
	Create(ctx context.Context, m *models.Message) error
	// List returns the channel's messages with created_at > since (all when
	// since is nil), oldest first.
	List(ctx context.Context, channelID string, since *time.Time) ([]*models.Message, error)
	Delete(ctx context.Context, id, channelID string) error
}
