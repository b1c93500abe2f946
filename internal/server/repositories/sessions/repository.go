package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.CaptureSession) error
	// GetActive returns the active session id owned by channelID.
	GetActive(ctx context.Context, id, channelID string) (*models.CaptureSession, error)
	// GetActiveByID returns the active session id regardless of owner; the
	// caller must check the finalize token itself.
	GetActiveByID(ctx context.Context, id string) (*models.CaptureSession, error)
	Get(ctx context.Context, id, channelID string) (*models.CaptureSession, error)
	RecordUpload(ctx context.Context, id string, at time.Time) error
	// Complete moves an active session to completed. It reports false when
	// the session was not active (already completed or gone).
	Complete(ctx context.Context, id string, endedAt time.Time) (bool, error)
	List(ctx context.Context, channelID string, status models.SessionStatus) ([]*models.CaptureSession, error)
	ListIdle(ctx context.Context, before time.Time) ([]*models.CaptureSession, error)
	Delete(ctx context.Context, id, channelID string) error
}
