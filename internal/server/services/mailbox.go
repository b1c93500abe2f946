package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/repomanager"
)

// NewMessage is an opaque ciphertext to append to the caller's mailbox.
type NewMessage struct {
	Sender      string
	ContentType *string
	Body        []byte
	Nonce       []byte
}

// MailboxService appends, lists and acknowledges messages. Every operation
// is scoped to the caller's channel.
type MailboxService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	metrics     *metrics.Metrics
	logger      logging.Logger
	clock       clock
}

func NewMailboxService(db dbx.DBTX, rm repomanager.RepositoryManager, m *metrics.Metrics, logger logging.Logger) *MailboxService {
	return &MailboxService{
		db:          db,
		repomanager: rm,
		metrics:     m,
		logger:      logger.With("module", "mailbox"),
		clock:       time.Now,
	}
}

func (s *MailboxService) PostMessage(ctx context.Context, id *auth.Identity, in NewMessage) (*models.Message, error) {
	if in.Sender == "" || len(in.Body) == 0 || len(in.Nonce) == 0 {
		return nil, fmt.Errorf("%w: sender, body, and nonce are required", common.ErrorInvalidRequest)
	}

	msg := &models.Message{
		ID:          newID(),
		ChannelID:   id.ChannelID,
		Sender:      in.Sender,
		ContentType: in.ContentType,
		Body:        in.Body,
		Nonce:       in.Nonce,
		CreatedAt:   s.clock.now(),
	}
	if err := s.repomanager.Messages(s.db).Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	s.metrics.MessagesPosted.Inc()
	s.logger.Debug(ctx, "message stored", "channel_id", id.ChannelID, "message_id", msg.ID, "size", len(msg.Body))
	return msg, nil
}

// GetMessages lists the mailbox oldest first, only messages strictly newer
// than since when it is set.
func (s *MailboxService) GetMessages(ctx context.Context, id *auth.Identity, since *time.Time) ([]*models.Message, error) {
	msgs, err := s.repomanager.Messages(s.db).List(ctx, id.ChannelID, since)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *MailboxService) DeleteMessage(ctx context.Context, id *auth.Identity, messageID string) error {
	if err := s.repomanager.Messages(s.db).Delete(ctx, messageID, id.ChannelID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: message not found", common.ErrorNotFound)
		}
		return fmt.Errorf("delete message: %w", err)
	}
	s.metrics.MessagesDeleted.Inc()
	return nil
}
