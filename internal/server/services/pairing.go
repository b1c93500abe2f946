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

const (
	pairingCodeDigits = 6
	// codeAttempts bounds retries when a freshly drawn code collides with a
	// live one.
	codeAttempts = 3
)

// ChannelCredentials is returned once, when a channel is created.
type ChannelCredentials struct {
	ChannelID string
	APIKey    string
}

type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

// Redemption hands the second party its key and the opaque channel key blob.
type Redemption struct {
	ChannelID           string
	APIKey              string
	EncryptedChannelKey string
}

// PairingService issues channels and pairing codes and redeems codes into
// client keys. It never sees message content.
type PairingService struct {
	db          dbx.DBTX
	tx          dbx.Transactor
	repomanager repomanager.RepositoryManager
	metrics     *metrics.Metrics
	logger      logging.Logger
	codeTTL     time.Duration
	clock       clock
}

func NewPairingService(db dbx.DBTX, tx dbx.Transactor, rm repomanager.RepositoryManager, m *metrics.Metrics, logger logging.Logger, codeTTL time.Duration) *PairingService {
	return &PairingService{
		db:          db,
		tx:          tx,
		repomanager: rm,
		metrics:     m,
		logger:      logger.With("module", "pairing"),
		codeTTL:     codeTTL,
		clock:       time.Now,
	}
}

// CreateChannel creates a channel together with its agent key in one
// transaction and returns the plaintext key.
func (s *PairingService) CreateChannel(ctx context.Context) (*ChannelCredentials, error) {
	key, err := auth.NewAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	now := s.clock.now()
	channel := &models.Channel{ID: newID(), CreatedAt: now}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Channels(tx).Create(ctx, channel); err != nil {
			return err
		}
		return s.repomanager.APIKeys(tx).Create(ctx, &models.APIKey{
			ID:        newID(),
			ChannelID: channel.ID,
			KeyHash:   auth.HashKey(key),
			Label:     models.LabelAgent,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	s.logger.Info(ctx, "channel created", "channel_id", channel.ID)
	return &ChannelCredentials{ChannelID: channel.ID, APIKey: key}, nil
}

// CreatePairingCode issues a 6-digit code carrying a fresh client key and the
// caller's encrypted channel key. Only a key of channelID may do this.
func (s *PairingService) CreatePairingCode(ctx context.Context, id *auth.Identity, channelID, encryptedChannelKey string) (*IssuedCode, error) {
	if id.ChannelID != channelID {
		return nil, fmt.Errorf("%w: key does not belong to channel", common.ErrorForbidden)
	}
	if encryptedChannelKey == "" {
		return nil, fmt.Errorf("%w: encryptedChannelKey is required", common.ErrorInvalidRequest)
	}

	clientKey, err := auth.NewAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	expiresAt := s.clock.now().Add(s.codeTTL)
	repo := s.repomanager.PairingCodes(s.db)

	for attempt := 1; ; attempt++ {
		code, err := common.MakeNumericCode(pairingCodeDigits)
		if err != nil {
			return nil, fmt.Errorf("generate pairing code: %w", err)
		}
		err = repo.Create(ctx, &models.PairingCode{
			Code:                code,
			ChannelID:           channelID,
			APIKey:              clientKey,
			EncryptedChannelKey: encryptedChannelKey,
			ExpiresAt:           expiresAt,
		})
		if err == nil {
			s.metrics.PairingCodesIssued.Inc()
			s.logger.Info(ctx, "pairing code issued", "channel_id", channelID, "expires_at", expiresAt)
			return &IssuedCode{Code: code, ExpiresAt: expiresAt}, nil
		}
		if !dbx.IsUniqueViolation(err) || attempt == codeAttempts {
			return nil, fmt.Errorf("store pairing code: %w", err)
		}
		s.logger.Debug(ctx, "pairing code collision, retrying", "attempt", attempt)
	}
}

// RedeemPairingCode marks the code used and records the client key in one
// transaction. An unknown code is common.ErrorNotFound; a used or expired
// one is common.ErrorGone, also for every loser of a concurrent race.
func (s *PairingService) RedeemPairingCode(ctx context.Context, code, label string) (*Redemption, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", common.ErrorInvalidRequest)
	}
	if label == "" {
		label = models.LabelClient
	}

	p, err := s.repomanager.PairingCodes(s.db).Get(ctx, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.PairingRedemptions.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: invalid pairing code", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("load pairing code: %w", err)
	}

	now := s.clock.now()
	if p.Used {
		s.metrics.PairingRedemptions.WithLabelValues("gone").Inc()
		return nil, fmt.Errorf("%w: pairing code already used", common.ErrorGone)
	}
	if p.Expired(now) {
		s.metrics.PairingRedemptions.WithLabelValues("gone").Inc()
		return nil, fmt.Errorf("%w: pairing code expired", common.ErrorGone)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.PairingCodes(tx).MarkUsed(ctx, code, now); err != nil {
			return err
		}
		return s.repomanager.APIKeys(tx).Create(ctx, &models.APIKey{
			ID:        newID(),
			ChannelID: p.ChannelID,
			KeyHash:   auth.HashKey(p.APIKey),
			Label:     label,
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, common.ErrorGone) {
			s.metrics.PairingRedemptions.WithLabelValues("gone").Inc()
			return nil, fmt.Errorf("%w: pairing code already used", common.ErrorGone)
		}
		return nil, fmt.Errorf("redeem pairing code: %w", err)
	}

	s.metrics.PairingRedemptions.WithLabelValues("ok").Inc()
	s.logger.Info(ctx, "pairing code redeemed", "channel_id", p.ChannelID, "label", label)
	return &Redemption{ChannelID: p.ChannelID, APIKey: p.APIKey, EncryptedChannelKey: p.EncryptedChannelKey}, nil
}

// RevokeKey soft-deletes a key of the caller's channel.
func (s *PairingService) RevokeKey(ctx context.Context, id *auth.Identity, keyID string) error {
	if err := s.repomanager.APIKeys(s.db).Revoke(ctx, keyID, id.ChannelID, s.clock.now()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: api key", common.ErrorNotFound)
		}
		return fmt.Errorf("revoke api key: %w", err)
	}
	s.logger.Info(ctx, "api key revoked", "channel_id", id.ChannelID, "key_id", keyID)
	return nil
}

// PurgeExpiredCodes drops codes that expired more than one TTL ago. Recently
// expired codes are kept so redemption still reports them as gone.
func (s *PairingService) PurgeExpiredCodes(ctx context.Context) (int64, error) {
	n, err := s.repomanager.PairingCodes(s.db).DeleteExpired(ctx, s.clock.now().Add(-s.codeTTL))
	if err != nil {
		return 0, fmt.Errorf("purge pairing codes: %w", err)
	}
	return n, nil
}
