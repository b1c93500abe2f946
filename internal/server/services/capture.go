package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/logging"
	"github.com/dmitrijs2005/dropbox/internal/server/auth"
	"github.com/dmitrijs2005/dropbox/internal/server/mediastore"
	"github.com/dmitrijs2005/dropbox/internal/server/metrics"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

const (
	finalizeTokenBytes = 32
	defaultSource      = "unknown"
	manifestType       = "application/json"
)

// contentTypes is the closed extension table for uploads. Content is never
// sniffed.
var contentTypes = []struct{ ext, mime string }{
	{".webm", "audio/webm"},
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".png", "image/png"},
}

// ContentTypeFor maps a filename to its stored content type.
func ContentTypeFor(name string) string {
	for _, ct := range contentTypes {
		if strings.HasSuffix(name, ct.ext) {
			return ct.mime
		}
	}
	return "application/octet-stream"
}

// ValidFilename reports whether name can be stored under a session prefix:
// one path segment that is not the manifest.
func ValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." || name == mediastore.ManifestName {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

type SessionCreated struct {
	SessionID     string
	FinalizeToken string
	StartedAt     time.Time
}

// Upload is one file sent to an active session.
type Upload struct {
	Filename  string
	StartedAt string
	Source    string
	Body      []byte
}

type UploadResult struct {
	Uploaded string
	Size     int64
}

// CaptureService runs the capture session lifecycle across the relational
// index and the media store. The two are not updated atomically: a failure
// between them is logged and left for repair.
type CaptureService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	media       mediastore.Store
	metrics     *metrics.Metrics
	logger      logging.Logger
	idleTimeout time.Duration
	presignTTL  time.Duration
	clock       clock
}

func NewCaptureService(db dbx.DBTX, rm repomanager.RepositoryManager, media mediastore.Store, m *metrics.Metrics, logger logging.Logger, idleTimeout, presignTTL time.Duration) *CaptureService {
	return &CaptureService{
		db:          db,
		repomanager: rm,
		media:       media,
		metrics:     m,
		logger:      logger.With("module", "capture"),
		idleTimeout: idleTimeout,
		presignTTL:  presignTTL,
		clock:       time.Now,
	}
}

// CreateSession writes the empty manifest first and the relational row
// second, so an active row always has a manifest.
func (s *CaptureService) CreateSession(ctx context.Context, id *auth.Identity) (*SessionCreated, error) {
	token, err := common.MakeRandHexString(finalizeTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate finalize token: %w", err)
	}
	now := s.clock.now()
	session := &models.CaptureSession{
		ID:             newID(),
		ChannelID:      id.ChannelID,
		StartedAt:      now,
		Status:         models.SessionActive,
		LastActivityAt: now,
		FinalizeToken:  token,
	}

	manifest := models.Manifest{
		SessionID: session.ID,
		ChannelID: session.ChannelID,
		StartedAt: timex.FormatWire(now),
		Files:     []models.ManifestFile{},
	}
	if err := s.putManifest(ctx, session.ChannelID, session.ID, &manifest); err != nil {
		return nil, err
	}

	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		s.logger.Warn(ctx, "manifest written without session row", "session_id", session.ID,
			"key", mediastore.ManifestKey(session.ChannelID, session.ID), "error", err)
		return nil, fmt.Errorf("store capture session: %w", err)
	}

	s.logger.Info(ctx, "capture session started", "channel_id", id.ChannelID, "session_id", session.ID)
	return &SessionCreated{SessionID: session.ID, FinalizeToken: token, StartedAt: now}, nil
}

// UploadFile stores a blob, appends it to the manifest and bumps the
// session's counters, in that order.
func (s *CaptureService) UploadFile(ctx context.Context, id *auth.Identity, sessionID string, in Upload) (*UploadResult, error) {
	if in.Filename == "" || in.StartedAt == "" {
		return nil, fmt.Errorf("%w: X-Capture-Filename and X-Capture-Started-At headers required", common.ErrorInvalidRequest)
	}
	if !ValidFilename(in.Filename) {
		return nil, fmt.Errorf("%w: invalid filename %q", common.ErrorInvalidRequest, in.Filename)
	}
	if in.Source == "" {
		in.Source = defaultSource
	}

	if _, err := s.activeSession(ctx, sessionID, id.ChannelID); err != nil {
		return nil, err
	}

	contentType := ContentTypeFor(in.Filename)
	key := mediastore.FileKey(id.ChannelID, sessionID, in.Filename)
	if err := s.media.Put(ctx, key, in.Body, contentType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	size := int64(len(in.Body))

	_, err := s.updateManifest(ctx, id.ChannelID, sessionID, func(m *models.Manifest) bool {
		m.Files = append(m.Files, models.ManifestFile{
			Name:      in.Filename,
			Type:      contentType,
			StartedAt: in.StartedAt,
			Size:      size,
			Source:    in.Source,
		})
		return true
	})
	if err != nil {
		s.logger.Warn(ctx, "file stored but manifest not updated", "session_id", sessionID, "key", key, "error", err)
		return nil, err
	}

	if err := s.repomanager.Sessions(s.db).RecordUpload(ctx, sessionID, s.clock.now()); err != nil {
		s.logger.Warn(ctx, "file stored but session row not updated", "session_id", sessionID, "key", key, "error", err)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	s.metrics.CaptureUploads.Inc()
	s.metrics.CaptureUploadBytes.Add(float64(size))
	return &UploadResult{Uploaded: in.Filename, Size: size}, nil
}

// FinalizeSession closes an active session for the holder of grant. An
// owner must own the session; a capability is only good for the session it
// was issued for.
func (s *CaptureService) FinalizeSession(ctx context.Context, grant auth.Grant, sessionID string) (time.Time, error) {
	var trigger string
	switch grant.Kind {
	case auth.Owner:
		if _, err := s.activeSession(ctx, sessionID, grant.ChannelID); err != nil {
			return time.Time{}, err
		}
		trigger = metrics.TriggerOwner
	case auth.Capability:
		if grant.SessionID != sessionID {
			return time.Time{}, fmt.Errorf("%w: token does not match session", common.ErrorForbidden)
		}
		trigger = metrics.TriggerCapability
	default:
		return time.Time{}, common.ErrorUnauthorized
	}

	endedAt, done, err := s.finalize(ctx, grant.ChannelID, sessionID, trigger)
	if err != nil {
		return time.Time{}, err
	}
	if !done {
		return time.Time{}, fmt.Errorf("%w: session not found or not active", common.ErrorNotFound)
	}
	return endedAt, nil
}

// finalize stamps endedAt on the manifest (unless already set) and then
// moves the row to completed with the same endedAt. done is false when the
// row was no longer active, which the sweep treats as a no-op.
func (s *CaptureService) finalize(ctx context.Context, channelID, sessionID, trigger string) (time.Time, bool, error) {
	endedAt := s.clock.now()

	if _, err := s.updateManifest(ctx, channelID, sessionID, func(m *models.Manifest) bool {
		if m.EndedAt != nil {
			if prev, err := timex.ParseWire(*m.EndedAt); err == nil {
				endedAt = prev
				return false
			}
			s.logger.Warn(ctx, "manifest endedAt unreadable, overwriting", "session_id", sessionID, "ended_at", *m.EndedAt)
		}
		ended := timex.FormatWire(endedAt)
		m.EndedAt = &ended
		return true
	}); err != nil {
		return time.Time{}, false, err
	}

	done, err := s.repomanager.Sessions(s.db).Complete(ctx, sessionID, endedAt)
	if err != nil {
		s.logger.Warn(ctx, "manifest finalized but session row not updated", "session_id", sessionID,
			"key", mediastore.ManifestKey(channelID, sessionID), "error", err)
		return time.Time{}, false, fmt.Errorf("complete session: %w", err)
	}
	if done {
		s.metrics.CaptureFinalized.WithLabelValues(trigger).Inc()
		s.logger.Info(ctx, "capture session finalized", "channel_id", channelID, "session_id", sessionID, "trigger", trigger)
	}
	return endedAt, done, nil
}

// AutoFinalizeSessions completes every active session idle for longer than
// the idle timeout. One failing session does not stop the rest; the joined
// error is returned and the next sweep retries.
func (s *CaptureService) AutoFinalizeSessions(ctx context.Context) (int, error) {
	cutoff := s.clock.now().Add(-s.idleTimeout)
	idle, err := s.repomanager.Sessions(s.db).ListIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	var (
		finalized int
		errs      []error
	)
	for _, session := range idle {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, done, err := s.finalize(ctx, session.ChannelID, session.ID, metrics.TriggerSweep)
		if err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		if done {
			finalized++
		}
	}
	return finalized, errors.Join(errs...)
}

// ListSessions returns the channel's sessions newest first. An empty status
// lists all of them.
func (s *CaptureService) ListSessions(ctx context.Context, id *auth.Identity, status string) ([]*models.CaptureSession, error) {
	list, err := s.repomanager.Sessions(s.db).List(ctx, id.ChannelID, models.SessionStatus(status))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// GetManifest returns the stored manifest document as is.
func (s *CaptureService) GetManifest(ctx context.Context, id *auth.Identity, sessionID string) (*mediastore.Object, error) {
	obj, err := s.media.Get(ctx, mediastore.ManifestKey(id.ChannelID, sessionID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: manifest not found", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return obj, nil
}

func (s *CaptureService) GetFile(ctx context.Context, id *auth.Identity, sessionID, name string) (*mediastore.Object, error) {
	obj, err := s.media.Get(ctx, mediastore.FileKey(id.ChannelID, sessionID, name))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: file not found", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	return obj, nil
}

// FileURL returns a presigned download URL for a stored file. Backends that
// cannot presign yield common.ErrorUnsupported.
func (s *CaptureService) FileURL(ctx context.Context, id *auth.Identity, sessionID, name string) (string, error) {
	key := mediastore.FileKey(id.ChannelID, sessionID, name)
	keys, err := s.media.List(ctx, key)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if !slices.Contains(keys, key) {
		return "", fmt.Errorf("%w: file not found", common.ErrorNotFound)
	}
	url, err := s.media.PresignGet(ctx, key, s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign file: %w", err)
	}
	return url, nil
}

// DeleteSession removes every object under the session prefix and then the
// row. A session with no objects is fine.
func (s *CaptureService) DeleteSession(ctx context.Context, id *auth.Identity, sessionID string) error {
	repo := s.repomanager.Sessions(s.db)
	if _, err := repo.Get(ctx, sessionID, id.ChannelID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: session not found", common.ErrorNotFound)
		}
		return fmt.Errorf("load session: %w", err)
	}

	keys, err := s.media.List(ctx, mediastore.SessionPrefix(id.ChannelID, sessionID))
	if err != nil {
		return fmt.Errorf("list session objects: %w", err)
	}
	if err := s.media.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete session objects: %w", err)
	}

	if err := repo.Delete(ctx, sessionID, id.ChannelID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: session not found", common.ErrorNotFound)
		}
		s.logger.Warn(ctx, "session objects deleted but row kept", "session_id", sessionID, "error", err)
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Info(ctx, "capture session deleted", "channel_id", id.ChannelID, "session_id", sessionID, "objects", len(keys))
	return nil
}

func (s *CaptureService) activeSession(ctx context.Context, sessionID, channelID string) (*models.CaptureSession, error) {
	session, err := s.repomanager.Sessions(s.db).GetActive(ctx, sessionID, channelID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: session not found or not active", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *CaptureService) putManifest(ctx context.Context, channelID, sessionID string, m *models.Manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.media.Put(ctx, mediastore.ManifestKey(channelID, sessionID), raw, manifestType); err != nil {
		return fmt.Errorf("store manifest: %w", err)
	}
	return nil
}

// updateManifest is a non-atomic read-modify-write of the manifest. A
// missing manifest is skipped, and so is the write when fn reports no
// change. Concurrent callers can lose each other's updates.
func (s *CaptureService) updateManifest(ctx context.Context, channelID, sessionID string, fn func(m *models.Manifest) bool) (bool, error) {
	obj, err := s.media.Get(ctx, mediastore.ManifestKey(channelID, sessionID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "manifest missing, skipping update", "session_id", sessionID)
			return false, nil
		}
		return false, fmt.Errorf("load manifest: %w", err)
	}

	var m models.Manifest
	if err := json.Unmarshal(obj.Body, &m); err != nil {
		return false, fmt.Errorf("decode manifest: %w", err)
	}
	if !fn(&m) {
		return false, nil
	}
	if m.Files == nil {
		m.Files = []models.ManifestFile{}
	}
	return true, s.putManifest(ctx, channelID, sessionID, &m)
}
