package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// errDuplicate reports a unique-key violation the way Postgres does, so
// dbx.IsUniqueViolation behaves the same on both backends.
func errDuplicate(table, key string) error {
	return fmt.Errorf("insert into %s: %w", table, &pgconn.PgError{
		Code:    "23505",
		Message: fmt.Sprintf("duplicate key value %q violates unique constraint", key),
	})
}

type channelRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *channelRepo) Create(_ context.Context, ch *models.Channel) error {
	return r.m.run(r.db, func(t *tables) error {
		if _, ok := t.channels[ch.ID]; ok {
			return errDuplicate("channels", ch.ID)
		}
		t.channels[ch.ID] = *ch
		return nil
	})
}

type apiKeyRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *apiKeyRepo) Create(_ context.Context, key *models.APIKey) error {
	return r.m.run(r.db, func(t *tables) error {
		if _, ok := t.channels[key.ChannelID]; !ok {
			return fmt.Errorf("channel %q does not exist", key.ChannelID)
		}
		for _, k := range t.keys {
			if k.KeyHash == key.KeyHash && k.RevokedAt == nil {
				return errDuplicate("api_keys", "key_hash")
			}
		}
		t.keys[key.ID] = *key
		return nil
	})
}

func (r *apiKeyRepo) FindActiveByHash(_ context.Context, hash string) (*models.APIKey, error) {
	var found *models.APIKey
	err := r.m.run(r.db, func(t *tables) error {
		for _, k := range t.keys {
			if k.KeyHash == hash && k.RevokedAt == nil {
				k := k
				found = &k
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return found, err
}

func (r *apiKeyRepo) Revoke(_ context.Context, id, channelID string, at time.Time) error {
	return r.m.run(r.db, func(t *tables) error {
		k, ok := t.keys[id]
		if !ok || k.ChannelID != channelID || k.RevokedAt != nil {
			return common.ErrorNotFound
		}
		k.RevokedAt = &at
		t.keys[id] = k
		return nil
	})
}

func (r *apiKeyRepo) ListByChannel(_ context.Context, channelID string) ([]*models.APIKey, error) {
	var result []*models.APIKey
	err := r.m.run(r.db, func(t *tables) error {
		for _, k := range t.keys {
			if k.ChannelID == channelID {
				k := k
				result = append(result, &k)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, err
}

type pairingCodeRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *pairingCodeRepo) Create(_ context.Context, p *models.PairingCode) error {
	return r.m.run(r.db, func(t *tables) error {
		if _, ok := t.codes[p.Code]; ok {
			return errDuplicate("pairing_codes", p.Code)
		}
		c := *p
		c.Used = false
		t.codes[p.Code] = c
		return nil
	})
}

func (r *pairingCodeRepo) Get(_ context.Context, code string) (*models.PairingCode, error) {
	var found *models.PairingCode
	err := r.m.run(r.db, func(t *tables) error {
		p, ok := t.codes[code]
		if !ok {
			return common.ErrorNotFound
		}
		found = &p
		return nil
	})
	return found, err
}

func (r *pairingCodeRepo) MarkUsed(_ context.Context, code string, at time.Time) error {
	return r.m.run(r.db, func(t *tables) error {
		p, ok := t.codes[code]
		if !ok || p.Used || p.Expired(at) {
			return common.ErrorGone
		}
		p.Used = true
		t.codes[code] = p
		return nil
	})
}

func (r *pairingCodeRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.m.run(r.db, func(t *tables) error {
		for code, p := range t.codes {
			if p.ExpiresAt.Before(before) {
				delete(t.codes, code)
				n++
			}
		}
		return nil
	})
	return n, err
}

type messageRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *messageRepo) Create(_ context.Context, msg *models.Message) error {
	return r.m.run(r.db, func(t *tables) error {
		createdAt := msg.CreatedAt.UTC().Truncate(time.Microsecond)
		for _, existing := range t.messages {
			if existing.ChannelID != msg.ChannelID {
				continue
			}
			if next := existing.CreatedAt.Add(time.Microsecond); !createdAt.After(existing.CreatedAt) {
				createdAt = next
			}
		}
		t.seq++
		stored := *msg
		stored.CreatedAt = createdAt
		stored.Body = append([]byte(nil), msg.Body...)
		stored.Nonce = append([]byte(nil), msg.Nonce...)
		t.messages = append(t.messages, message{Message: stored, seq: t.seq})
		msg.CreatedAt = createdAt
		return nil
	})
}

func (r *messageRepo) List(_ context.Context, channelID string, since *time.Time) ([]*models.Message, error) {
	var rows []message
	err := r.m.run(r.db, func(t *tables) error {
		for _, msg := range t.messages {
			if msg.ChannelID != channelID {
				continue
			}
			if since != nil && !msg.CreatedAt.After(*since) {
				continue
			}
			rows = append(rows, msg)
		}
		return nil
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].seq < rows[j].seq
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	result := make([]*models.Message, 0, len(rows))
	for _, row := range rows {
		msg := row.Message
		result = append(result, &msg)
	}
	return result, err
}

func (r *messageRepo) Delete(_ context.Context, id, channelID string) error {
	return r.m.run(r.db, func(t *tables) error {
		for i, msg := range t.messages {
			if msg.ID == id && msg.ChannelID == channelID {
				t.messages = append(t.messages[:i:i], t.messages[i+1:]...)
				return nil
			}
		}
		return common.ErrorNotFound
	})
}

type sessionRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *sessionRepo) Create(_ context.Context, s *models.CaptureSession) error {
	return r.m.run(r.db, func(t *tables) error {
		if _, ok := t.sessions[s.ID]; ok {
			return errDuplicate("capture_sessions", s.ID)
		}
		t.sessions[s.ID] = *s
		return nil
	})
}

func (r *sessionRepo) find(match func(s models.CaptureSession) bool) (*models.CaptureSession, error) {
	var found *models.CaptureSession
	err := r.m.run(r.db, func(t *tables) error {
		for _, s := range t.sessions {
			if match(s) {
				s := s
				found = &s
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return found, err
}

func (r *sessionRepo) GetActive(_ context.Context, id, channelID string) (*models.CaptureSession, error) {
	return r.find(func(s models.CaptureSession) bool {
		return s.ID == id && s.ChannelID == channelID && s.Status == models.SessionActive
	})
}

func (r *sessionRepo) GetActiveByID(_ context.Context, id string) (*models.CaptureSession, error) {
	return r.find(func(s models.CaptureSession) bool {
		return s.ID == id && s.Status == models.SessionActive
	})
}

func (r *sessionRepo) Get(_ context.Context, id, channelID string) (*models.CaptureSession, error) {
	return r.find(func(s models.CaptureSession) bool {
		return s.ID == id && s.ChannelID == channelID
	})
}

func (r *sessionRepo) RecordUpload(_ context.Context, id string, at time.Time) error {
	return r.m.run(r.db, func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		s.FileCount++
		s.LastActivityAt = at
		t.sessions[id] = s
		return nil
	})
}

func (r *sessionRepo) Complete(_ context.Context, id string, endedAt time.Time) (bool, error) {
	var done bool
	err := r.m.run(r.db, func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok || s.Status != models.SessionActive {
			return nil
		}
		s.Status = models.SessionCompleted
		s.EndedAt = &endedAt
		s.LastActivityAt = endedAt
		t.sessions[id] = s
		done = true
		return nil
	})
	return done, err
}

func (r *sessionRepo) collect(match func(s models.CaptureSession) bool) []*models.CaptureSession {
	var result []*models.CaptureSession
	_ = r.m.run(r.db, func(t *tables) error {
		for _, s := range t.sessions {
			if match(s) {
				s := s
				result = append(result, &s)
			}
		}
		return nil
	})
	return result
}

func (r *sessionRepo) List(_ context.Context, channelID string, status models.SessionStatus) ([]*models.CaptureSession, error) {
	result := r.collect(func(s models.CaptureSession) bool {
		return s.ChannelID == channelID && (status == "" || s.Status == status)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	return result, nil
}

func (r *sessionRepo) ListIdle(_ context.Context, before time.Time) ([]*models.CaptureSession, error) {
	return r.collect(func(s models.CaptureSession) bool {
		return s.Status == models.SessionActive && s.LastActivityAt.Before(before)
	}), nil
}

func (r *sessionRepo) Delete(_ context.Context, id, channelID string) error {
	return r.m.run(r.db, func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok || s.ChannelID != channelID {
			return common.ErrorNotFound
		}
		delete(t.sessions, id)
		return nil
	})
}
