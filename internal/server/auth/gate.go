package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
	"github.com/dmitrijs2005/dropbox/internal/server/repositories/repomanager"
)

// Identity is the caller resolved from a valid bearer key.
type Identity struct {
	KeyID     string
	ChannelID string
	Label     string
}

// GrantKind says which credential authorized a finalize call.
type GrantKind int

const (
	Denied GrantKind = iota
	Owner
	Capability
)

func (k GrantKind) String() string {
	switch k {
	case Owner:
		return "owner"
	case Capability:
		return "capability"
	default:
		return "denied"
	}
}

// Grant is the outcome of finalize authorization. Owner carries the caller's
// channel; Capability carries the channel of the session the token opened.
type Grant struct {
	Kind      GrantKind
	ChannelID string
	SessionID string
}

// Gate looks up API keys and finalize tokens.
type Gate struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
}

func NewGate(db dbx.DBTX, rm repomanager.RepositoryManager) *Gate {
	return &Gate{db: db, repomanager: rm}
}

// Authenticate resolves an Authorization header value. A missing, malformed,
// unknown or revoked key yields (nil, nil); only store failures are errors.
func (g *Gate) Authenticate(ctx context.Context, header string) (*Identity, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, nil
	}

	key, err := g.repomanager.APIKeys(g.db).FindActiveByHash(ctx, HashKey(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	return &Identity{KeyID: key.ID, ChannelID: key.ChannelID, Label: key.Label}, nil
}

// AuthorizeFinalize picks the credential for a finalize call. A bearer
// identity always wins and yields Owner; ownership and state are checked
// by the capture service. Otherwise the token must match an active session:
// a mismatch is common.ErrorForbidden and no credential at all is
// common.ErrorUnauthorized.
func (g *Gate) AuthorizeFinalize(ctx context.Context, id *Identity, sessionID, token string) (Grant, error) {
	if id != nil {
		return Grant{Kind: Owner, ChannelID: id.ChannelID, SessionID: sessionID}, nil
	}
	if token == "" {
		return Grant{Kind: Denied}, common.ErrorUnauthorized
	}

	s, err := g.repomanager.Sessions(g.db).GetActiveByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Grant{Kind: Denied}, common.ErrorForbidden
		}
		return Grant{Kind: Denied}, fmt.Errorf("authorize finalize: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(s.FinalizeToken), []byte(token)) != 1 {
		return Grant{Kind: Denied}, common.ErrorForbidden
	}
	return Grant{Kind: Capability, ChannelID: s.ChannelID, SessionID: s.ID}, nil
}
