// Package services holds the CLI's application logic: a password-locked
// local vault and the channel profiles whose credentials it seals.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dropbox/internal/client/models"
	"github.com/dmitrijs2005/dropbox/internal/client/store"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/dmitrijs2005/dropbox/internal/cryptox"
	"github.com/dmitrijs2005/dropbox/internal/dbx"
)

const (
	metaSalt     = "salt"
	metaVerifier = "verifier"
	metaActive   = "active_profile"

	saltSize = 32
)

var (
	ErrLocked       = errors.New("vault is locked")
	ErrVaultExists  = errors.New("vault already initialized")
	ErrVaultMissing = errors.New("vault not initialized")
)

// Vault derives a key from the local password and uses it to seal profile
// secrets at rest. Only the salt and a verifier of the key are stored.
type Vault struct {
	db  *sql.DB
	key []byte
}

func NewVault(db *sql.DB) *Vault {
	return &Vault{db: db}
}

// Initialized reports whether a password has been set.
func (v *Vault) Initialized(ctx context.Context) (bool, error) {
	_, err := store.Metadata(v.db).Get(ctx, metaSalt)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Init sets the vault password and leaves the vault unlocked.
func (v *Vault) Init(ctx context.Context, password []byte) error {
	ok, err := v.Initialized(ctx)
	if err != nil {
		return err
	}
	if ok {
		return ErrVaultExists
	}

	salt := common.GenerateRandByteArray(saltSize)
	key := cryptox.DeriveKey(password, salt)

	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		meta := store.Metadata(tx)
		if err := meta.Set(ctx, metaSalt, salt); err != nil {
			return err
		}
		return meta.Set(ctx, metaVerifier, cryptox.MakeVerifier(key))
	})
	if err != nil {
		common.WipeByteArray(key)
		return err
	}

	v.key = key
	return nil
}

// Unlock checks password against the stored verifier. A wrong password is
// common.ErrorUnauthorized.
func (v *Vault) Unlock(ctx context.Context, password []byte) error {
	meta := store.Metadata(v.db)

	salt, err := meta.Get(ctx, metaSalt)
	if errors.Is(err, common.ErrorNotFound) {
		return ErrVaultMissing
	}
	if err != nil {
		return err
	}
	verifier, err := meta.Get(ctx, metaVerifier)
	if err != nil {
		return err
	}

	candidate := cryptox.DeriveKey(password, salt)
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(candidate)) == 0 {
		common.WipeByteArray(candidate)
		return fmt.Errorf("%w: wrong password", common.ErrorUnauthorized)
	}

	v.Lock()
	v.key = candidate
	return nil
}

// Lock forgets the derived key.
func (v *Vault) Lock() {
	if v.key != nil {
		common.WipeByteArray(v.key)
		v.key = nil
	}
}

func (v *Vault) Unlocked() bool {
	return v.key != nil
}

// Seal encrypts secrets with the vault key.
func (v *Vault) Seal(s models.Secrets) (ciphertext, nonce []byte, err error) {
	if !v.Unlocked() {
		return nil, nil, ErrLocked
	}
	return cryptox.EncryptEntry(s, v.key)
}

// Open decrypts the secrets of p.
func (v *Vault) Open(p *models.Profile) (*models.Secrets, error) {
	if !v.Unlocked() {
		return nil, ErrLocked
	}
	var s models.Secrets
	if err := cryptox.DecryptEntry(p.Secret, p.Nonce, v.key, &s); err != nil {
		return nil, fmt.Errorf("open profile %s: %w", p.Name, err)
	}
	return &s, nil
}
