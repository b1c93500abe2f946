package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/dropbox/internal/client/models"
	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVault_InitUnlockLock(t *testing.T) {
	ctx := context.Background()
	db := openState(t)
	v := NewVault(db)

	ok, err := v.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, v.Unlock(ctx, []byte("x")), ErrVaultMissing)

	require.NoError(t, v.Init(ctx, []byte("correct")))
	assert.True(t, v.Unlocked())
	assert.ErrorIs(t, v.Init(ctx, []byte("again")), ErrVaultExists)

	ok, err = v.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	v.Lock()
	assert.False(t, v.Unlocked())

	// a fresh process only has the stored salt and verifier
	v2 := NewVault(db)
	assert.ErrorIs(t, v2.Unlock(ctx, []byte("wrong")), common.ErrorUnauthorized)
	assert.False(t, v2.Unlocked())
	require.NoError(t, v2.Unlock(ctx, []byte("correct")))
	assert.True(t, v2.Unlocked())
}

func TestVault_SealOpen(t *testing.T) {
	db := openState(t)
	v := unlockedVault(t, db)

	in := models.Secrets{APIKey: "k", ChannelKey: "c2VjcmV0"}
	ct, nonce, err := v.Seal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "c2VjcmV0")

	got, err := v.Open(&models.Profile{Name: "p", Secret: ct, Nonce: nonce})
	require.NoError(t, err)
	assert.Equal(t, in, *got)

	ct[0] ^= 0xff
	_, err = v.Open(&models.Profile{Name: "p", Secret: ct, Nonce: nonce})
	assert.Error(t, err)

	v.Lock()
	_, _, err = v.Seal(in)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = v.Open(&models.Profile{})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestVault_SameKeyAfterUnlock(t *testing.T) {
	ctx := context.Background()
	db := openState(t)
	v := unlockedVault(t, db)

	ct, nonce, err := v.Seal(models.Secrets{APIKey: "k"})
	require.NoError(t, err)

	v2 := NewVault(db)
	require.NoError(t, v2.Unlock(ctx, []byte("local-pw")))
	got, err := v2.Open(&models.Profile{Secret: ct, Nonce: nonce})
	require.NoError(t, err)
	assert.Equal(t, "k", got.APIKey)
}
