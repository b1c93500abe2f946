package mediastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "media.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "c1/s1/", SessionPrefix("c1", "s1"))
	assert.Equal(t, "c1/s1/manifest.json", ManifestKey("c1", "s1"))
	assert.Equal(t, "c1/s1/photo-001.jpg", FileKey("c1", "s1", "photo-001.jpg"))
}

func TestBoltStore_PutGet(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "c1/s1/a.webm", []byte{0, 1, 2, 255}, "audio/webm"))

	obj, err := s.Get(ctx, "c1/s1/a.webm")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 255}, obj.Body)
	assert.Equal(t, "audio/webm", obj.ContentType)
	assert.Equal(t, int64(4), obj.Size())

	require.NoError(t, s.Put(ctx, "c1/s1/a.webm", []byte("x"), "audio/webm"))
	obj, err = s.Get(ctx, "c1/s1/a.webm")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), obj.Body)

	_, err = s.Get(ctx, "c1/s1/missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestBoltStore_ListAndDeletePrefix(t *testing.T) {
	s := openTestBolt(t)
	ctx := context.Background()

	for _, k := range []string{"c1/s1/manifest.json", "c1/s1/a.jpg", "c1/s10/b.jpg", "c1/s2/c.jpg", "c2/s1/d.jpg"} {
		require.NoError(t, s.Put(ctx, k, []byte(k), "application/octet-stream"))
	}

	keys, err := s.List(ctx, SessionPrefix("c1", "s1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1/s1/manifest.json", "c1/s1/a.jpg"}, keys)

	require.NoError(t, s.Delete(ctx, keys...))
	keys, err = s.List(ctx, SessionPrefix("c1", "s1"))
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = s.Get(ctx, "c1/s10/b.jpg")
	assert.NoError(t, err, "sibling prefix must survive")

	assert.NoError(t, s.Delete(ctx))
	assert.NoError(t, s.Delete(ctx, "never/existed"))
}

func TestBoltStore_PresignUnsupported(t *testing.T) {
	s := openTestBolt(t)
	_, err := s.PresignGet(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, common.ErrorUnsupported)
}
