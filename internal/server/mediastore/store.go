// Package mediastore is the object store for capture sessions: uploaded
// blobs and the per-session JSON manifest, laid out under
// {channelId}/{sessionId}/ so a session can be removed as a prefix.
package mediastore

import (
	"context"
	"time"
)

// ManifestName is the object name of a session's manifest.
const ManifestName = "manifest.json"

// Object is a stored blob with its recorded content type.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
}

// Size is the byte length of the body.
func (o *Object) Size() int64 { return int64(len(o.Body)) }

// Store is implemented by every media backend.
type Store interface {
	// Put writes body under key, replacing any existing object.
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Get returns common.ErrorNotFound when the key is absent.
	Get(ctx context.Context, key string) (*Object, error)
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes keys. Missing keys and an empty list are not errors.
	Delete(ctx context.Context, keys ...string) error
	// PresignGet returns a time-limited download URL, or
	// common.ErrorUnsupported when the backend has no URL to hand out.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// SessionPrefix is the key prefix owning every object of a session.
func SessionPrefix(channelID, sessionID string) string {
	return channelID + "/" + sessionID + "/"
}

func ManifestKey(channelID, sessionID string) string {
	return SessionPrefix(channelID, sessionID) + ManifestName
}

func FileKey(channelID, sessionID, name string) string {
	return SessionPrefix(channelID, sessionID) + name
}
