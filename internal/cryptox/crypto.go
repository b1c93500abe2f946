// Package cryptox holds the client-side crypto of the relay: AES-256-GCM
// channel keys and the optional passphrase wrap of a channel key handed out
// through a pairing code. The relay itself never calls into this package.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dropbox/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	KeySize   = 32
	NonceSize = 12

	// wrapPrefix marks a channel key sealed under a passphrase.
	wrapPrefix = "argon2id."
)

var (
	ErrInvalidKey = errors.New("invalid channel key")
	ErrNotWrapped = errors.New("channel key is not passphrase-wrapped")
)

// GenerateChannelKey returns a fresh random AES-256 key.
func GenerateChannelKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// ExportKey encodes a raw key as standard base64.
func ExportKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportKey decodes a base64 channel key and checks its length.
func ImportKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext with a random 12-byte nonce. The ciphertext
// carries the GCM tag.
func Encrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func Decrypt(key, ciphertext, nonce []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", aesgcm.NonceSize(), len(nonce))
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// EncryptEntry serializes entry to JSON and encrypts it with Encrypt.
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	return Encrypt(key, plaintext)
}

// DecryptEntry decrypts and unmarshals the JSON into v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Decrypt(key, ciphertext, nonce)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// DeriveKey stretches a passphrase into a 32-byte key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a digest of key that can be stored to check a
// password later without storing the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// WrapChannelKey seals key under a key derived from passphrase, salted with
// the channel id, and returns "argon2id." + base64(nonce || ciphertext).
// The result is what the agent sends as encryptedChannelKey when the pairing
// passphrase travels out of band.
func WrapChannelKey(passphrase, channelID string, key []byte) (string, error) {
	kek := DeriveKey([]byte(passphrase), []byte(channelID))
	defer common.WipeByteArray(kek)

	ct, nonce, err := Encrypt(kek, key)
	if err != nil {
		return "", err
	}
	return wrapPrefix + base64.StdEncoding.EncodeToString(append(nonce, ct...)), nil
}

// UnwrapChannelKey reverses WrapChannelKey.
func UnwrapChannelKey(passphrase, channelID, blob string) ([]byte, error) {
	if !IsWrapped(blob) {
		return nil, ErrNotWrapped
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, wrapPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) <= NonceSize {
		return nil, fmt.Errorf("%w: wrapped key too short", ErrInvalidKey)
	}

	kek := DeriveKey([]byte(passphrase), []byte(channelID))
	defer common.WipeByteArray(kek)

	key, err := Decrypt(kek, raw[NonceSize:], raw[:NonceSize])
	if err != nil {
		return nil, fmt.Errorf("unwrap channel key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
	return key, nil
}

// IsWrapped reports whether blob came from WrapChannelKey.
func IsWrapped(blob string) bool {
	return strings.HasPrefix(blob, wrapPrefix)
}
