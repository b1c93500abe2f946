// Package metadata stores small named values of the CLI state: the vault
// salt and verifier and the active profile name.
package metadata

import (
	"context"
)

// Repository is a string-keyed blob store. Get reports a missing key as
// common.ErrorNotFound.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
