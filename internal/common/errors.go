// Package common defines shared sentinel errors and random helpers used
// across the relay server and its client SDK. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Request validation.
	ErrorInvalidRequest = errors.New("invalid request")

	// Credential errors. Unauthorized means no usable credential was
	// presented; Forbidden means the credential is valid but scoped to a
	// different channel or session.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// ErrorGone is returned for pairing codes that were already redeemed or
	// have expired.
	ErrorGone = errors.New("gone")

	ErrorInternal = errors.New("internal error")

	// ErrorUnsupported is returned by backends that cannot perform an
	// optional operation (e.g. presigning on an embedded store).
	ErrorUnsupported = errors.New("unsupported")
)
