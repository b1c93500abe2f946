// Package services contains server-side business logic: the pairing
// coordinator, the encrypted mailbox, the capture session manager and the
// background sweeper.
package services

import (
	"time"

	"github.com/google/uuid"
)

// clock returns the current time truncated to what the relational store
// keeps, so values read back compare equal to what was written.
type clock func() time.Time

func (c clock) now() time.Time {
	return c().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}
