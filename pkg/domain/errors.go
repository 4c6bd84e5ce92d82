package domain

import (
	"errors"
	"fmt"
)

// Precondition failures reported by household and record operations. None of
// them leave the snapshot modified.
var (
	ErrMergeToSelf     = errors.New("cannot merge member to themselves")
	ErrLastMember      = errors.New("household must keep at least one member")
	ErrActiveMember    = errors.New("switch the active member before removing this member")
	ErrDuplicateMember = errors.New("member already exists")
	ErrUnknownMember   = errors.New("unknown member")
	ErrInvalidMember   = errors.New("member name required")
	ErrInvalidRecord   = errors.New("invalid record")
)

// Payload, persistence, and sync failures.
var (
	ErrInvalidPayload  = errors.New("invalid snapshot payload")
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrSyncUnavailable = errors.New("sync backend not configured")
	ErrRemoteNotFound  = errors.New("remote snapshot not found")
)

// ErrNotFound is returned when a record lookup by ID fails.
type ErrNotFound struct {
	Collection Collection
	ID         string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s record %s not found", e.Collection, e.ID)
}
