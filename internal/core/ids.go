package core

import (
	"github.com/google/uuid"
)

// IDGenerator produces record identifiers.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

// NewID implements IDGenerator.
func (f IDFunc) NewID() string { return f() }

// TimeOrderedIDs issues UUIDv7 values: a millisecond timestamp prefix with a
// random tail, so identifiers created later sort later.
type TimeOrderedIDs struct{}

// NewID implements IDGenerator.
func (TimeOrderedIDs) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
