package session

import "github.com/google/uuid"

// IDGenerator produces identifiers for newly inserted rows.
// Implemented by UUIDv7Generator (production) and the sequential generator
// in testutil (deterministic tests and golden files).
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDv7Generator generates time-sortable UUIDv7 row identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so row IDs sort
// by creation time, which is helpful when reading transaction history.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a fresh UUIDv7.
//
// Panics if UUID generation fails, which cannot happen in practice.
func (UUIDv7Generator) NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
