// Package store provides the roster collection store and its durable slots.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

// Store errors.
var (
	ErrSlotEmpty   = errors.New("storage slot is empty")
	ErrInvalidData = errors.New("stored roster is not a list of members")
)

// DefaultSlotName is the name of the single durable slot holding the roster.
const DefaultSlotName = "staffMembers"

// Store owns the ordered roster. Mutations persist synchronously and never
// fail the caller; storage failures are logged and counted instead.
type Store interface {
	// Load replaces the in-memory roster with the durable copy. An absent
	// or unreadable slot yields an empty roster.
	Load(ctx context.Context) []model.Member

	// List returns a copy of the roster in insertion order.
	List(ctx context.Context) []model.Member

	// Len returns the number of members.
	Len() int

	// Add appends a member with a freshly generated ID.
	Add(ctx context.Context, fields model.MemberFields, imageURL string) model.Member

	// Update replaces the display fields of the member with the given ID.
	// It reports false when no such member exists.
	Update(ctx context.Context, id string, patch model.MemberFields) bool

	// Remove deletes the member with the given ID and returns it.
	Remove(ctx context.Context, id string) (model.Member, bool)
}

// Slot is a single named durable storage cell.
type Slot interface {
	// Read returns the stored bytes or ErrSlotEmpty when nothing is stored.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored bytes.
	Write(ctx context.Context, data []byte) error

	// Clear removes the stored bytes. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}
