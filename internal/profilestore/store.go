// ABOUTME: Store interface and record types for ProfileStore persistence
// ABOUTME: Defines UserRecord, partial patches, and sentinel errors

package profilestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the addressed user record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when creating a record whose email is taken.
var ErrDuplicate = errors.New("user already exists")

// UserRecord is one stored profile, keyed by email.
type UserRecord struct {
	ID         string
	Email      string
	Name       string
	University string
	Address    string
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserPatch is a partial update: nil fields are left untouched, non-nil
// fields are overwritten as a whole.
type UserPatch struct {
	Name       *string
	University *string
	Address    *string
	Phone      *string
}

// Store is the persistence interface behind the ProfileStore service.
type Store interface {
	CreateUser(ctx context.Context, rec *UserRecord) error
	GetUser(ctx context.Context, email string) (*UserRecord, error)
	UpdateUser(ctx context.Context, email string, patch UserPatch) (*UserRecord, error)
	Close() error
}
