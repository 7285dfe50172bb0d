// Package store provides the durable session store for exam attempts:
// one record per (exam, student) pair, written by the owning attempt
// machine and read back on resume. Implementations must survive a
// process restart of the caller; they do not need to survive their own
// backing store being wiped.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/Suraj08344/examproct-backend/internal/model"
)

// ErrNotFound is returned when no record exists for the requested
// (exam, student) pair.
var ErrNotFound = errors.New("session record not found")

// Store is the session store contract. Records are owned exclusively
// by one attempt machine instance at a time; the store itself performs
// no locking beyond what its backend requires.
type Store interface {
	// Get returns the stored record, or ErrNotFound.
	Get(ctx context.Context, examID uuid.UUID, studentID string) (*model.SessionRecord, error)

	// Put writes the full snapshot, replacing any prior record.
	Put(ctx context.Context, studentID string, rec *model.SessionRecord) error

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, examID uuid.UUID, studentID string) error
}
