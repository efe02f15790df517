package store

import (
	"context"
	"time"

	"github.com/hyperengineering/grmsync/internal/predicate"
	"github.com/hyperengineering/grmsync/internal/record"
)

// EntityStore is the contract for reading and mutating synchronized entity
// tables. Table arguments are canonical table names.
type EntityStore interface {
	Exists(ctx context.Context, table, id string) (bool, error)
	Get(ctx context.Context, table, id string) (record.Record, error)
	// Query returns live rows matching filter ordered by creation time then
	// id. A nil filter matches every live row. Filters containing a join may
	// return the same row more than once.
	Query(ctx context.Context, table string, filter predicate.Predicate) ([]record.Record, error)
	// Insert creates a row. The store stamps creation and modification
	// times. Inserting over a soft-deleted row revives it.
	Insert(ctx context.Context, table string, rec record.Record) error
	// Update merges fields into an existing live row and stamps its
	// modification time.
	Update(ctx context.Context, table, id string, fields record.Record) error
	// SoftDelete marks a row deleted and records a tombstone.
	SoftDelete(ctx context.Context, table, id string) error
	// ListTombstones returns ids of rows deleted strictly after since.
	ListTombstones(ctx context.Context, table string, since time.Time) ([]string, error)
}

// Assignment links a user to a project, optionally narrowed to a region.
type Assignment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Project    string    `json:"project"`
	Region     string    `json:"administrative_region,omitempty"`
	Department string    `json:"department,omitempty"`
	Role       string    `json:"role,omitempty"`
	Active     bool      `json:"active"`
	Activated  bool      `json:"activated"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuthorizationStore exposes the role and assignment data scope resolution
// is computed from.
type AuthorizationStore interface {
	UserRoles(ctx context.Context, userID string) ([]string, error)
	UserAssignments(ctx context.Context, userID string) ([]Assignment, error)
	// ActiveProjects returns ids of live project rows flagged active.
	ActiveProjects(ctx context.Context) ([]string, error)
}
