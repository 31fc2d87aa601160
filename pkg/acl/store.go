package acl

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// Queries is the read side of a permission store.
type Queries interface {
	// FindGrant returns the row stored in slot. Absence is not an error.
	// A slot without the Banned flag never matches a banned row and vice versa.
	FindGrant(ctx context.Context, slot Slot) (Grant, bool, error)

	// ListEntityGrants returns every row (direct, inherited, user and role held)
	// stored on one entity, in insertion order.
	ListEntityGrants(ctx context.Context, entityType EntityType, entityID string) ([]Grant, error)

	// ListRoleGrants returns every row held by a role.
	ListRoleGrants(ctx context.Context, roleID string) ([]Grant, error)

	// ListUserGrants returns the rows a user holds directly on any entity of
	// one type, banned markers included.
	ListUserGrants(ctx context.Context, entityType EntityType, userID string) ([]Grant, error)

	// RoleExists reports whether a role with the given id exists.
	RoleExists(ctx context.Context, roleID string) (bool, error)

	// HasPermission reports whether an unbanned row on exactly (entityType, entityID)
	// overlaps mask and is held by the user directly or through an unbanned
	// role membership. Inherited and direct rows both count.
	HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType EntityType, entityID string) (bool, error)
}

// DeleteFilter narrows DeleteEntityGrants.
type DeleteFilter struct {
	InheritedOnly bool
	RolesOnly     bool
}

// LockKey names an advisory lock held until the transaction ends.
// A zero Subject locks the whole entity type exclusively; otherwise the
// entity type is locked shared and the (entity type, subject) pair exclusively.
type LockKey struct {
	EntityType EntityType
	Subject    Subject
}

// Tx is the write side of a permission store, bound to one transaction.
type Tx interface {
	Queries

	// InsertGrant stores a new row. The returned grant carries the assigned ID.
	InsertGrant(ctx context.Context, g Grant) (Grant, error)

	// UpdateGrant overwrites permissions and banned flag of the row with g.ID.
	UpdateGrant(ctx context.Context, g Grant) error

	// DeleteGrant removes the row with the given id.
	DeleteGrant(ctx context.Context, id uuid.UUID) error

	// DeleteEntityGrants removes the rows of an entity matching filter and
	// returns how many were removed.
	DeleteEntityGrants(ctx context.Context, entityType EntityType, entityID string, filter DeleteFilter) (int, error)

	// Lock acquires a transaction scoped lock.
	Lock(ctx context.Context, key LockKey) error
}

// Store persists permission rows.
type Store interface {
	Queries

	// InTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
