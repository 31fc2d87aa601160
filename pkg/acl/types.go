package acl

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// EntityType identifies a kind of domain object, e.g. "folder" or "task".
type EntityType string

// Global is the entity id used for grants that apply to an entity type as a whole.
const Global = ""

// Subject is the holder of a grant: exactly one of UserID and RoleID is set.
type Subject struct {
	UserID string
	RoleID string
}

// User returns a user subject.
func User(id string) Subject { return Subject{UserID: id} }

// Role returns a role subject.
func Role(id string) Subject { return Subject{RoleID: id} }

// IsUser reports whether the subject is a user.
func (s Subject) IsUser() bool { return s.UserID != "" && s.RoleID == "" }

// IsRole reports whether the subject is a role.
func (s Subject) IsRole() bool { return s.RoleID != "" && s.UserID == "" }

func (s Subject) String() string {
	switch {
	case s.IsUser():
		return "user:" + s.UserID
	case s.IsRole():
		return "role:" + s.RoleID
	default:
		return "invalid"
	}
}

func (s Subject) validate() error {
	switch {
	case s.UserID == "" && s.RoleID == "":
		return invalid(ErrSubjectRequired)
	case s.UserID != "" && s.RoleID != "":
		return invalid(ErrAmbiguousSubject)
	}
	return nil
}

// Grant is a single permission row.
type Grant struct {
	ID          uuid.UUID
	EntityType  EntityType
	EntityID    string // Global for type-wide grants
	UserID      string
	RoleID      string
	Permissions permission.Mask
	Inherited   bool
	Banned      bool
}

// Subject returns the holder of the grant.
func (g Grant) Subject() Subject {
	return Subject{UserID: g.UserID, RoleID: g.RoleID}
}

// Slot returns the unique key of the row.
func (g Grant) Slot() Slot {
	return Slot{
		EntityType: g.EntityType,
		EntityID:   g.EntityID,
		Subject:    g.Subject(),
		Inherited:  g.Inherited,
		Banned:     g.Banned,
	}
}

// Slot addresses the single row a subject may hold on an entity for one
// inheritance kind. Banned rows live in their own slot so that a ban marker
// can coexist with the subject's regular row.
type Slot struct {
	EntityType EntityType
	EntityID   string
	Subject    Subject
	Inherited  bool
	Banned     bool
}

// DirectSlot returns the explicit-grant slot.
func DirectSlot(entityType EntityType, entityID string, subject Subject) Slot {
	return Slot{EntityType: entityType, EntityID: entityID, Subject: subject}
}

// InheritedSlot returns the propagated-grant slot.
func InheritedSlot(entityType EntityType, entityID string, subject Subject) Slot {
	return Slot{EntityType: entityType, EntityID: entityID, Subject: subject, Inherited: true}
}

// BannedSlot returns the slot of a direct ban marker.
func BannedSlot(entityType EntityType, entityID string, subject Subject) Slot {
	return Slot{EntityType: entityType, EntityID: entityID, Subject: subject, Banned: true}
}

// RoleInfo describes a role (a "team").
type RoleInfo struct {
	ID          string
	Code        string
	Active      bool
	Description string
}

// Membership links a user to a role. A banned membership excludes the user
// from the role's grants.
type Membership struct {
	UserID string
	RoleID string
	Banned bool
}

// CheckResult is one entry of a batch access check.
type CheckResult struct {
	ID    string
	Value bool
}

// Change describes a committed mutation. Subject is empty when the change
// touched every subject of the entity type. EntityType is empty for role and
// membership changes, which can affect every entity type.
type Change struct {
	EntityType EntityType
	EntityID   string
	Subject    Subject
}
