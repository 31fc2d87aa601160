package acl

import (
	"context"

	"github.com/dmitrymomot/entityacl/pkg/logger"
)

// RoleStore manages roles and memberships. MemoryStore and pgstore.Store
// implement it.
type RoleStore interface {
	CreateRole(ctx context.Context, role RoleInfo) error
	DeleteRole(ctx context.Context, roleID string) error
	AddMember(ctx context.Context, userID, roleID string) error
	SetMemberBanned(ctx context.Context, userID, roleID string, banned bool) error
	RemoveMember(ctx context.Context, userID, roleID string) error
}

var _ RoleStore = (*MemoryStore)(nil)

// Role and membership changes can alter decisions on any entity type, so
// their Change leaves EntityType empty.

// CreateRole adds or replaces a role.
func (e *Engine) CreateRole(ctx context.Context, role RoleInfo) error {
	if role.ID == "" {
		return invalid(ErrRoleRequired)
	}
	return e.roles(ctx, Change{Subject: Role(role.ID)}, func(rs RoleStore) error {
		return rs.CreateRole(ctx, role)
	})
}

// DeleteRole removes a role together with its memberships and grants.
func (e *Engine) DeleteRole(ctx context.Context, roleID string) error {
	if roleID == "" {
		return invalid(ErrRoleRequired)
	}
	if err := e.roles(ctx, Change{Subject: Role(roleID)}, func(rs RoleStore) error {
		return rs.DeleteRole(ctx, roleID)
	}); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "acl: role deleted", logger.RoleID(roleID))
	return nil
}

// AddRoleMember adds a user to a role.
func (e *Engine) AddRoleMember(ctx context.Context, userID, roleID string) error {
	if err := validateMembership(userID, roleID); err != nil {
		return err
	}
	return e.roles(ctx, Change{Subject: User(userID)}, func(rs RoleStore) error {
		return rs.AddMember(ctx, userID, roleID)
	})
}

// SetRoleMemberBanned flips the banned flag of a membership. A banned member
// loses the role's grants.
func (e *Engine) SetRoleMemberBanned(ctx context.Context, userID, roleID string, banned bool) error {
	if err := validateMembership(userID, roleID); err != nil {
		return err
	}
	if err := e.roles(ctx, Change{Subject: User(userID)}, func(rs RoleStore) error {
		return rs.SetMemberBanned(ctx, userID, roleID, banned)
	}); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "acl: membership ban changed",
		logger.UserID(userID),
		logger.RoleID(roleID),
		logger.Banned(banned),
	)
	return nil
}

// RemoveRoleMember deletes a membership.
func (e *Engine) RemoveRoleMember(ctx context.Context, userID, roleID string) error {
	if err := validateMembership(userID, roleID); err != nil {
		return err
	}
	return e.roles(ctx, Change{Subject: User(userID)}, func(rs RoleStore) error {
		return rs.RemoveMember(ctx, userID, roleID)
	})
}

func (e *Engine) roles(ctx context.Context, change Change, fn func(rs RoleStore) error) error {
	rs, ok := e.store.(RoleStore)
	if !ok {
		return ErrRolesUnsupported
	}
	if err := fn(rs); err != nil {
		return err
	}
	e.notify(ctx, change)
	return nil
}

func validateMembership(userID, roleID string) error {
	if userID == "" {
		return invalid(ErrSubjectRequired)
	}
	if roleID == "" {
		return invalid(ErrRoleRequired)
	}
	return nil
}
