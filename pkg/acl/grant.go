package acl

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// GrantToUser merges mask into the user's direct permissions on an entity and
// propagates the result to the entity's descendants. The Owner bit cannot be
// granted this way, use GrantOwner.
func (e *Engine) GrantToUser(ctx context.Context, mask permission.Mask, entityType EntityType, entityID, userID string) error {
	return e.Grant(ctx, mask, entityType, entityID, User(userID))
}

// GrantToRole merges mask into the role's direct permissions on an entity.
// Role grants are not propagated to descendants.
func (e *Engine) GrantToRole(ctx context.Context, mask permission.Mask, entityType EntityType, entityID, roleID string) error {
	return e.Grant(ctx, mask, entityType, entityID, Role(roleID))
}

// GrantOwner makes userID the owner of an entity. A previous owner loses the
// Owner and Private bits.
func (e *Engine) GrantOwner(ctx context.Context, entityType EntityType, userID, entityID string) error {
	subject := User(userID)
	if err := subject.validate(); err != nil {
		return err
	}
	change := Change{EntityType: entityType, EntityID: entityID}
	return e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType}); err != nil {
			return err
		}
		owner, ok, err := findOwner(ctx, tx, entityType, entityID)
		if err != nil {
			return err
		}
		if ok && owner.UserID != userID {
			if err := e.revokeTx(ctx, tx, permission.OwnerPrivate, entityType, entityID, owner.Subject()); err != nil {
				return err
			}
		}
		return e.grantTx(ctx, tx, permission.Owner, entityType, entityID, subject)
	})
}

// Grant merges mask into the subject's direct slot on an entity. The Owner
// bit is rejected with ErrOwnerPermission; ownership changes go through
// GrantOwner.
func (e *Engine) Grant(ctx context.Context, mask permission.Mask, entityType EntityType, entityID string, subject Subject) error {
	if err := validateRequest(mask, subject); err != nil {
		return err
	}
	if mask.Has(permission.Owner) {
		return invalid(ErrOwnerPermission)
	}
	change := Change{EntityType: entityType, EntityID: entityID, Subject: subject}
	err := e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType, Subject: subject}); err != nil {
			return err
		}
		return e.grantTx(ctx, tx, mask, entityType, entityID, subject)
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "acl: granted",
		logger.EntityType(entityType),
		logger.EntityID(entityID),
		logger.Subject(subject),
		logger.Mask(mask),
	)
	return nil
}

func (e *Engine) grantTx(ctx context.Context, tx Tx, mask permission.Mask, entityType EntityType, entityID string, subject Subject) error {
	if err := ensureRole(ctx, tx, subject); err != nil {
		return err
	}

	direct, err := mergeDirect(ctx, tx, mask, DirectSlot(entityType, entityID, subject))
	if err != nil {
		return err
	}

	inherited, err := e.refreshInherited(ctx, tx, entityType, entityID, subject)
	if err != nil {
		return err
	}

	if subject.IsRole() || entityID == Global {
		return nil
	}
	return e.cascade(ctx, tx, entityType, direct|inherited, entityID, subject.UserID, 0)
}

// refreshInherited recomputes the subject's inherited slot on an entity from
// its parent and returns the entity's inherited value afterwards.
func (e *Engine) refreshInherited(ctx context.Context, tx Tx, entityType EntityType, entityID string, subject Subject) (permission.Mask, error) {
	current, err := slotMask(ctx, tx, InheritedSlot(entityType, entityID, subject))
	if err != nil || entityID == Global {
		return current, err
	}

	parentID, ok, err := e.hierarchy.Parent(ctx, entityType, entityID)
	if err != nil {
		return 0, fmt.Errorf("acl: parent of %s/%s: %w", entityType, entityID, err)
	}
	if !ok {
		return current, nil
	}

	value, err := effectiveMask(ctx, tx, entityType, parentID, subject)
	if err != nil {
		return 0, err
	}
	if value.IsNone() {
		return current, nil
	}

	if subject.IsRole() {
		private, err := isPrivate(ctx, tx, entityType, entityID)
		if err != nil {
			return 0, err
		}
		if private {
			_, err := tx.DeleteEntityGrants(ctx, entityType, entityID, DeleteFilter{InheritedOnly: true, RolesOnly: true})
			return 0, err
		}
	}

	value = value.Inheritable()
	if err := setInherited(ctx, tx, InheritedSlot(entityType, entityID, subject), value); err != nil {
		return 0, err
	}
	return value, nil
}

func validateRequest(mask permission.Mask, subject Subject) error {
	if mask.IsNone() {
		return invalid(ErrEmptyPermission)
	}
	return subject.validate()
}

func ensureRole(ctx context.Context, q Queries, subject Subject) error {
	if !subject.IsRole() {
		return nil
	}
	ok, err := q.RoleExists(ctx, subject.RoleID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(ErrRoleNotFound)
	}
	return nil
}

// mergeDirect ORs mask into the slot, creating it when missing, and returns
// the resulting mask.
func mergeDirect(ctx context.Context, tx Tx, mask permission.Mask, slot Slot) (permission.Mask, error) {
	cur, ok, err := tx.FindGrant(ctx, slot)
	if err != nil {
		return 0, err
	}
	if !ok {
		g, err := tx.InsertGrant(ctx, newGrant(slot, mask))
		if err != nil {
			return 0, err
		}
		return g.Permissions, nil
	}
	merged := cur.Permissions.Set(mask)
	if merged != cur.Permissions {
		cur.Permissions = merged
		if err := tx.UpdateGrant(ctx, cur); err != nil {
			return 0, err
		}
	}
	return merged, nil
}

func newGrant(slot Slot, mask permission.Mask) Grant {
	return Grant{
		EntityType:  slot.EntityType,
		EntityID:    slot.EntityID,
		UserID:      slot.Subject.UserID,
		RoleID:      slot.Subject.RoleID,
		Permissions: mask,
		Inherited:   slot.Inherited,
		Banned:      slot.Banned,
	}
}
