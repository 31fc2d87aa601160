package acl

import (
	"context"

	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// RevokeFromUser clears mask from the user's direct permissions on an entity
// and overwrites the inherited permissions of its descendants.
func (e *Engine) RevokeFromUser(ctx context.Context, mask permission.Mask, entityType EntityType, entityID, userID string) error {
	return e.Revoke(ctx, mask, entityType, entityID, User(userID))
}

// RevokeFromRole clears mask from the role's direct permissions on an entity.
func (e *Engine) RevokeFromRole(ctx context.Context, mask permission.Mask, entityType EntityType, entityID, roleID string) error {
	return e.Revoke(ctx, mask, entityType, entityID, Role(roleID))
}

// RevokeOwner removes ownership, and with it privacy, from an entity.
func (e *Engine) RevokeOwner(ctx context.Context, entityType EntityType, userID, entityID string) error {
	subject := User(userID)
	if err := subject.validate(); err != nil {
		return err
	}
	return e.revoke(ctx, permission.OwnerPrivate, entityType, entityID, subject)
}

// Revoke clears mask from the subject's direct slot on an entity. The Owner
// bit is rejected with ErrOwnerPermission; use RevokeOwner.
func (e *Engine) Revoke(ctx context.Context, mask permission.Mask, entityType EntityType, entityID string, subject Subject) error {
	if err := validateRequest(mask, subject); err != nil {
		return err
	}
	if mask.Has(permission.Owner) {
		return invalid(ErrOwnerPermission)
	}
	return e.revoke(ctx, mask, entityType, entityID, subject)
}

func (e *Engine) revoke(ctx context.Context, mask permission.Mask, entityType EntityType, entityID string, subject Subject) error {
	change := Change{EntityType: entityType, EntityID: entityID, Subject: subject}
	err := e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType, Subject: subject}); err != nil {
			return err
		}
		return e.revokeTx(ctx, tx, mask, entityType, entityID, subject)
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "acl: revoked",
		logger.EntityType(entityType),
		logger.EntityID(entityID),
		logger.Subject(subject),
		logger.Mask(mask),
	)
	return nil
}

func (e *Engine) revokeTx(ctx context.Context, tx Tx, mask permission.Mask, entityType EntityType, entityID string, subject Subject) error {
	if err := ensureRole(ctx, tx, subject); err != nil {
		return err
	}

	cur, ok, err := tx.FindGrant(ctx, DirectSlot(entityType, entityID, subject))
	if err != nil {
		return err
	}
	if !ok {
		// Only a ban marker may be left.
		cur, ok, err = tx.FindGrant(ctx, BannedSlot(entityType, entityID, subject))
		if err != nil || !ok {
			return err
		}
	}

	remaining := cur.Permissions.Clear(mask)
	switch {
	case remaining.IsNone() && !cur.Banned:
		if err := tx.DeleteGrant(ctx, cur.ID); err != nil {
			return err
		}
	case remaining != cur.Permissions:
		cur.Permissions = remaining
		if err := tx.UpdateGrant(ctx, cur); err != nil {
			return err
		}
	}

	if subject.IsRole() || entityID == Global {
		return nil
	}

	direct := remaining
	if cur.Banned {
		direct = permission.None
	}
	inherited, err := slotMask(ctx, tx, InheritedSlot(entityType, entityID, subject))
	if err != nil {
		return err
	}
	return e.cascade(ctx, tx, entityType, direct|inherited, entityID, subject.UserID, 0)
}
