package acl

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// cascade overwrites the user's inherited slot on every descendant of
// parentID with value, recomputing each child's own combined value on the way
// down. Private entities stop the walk: a private parent propagates nothing
// and a private child is left untouched together with its subtree.
func (e *Engine) cascade(ctx context.Context, tx Tx, entityType EntityType, value permission.Mask, parentID, userID string, depth int) error {
	private, err := isPrivate(ctx, tx, entityType, parentID)
	if err != nil || private {
		return err
	}

	value = value.Inheritable()
	children, err := e.hierarchy.Children(ctx, entityType, parentID)
	if err != nil {
		return fmt.Errorf("acl: children of %s/%s: %w", entityType, parentID, err)
	}
	// Children sit at depth+1; at most maxDepth levels below the root are written.
	if len(children) > 0 && depth >= e.maxDepth {
		return fmt.Errorf("acl: cascade below %s/%s: %w", entityType, parentID, ErrHierarchyTooDeep)
	}

	subject := User(userID)
	for _, childID := range children {
		childPrivate, err := isPrivate(ctx, tx, entityType, childID)
		if err != nil {
			return err
		}
		if childPrivate {
			e.logger.DebugContext(ctx, "acl: cascade stopped at private entity",
				logger.EntityType(entityType),
				logger.EntityID(childID),
				logger.Depth(depth+1),
			)
			continue
		}

		if err := setInherited(ctx, tx, InheritedSlot(entityType, childID, subject), value); err != nil {
			return err
		}
		direct, err := slotMask(ctx, tx, DirectSlot(entityType, childID, subject))
		if err != nil {
			return err
		}

		e.logger.DebugContext(ctx, "acl: cascade",
			logger.EntityType(entityType),
			logger.EntityID(childID),
			logger.Subject(subject),
			logger.Mask(value),
			logger.Depth(depth+1),
		)

		if err := e.cascade(ctx, tx, entityType, direct|value, childID, userID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// setInherited overwrites an inherited slot. A None value removes the row.
func setInherited(ctx context.Context, tx Tx, slot Slot, value permission.Mask) error {
	cur, ok, err := tx.FindGrant(ctx, slot)
	if err != nil {
		return err
	}
	switch {
	case !ok && value.IsNone():
		return nil
	case !ok:
		_, err := tx.InsertGrant(ctx, newGrant(slot, value))
		return err
	case value.IsNone():
		return tx.DeleteGrant(ctx, cur.ID)
	case cur.Permissions != value:
		cur.Permissions = value
		return tx.UpdateGrant(ctx, cur)
	}
	return nil
}

// slotMask returns the mask stored in slot, None when the slot is empty.
func slotMask(ctx context.Context, q Queries, slot Slot) (permission.Mask, error) {
	g, ok, err := q.FindGrant(ctx, slot)
	if err != nil || !ok {
		return permission.None, err
	}
	return g.Permissions, nil
}

// effectiveMask is the subject's direct and inherited value on an entity.
func effectiveMask(ctx context.Context, q Queries, entityType EntityType, entityID string, subject Subject) (permission.Mask, error) {
	direct, err := slotMask(ctx, q, DirectSlot(entityType, entityID, subject))
	if err != nil {
		return 0, err
	}
	inherited, err := slotMask(ctx, q, InheritedSlot(entityType, entityID, subject))
	if err != nil {
		return 0, err
	}
	return direct | inherited, nil
}

// findOwner returns the direct, user-held row carrying the Owner bit.
func findOwner(ctx context.Context, q Queries, entityType EntityType, entityID string) (Grant, bool, error) {
	grants, err := q.ListEntityGrants(ctx, entityType, entityID)
	if err != nil {
		return Grant{}, false, err
	}
	for _, g := range grants {
		if !g.Inherited && !g.Banned && g.UserID != "" && g.Permissions.Has(permission.Owner) {
			return g, true, nil
		}
	}
	return Grant{}, false, nil
}

// isPrivate reports whether the owner's direct row carries the Private bit.
func isPrivate(ctx context.Context, q Queries, entityType EntityType, entityID string) (bool, error) {
	if entityID == Global {
		return false, nil
	}
	owner, ok, err := findOwner(ctx, q, entityType, entityID)
	if err != nil || !ok {
		return false, err
	}
	return owner.Permissions.HasAll(permission.OwnerPrivate), nil
}
