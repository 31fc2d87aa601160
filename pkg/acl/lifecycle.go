package acl

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/entityacl/pkg/logger"
)

// Unify collapses rows into one direct row per subject on (entityType, entityID),
// OR-ing every unbanned row of that subject. Subjects keep the order of their
// first appearance; subjects whose union is None are dropped.
func Unify(entityType EntityType, entityID string, rows []Grant) []Grant {
	index := make(map[Subject]int, len(rows))
	out := make([]Grant, 0, len(rows))
	for _, r := range rows {
		if r.Banned || r.Permissions.IsNone() {
			continue
		}
		s := r.Subject()
		if i, ok := index[s]; ok {
			out[i].Permissions |= r.Permissions
			continue
		}
		index[s] = len(out)
		out = append(out, Grant{
			EntityType:  entityType,
			EntityID:    entityID,
			UserID:      s.UserID,
			RoleID:      s.RoleID,
			Permissions: r.Permissions,
		})
	}
	return out
}

// PromoteChildren prepares the removal of an entity: every first-level child
// receives, as direct rows, the union of its own rows and the entity's rows
// (without Owner and Private), then the entity's rows are deleted. Call it
// while the hierarchy still lists the children. An entity without rows is
// left alone, which makes repeated calls no-ops.
func (e *Engine) PromoteChildren(ctx context.Context, entityType EntityType, entityID string) error {
	change := Change{EntityType: entityType, EntityID: entityID}
	return e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType}); err != nil {
			return err
		}
		rows, err := tx.ListEntityGrants(ctx, entityType, entityID)
		if err != nil || len(rows) == 0 {
			return err
		}
		inheritable := make([]Grant, 0, len(rows))
		for _, r := range rows {
			r.Permissions = r.Permissions.Inheritable()
			inheritable = append(inheritable, r)
		}

		children, err := e.hierarchy.Children(ctx, entityType, entityID)
		if err != nil {
			return fmt.Errorf("acl: children of %s/%s: %w", entityType, entityID, err)
		}
		for _, childID := range children {
			if err := e.promoteChild(ctx, tx, entityType, childID, inheritable); err != nil {
				return err
			}
		}

		n, err := tx.DeleteEntityGrants(ctx, entityType, entityID, DeleteFilter{})
		if err != nil {
			return err
		}
		e.logger.InfoContext(ctx, "acl: children promoted",
			logger.EntityType(entityType),
			logger.EntityID(entityID),
			logger.Count(n),
		)
		return nil
	})
}

func (e *Engine) promoteChild(ctx context.Context, tx Tx, entityType EntityType, childID string, parentRows []Grant) error {
	childRows, err := tx.ListEntityGrants(ctx, entityType, childID)
	if err != nil {
		return err
	}
	merged := Unify(entityType, childID, append(childRows, parentRows...))

	for _, r := range childRows {
		if r.Banned {
			continue
		}
		if err := tx.DeleteGrant(ctx, r.ID); err != nil {
			return err
		}
	}
	for _, g := range merged {
		if _, err := tx.InsertGrant(ctx, g); err != nil {
			return err
		}
	}
	for _, g := range merged {
		if g.UserID == "" {
			continue
		}
		if err := e.cascade(ctx, tx, entityType, g.Permissions, childID, g.UserID, 0); err != nil {
			return err
		}
	}
	return nil
}

// Reposition re-derives an entity's inherited rows after it moved under a new
// parent: stale inherited rows are dropped, each subject's inherited slot is
// recomputed from the new parent, and users' combined values are cascaded to
// the subtree. Call it once the hierarchy reports the new parent.
func (e *Engine) Reposition(ctx context.Context, entityType EntityType, entityID string) error {
	if entityID == Global {
		return invalid(ErrGlobalEntity)
	}
	change := Change{EntityType: entityType, EntityID: entityID}
	return e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType}); err != nil {
			return err
		}
		rows, err := tx.ListEntityGrants(ctx, entityType, entityID)
		if err != nil {
			return err
		}
		subjects := subjectsOf(nil, rows)

		parentID, hasParent, err := e.hierarchy.Parent(ctx, entityType, entityID)
		if err != nil {
			return fmt.Errorf("acl: parent of %s/%s: %w", entityType, entityID, err)
		}
		if hasParent {
			parentRows, err := tx.ListEntityGrants(ctx, entityType, parentID)
			if err != nil {
				return err
			}
			subjects = subjectsOf(subjects, parentRows)
		}

		if _, err := tx.DeleteEntityGrants(ctx, entityType, entityID, DeleteFilter{InheritedOnly: true}); err != nil {
			return err
		}

		for _, s := range subjects {
			inherited, err := e.refreshInherited(ctx, tx, entityType, entityID, s)
			if err != nil {
				return err
			}
			if !s.IsUser() {
				continue
			}
			direct, err := slotMask(ctx, tx, DirectSlot(entityType, entityID, s))
			if err != nil {
				return err
			}
			if err := e.cascade(ctx, tx, entityType, direct|inherited, entityID, s.UserID, 0); err != nil {
				return err
			}
		}

		e.logger.InfoContext(ctx, "acl: entity repositioned",
			logger.EntityType(entityType),
			logger.EntityID(entityID),
			logger.Count(len(subjects)),
		)
		return nil
	})
}

// CopyPermissions grants, on toID, the unified rows of fromID (without Owner
// and Private) and propagates them as regular grants.
func (e *Engine) CopyPermissions(ctx context.Context, entityType EntityType, fromID, toID string) error {
	change := Change{EntityType: entityType, EntityID: toID}
	return e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType}); err != nil {
			return err
		}
		rows, err := tx.ListEntityGrants(ctx, entityType, fromID)
		if err != nil {
			return err
		}
		for _, g := range Unify(entityType, toID, rows) {
			mask := g.Permissions.Inheritable()
			if mask.IsNone() {
				continue
			}
			if err := e.grantTx(ctx, tx, mask, entityType, toID, g.Subject()); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteEntityPermissions removes every row stored on an entity, ban markers
// included. Descendants are not touched.
func (e *Engine) DeleteEntityPermissions(ctx context.Context, entityType EntityType, entityID string) error {
	change := Change{EntityType: entityType, EntityID: entityID}
	return e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType}); err != nil {
			return err
		}
		_, err := tx.DeleteEntityGrants(ctx, entityType, entityID, DeleteFilter{})
		return err
	})
}

// subjectsOf appends the distinct subjects of unbanned rows to dst.
func subjectsOf(dst []Subject, rows []Grant) []Subject {
	seen := make(map[Subject]struct{}, len(dst)+len(rows))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, r := range rows {
		if r.Banned {
			continue
		}
		s := r.Subject()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

// Permission returns the row stored in slot.
func (e *Engine) Permission(ctx context.Context, slot Slot) (Grant, bool, error) {
	return e.store.FindGrant(ctx, slot)
}

// EntityPermissions returns every row stored on an entity.
func (e *Engine) EntityPermissions(ctx context.Context, entityType EntityType, entityID string) ([]Grant, error) {
	return e.store.ListEntityGrants(ctx, entityType, entityID)
}

// UserPermissions returns every row a user holds on entities of one type.
// Rows obtained through roles are not included.
func (e *Engine) UserPermissions(ctx context.Context, entityType EntityType, userID string) ([]Grant, error) {
	return e.store.ListUserGrants(ctx, entityType, userID)
}

// RolePermissions returns every row held by a role.
func (e *Engine) RolePermissions(ctx context.Context, roleID string) ([]Grant, error) {
	return e.store.ListRoleGrants(ctx, roleID)
}
