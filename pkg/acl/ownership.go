package acl

import (
	"context"

	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// EntityOwner returns the id of the user owning an entity.
func (e *Engine) EntityOwner(ctx context.Context, entityType EntityType, entityID string) (string, bool, error) {
	owner, ok, err := findOwner(ctx, e.store, entityType, entityID)
	if err != nil || !ok {
		return "", false, err
	}
	return owner.UserID, true, nil
}

// IsEntityPrivate reports whether the owner flagged the entity private.
func (e *Engine) IsEntityPrivate(ctx context.Context, entityType EntityType, entityID string) (bool, error) {
	return isPrivate(ctx, e.store, entityType, entityID)
}

// SetPrivate sets or clears the Private bit on the owner's row. Making an
// entity private freezes what its subtree inherited so far; making it public
// again propagates the owner's current value down. Fails with ErrNotFound
// when the entity has no owner.
func (e *Engine) SetPrivate(ctx context.Context, entityType EntityType, entityID string, private bool) error {
	change := Change{EntityType: entityType, EntityID: entityID}
	err := e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType}); err != nil {
			return err
		}
		owner, ok, err := findOwner(ctx, tx, entityType, entityID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(ErrOwnerNotFound)
		}
		if private {
			return e.grantTx(ctx, tx, permission.Private, entityType, entityID, owner.Subject())
		}
		return e.revokeTx(ctx, tx, permission.Private, entityType, entityID, owner.Subject())
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "acl: privacy changed",
		logger.EntityType(entityType),
		logger.EntityID(entityID),
		logger.Private(private),
	)
	return nil
}
