package acl

import (
	"context"

	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// SetUserBanned bans or unbans a user from writing entities of a type.
//
// Banning moves the write bits (Create, Update, Delete) of the user's
// type-wide row into a banned marker row; the remaining bits (read, login,
// ...) stay usable. When the row holds exactly the write bits it is flipped
// in place. Unbanning folds the marker back into the user's row.
func (e *Engine) SetUserBanned(ctx context.Context, entityType EntityType, userID string, banned bool) error {
	subject := User(userID)
	if err := subject.validate(); err != nil {
		return err
	}
	change := Change{EntityType: entityType, EntityID: Global, Subject: subject}
	err := e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType, Subject: subject}); err != nil {
			return err
		}
		if banned {
			return ban(ctx, tx, entityType, subject)
		}
		return unban(ctx, tx, entityType, subject)
	})
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "acl: ban changed",
		logger.EntityType(entityType),
		logger.Subject(subject),
		logger.Banned(banned),
	)
	return nil
}

// UnbanUser deletes the user's ban marker without restoring its bits; a
// following grant re-establishes the write permissions.
func (e *Engine) UnbanUser(ctx context.Context, entityType EntityType, userID string) error {
	subject := User(userID)
	if err := subject.validate(); err != nil {
		return err
	}
	change := Change{EntityType: entityType, EntityID: Global, Subject: subject}
	return e.write(ctx, change, func(ctx context.Context, tx Tx) error {
		if err := tx.Lock(ctx, LockKey{EntityType: entityType, Subject: subject}); err != nil {
			return err
		}
		marker, ok, err := tx.FindGrant(ctx, BannedSlot(entityType, Global, subject))
		if err != nil || !ok {
			return err
		}
		return tx.DeleteGrant(ctx, marker.ID)
	})
}

func ban(ctx context.Context, tx Tx, entityType EntityType, subject Subject) error {
	row, hasRow, err := tx.FindGrant(ctx, DirectSlot(entityType, Global, subject))
	if err != nil {
		return err
	}
	marker, hasMarker, err := tx.FindGrant(ctx, BannedSlot(entityType, Global, subject))
	if err != nil {
		return err
	}

	if hasRow && !hasMarker && row.Permissions == permission.CreateUpdateDelete {
		row.Banned = true
		return tx.UpdateGrant(ctx, row)
	}

	if hasMarker {
		if marker.Permissions != permission.CreateUpdateDelete {
			marker.Permissions = permission.CreateUpdateDelete
			if err := tx.UpdateGrant(ctx, marker); err != nil {
				return err
			}
		}
	} else {
		if _, err := tx.InsertGrant(ctx, newGrant(BannedSlot(entityType, Global, subject), permission.CreateUpdateDelete)); err != nil {
			return err
		}
	}

	if !hasRow {
		return nil
	}
	rest := row.Permissions.Clear(permission.CreateUpdateDelete)
	if rest.IsNone() {
		return tx.DeleteGrant(ctx, row.ID)
	}
	if rest != row.Permissions {
		row.Permissions = rest
		return tx.UpdateGrant(ctx, row)
	}
	return nil
}

func unban(ctx context.Context, tx Tx, entityType EntityType, subject Subject) error {
	marker, hasMarker, err := tx.FindGrant(ctx, BannedSlot(entityType, Global, subject))
	if err != nil || !hasMarker {
		return err
	}
	row, hasRow, err := tx.FindGrant(ctx, DirectSlot(entityType, Global, subject))
	if err != nil {
		return err
	}
	if !hasRow {
		marker.Banned = false
		if marker.Permissions.IsNone() {
			return tx.DeleteGrant(ctx, marker.ID)
		}
		return tx.UpdateGrant(ctx, marker)
	}
	row.Permissions = row.Permissions.Set(marker.Permissions)
	if err := tx.UpdateGrant(ctx, row); err != nil {
		return err
	}
	return tx.DeleteGrant(ctx, marker.ID)
}
