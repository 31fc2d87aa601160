package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/permission"
	"github.com/dmitrymomot/entityacl/pkg/pg"
)

const grantColumns = `id, entity_type, entity_id, COALESCE(user_id, ''), COALESCE(role_id, ''), permissions, inherited, banned`

const slotCondition = `entity_type = $1 AND entity_id = $2
	AND COALESCE(user_id, '') = $3 AND COALESCE(role_id, '') = $4
	AND inherited = $5 AND banned = $6`

// queries implements acl.Queries on a pool or a transaction.
type queries struct {
	db dbtx
}

func (q *queries) FindGrant(ctx context.Context, slot acl.Slot) (acl.Grant, bool, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM acl_assigned_permissions WHERE `+slotCondition,
		string(slot.EntityType), slot.EntityID, slot.Subject.UserID, slot.Subject.RoleID, slot.Inherited, slot.Banned,
	)
	g, err := scanGrant(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return acl.Grant{}, false, nil
		}
		return acl.Grant{}, false, fmt.Errorf("pgstore: find grant: %w", err)
	}
	return g, true, nil
}

func (q *queries) ListEntityGrants(ctx context.Context, entityType acl.EntityType, entityID string) ([]acl.Grant, error) {
	return q.listGrants(ctx,
		`SELECT `+grantColumns+` FROM acl_assigned_permissions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq`,
		string(entityType), entityID,
	)
}

func (q *queries) ListRoleGrants(ctx context.Context, roleID string) ([]acl.Grant, error) {
	return q.listGrants(ctx,
		`SELECT `+grantColumns+` FROM acl_assigned_permissions
		WHERE role_id = $1
		ORDER BY entity_type, entity_id, seq`,
		roleID,
	)
}

func (q *queries) ListUserGrants(ctx context.Context, entityType acl.EntityType, userID string) ([]acl.Grant, error) {
	return q.listGrants(ctx,
		`SELECT `+grantColumns+` FROM acl_assigned_permissions
		WHERE entity_type = $1 AND user_id = $2
		ORDER BY seq`,
		string(entityType), userID,
	)
}

func (q *queries) RoleExists(ctx context.Context, roleID string) (bool, error) {
	var ok bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM acl_roles WHERE id = $1)`, roleID).Scan(&ok); err != nil {
		return false, fmt.Errorf("pgstore: role exists: %w", err)
	}
	return ok, nil
}

func (q *queries) HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType acl.EntityType, entityID string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM acl_assigned_permissions p
			WHERE p.entity_type = $2 AND p.entity_id = $3
				AND NOT p.banned
				AND (p.permissions & $4::bigint) <> 0
				AND (
					p.user_id = $1
					OR p.role_id IN (
						SELECT ur.role_id FROM acl_user_roles ur
						WHERE ur.user_id = $1 AND NOT ur.banned
					)
				)
		)`,
		userID, string(entityType), entityID, int64(mask),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("pgstore: has permission: %w", err)
	}
	return ok, nil
}

func (q *queries) listGrants(ctx context.Context, sql string, args ...any) ([]acl.Grant, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list grants: %w", err)
	}
	grants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (acl.Grant, error) {
		return scanGrant(row)
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan grants: %w", err)
	}
	return grants, nil
}

func scanGrant(row pgx.Row) (acl.Grant, error) {
	var (
		g          acl.Grant
		entityType string
		mask       int64
	)
	err := row.Scan(&g.ID, &entityType, &g.EntityID, &g.UserID, &g.RoleID, &mask, &g.Inherited, &g.Banned)
	if err != nil {
		return acl.Grant{}, err
	}
	g.EntityType = acl.EntityType(entityType)
	g.Permissions = permission.Mask(mask)
	return g, nil
}

// txQueries implements acl.Tx on an open transaction.
type txQueries struct {
	queries
}

func (t *txQueries) InsertGrant(ctx context.Context, g acl.Grant) (acl.Grant, error) {
	switch {
	case g.UserID == "" && g.RoleID == "":
		return acl.Grant{}, errors.Join(acl.ErrInvalidArgument, acl.ErrSubjectRequired)
	case g.UserID != "" && g.RoleID != "":
		return acl.Grant{}, errors.Join(acl.ErrInvalidArgument, acl.ErrAmbiguousSubject)
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := t.db.Exec(ctx, `
		INSERT INTO acl_assigned_permissions (id, entity_type, entity_id, user_id, role_id, permissions, inherited, banned)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)`,
		g.ID, string(g.EntityType), g.EntityID, g.UserID, g.RoleID, int64(g.Permissions), g.Inherited, g.Banned,
	)
	if err != nil {
		return acl.Grant{}, mapWriteError("insert grant", err)
	}
	return g, nil
}

func (t *txQueries) UpdateGrant(ctx context.Context, g acl.Grant) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE acl_assigned_permissions
		SET permissions = $2, banned = $3, updated_at = now()
		WHERE id = $1`,
		g.ID, int64(g.Permissions), g.Banned,
	)
	if err != nil {
		return mapWriteError("update grant", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(acl.ErrNotFound, acl.ErrGrantNotFound)
	}
	return nil
}

func (t *txQueries) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	if _, err := t.db.Exec(ctx, `DELETE FROM acl_assigned_permissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pgstore: delete grant: %w", err)
	}
	return nil
}

func (t *txQueries) DeleteEntityGrants(ctx context.Context, entityType acl.EntityType, entityID string, filter acl.DeleteFilter) (int, error) {
	tag, err := t.db.Exec(ctx, `
		DELETE FROM acl_assigned_permissions
		WHERE entity_type = $1 AND entity_id = $2
			AND (NOT $3::boolean OR inherited)
			AND (NOT $4::boolean OR role_id IS NOT NULL)`,
		string(entityType), entityID, filter.InheritedOnly, filter.RolesOnly,
	)
	if err != nil {
		return 0, fmt.Errorf("pgstore: delete entity grants: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Lock takes transaction scoped advisory locks. The entity type uses the
// single-key lock space, the (type, subject) pair the two-key space.
func (t *txQueries) Lock(ctx context.Context, key acl.LockKey) error {
	entityType := string(key.EntityType)
	if key.Subject == (acl.Subject{}) {
		if _, err := t.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entityType); err != nil {
			return mapLockError(err)
		}
		return nil
	}
	if _, err := t.db.Exec(ctx, `SELECT pg_advisory_xact_lock_shared(hashtext($1))`, entityType); err != nil {
		return mapLockError(err)
	}
	if _, err := t.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, entityType, key.Subject.String()); err != nil {
		return mapLockError(err)
	}
	return nil
}

// ErrLockTimeout is returned when an advisory lock was not granted in time.
var ErrLockTimeout = errors.New("pgstore.lock_timeout")

func mapLockError(err error) error {
	if pg.IsLockTimeoutError(err) {
		return errors.Join(ErrLockTimeout, err)
	}
	return fmt.Errorf("pgstore: lock: %w", err)
}

func mapWriteError(op string, err error) error {
	switch {
	case pg.IsDuplicateKeyError(err):
		return errors.Join(acl.ErrInvalidArgument, acl.ErrDuplicateSlot)
	case pg.IsForeignKeyViolationError(err):
		return errors.Join(acl.ErrNotFound, acl.ErrRoleNotFound)
	}
	return fmt.Errorf("pgstore: %s: %w", op, err)
}
