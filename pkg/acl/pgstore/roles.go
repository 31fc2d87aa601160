package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/entityacl/pkg/acl"
)

// CreateRole inserts a role or updates the one with the same id.
func (s *Store) CreateRole(ctx context.Context, role acl.RoleInfo) error {
	if role.ID == "" {
		return errors.Join(acl.ErrInvalidArgument, acl.ErrRoleRequired)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO acl_roles (id, code, description, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET code = EXCLUDED.code, description = EXCLUDED.description, active = EXCLUDED.active`,
		role.ID, role.Code, role.Description, role.Active,
	)
	if err != nil {
		return fmt.Errorf("pgstore: create role: %w", err)
	}
	return nil
}

// DeleteRole removes a role; memberships and grants go with it.
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM acl_roles WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("pgstore: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(acl.ErrNotFound, acl.ErrRoleNotFound)
	}
	return nil
}

// Roles lists every role ordered by code.
func (s *Store) Roles(ctx context.Context) ([]acl.RoleInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code, active, description FROM acl_roles ORDER BY code, id`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[acl.RoleInfo])
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan roles: %w", err)
	}
	return roles, nil
}

// AddMember adds a user to a role. Adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, userID, roleID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO acl_user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return mapWriteError("add member", err)
	}
	return nil
}

// SetMemberBanned flips the banned flag of a membership.
func (s *Store) SetMemberBanned(ctx context.Context, userID, roleID string, banned bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE acl_user_roles SET banned = $3 WHERE user_id = $1 AND role_id = $2`,
		userID, roleID, banned,
	)
	if err != nil {
		return fmt.Errorf("pgstore: ban member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(acl.ErrNotFound, acl.ErrMemberNotFound)
	}
	return nil
}

// RemoveMember deletes a membership.
func (s *Store) RemoveMember(ctx context.Context, userID, roleID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM acl_user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID); err != nil {
		return fmt.Errorf("pgstore: remove member: %w", err)
	}
	return nil
}

// Members lists the memberships of a role.
func (s *Store) Members(ctx context.Context, roleID string) ([]acl.Membership, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, role_id, banned FROM acl_user_roles WHERE role_id = $1 ORDER BY user_id`,
		roleID,
	)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list members: %w", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowToStructByPos[acl.Membership])
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan members: %w", err)
	}
	return members, nil
}
