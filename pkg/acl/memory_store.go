package acl

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// MemoryStore is an in-process Store. Transactions are serialised and work on
// a private copy of the data that replaces the shared state on commit, so a
// failed transaction leaves nothing behind.
type MemoryStore struct {
	txMu  sync.Mutex // serialises writers
	mu    sync.RWMutex
	state *memState
}

type memberKey struct {
	userID string
	roleID string
}

type memState struct {
	grants  []Grant
	roles   map[string]RoleInfo
	members map[memberKey]Membership
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			roles:   make(map[string]RoleInfo),
			members: make(map[memberKey]Membership),
		},
	}
}

// InTx runs fn against a snapshot and publishes it when fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &memTx{state: snapshot}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = snapshot
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FindGrant(_ context.Context, slot Slot) (Grant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.find(slot)
	return g, ok, nil
}

func (s *MemoryStore) ListEntityGrants(_ context.Context, entityType EntityType, entityID string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.entityGrants(entityType, entityID), nil
}

func (s *MemoryStore) ListRoleGrants(_ context.Context, roleID string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.roleGrants(roleID), nil
}

func (s *MemoryStore) ListUserGrants(_ context.Context, entityType EntityType, userID string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.userGrants(entityType, userID), nil
}

func (s *MemoryStore) RoleExists(_ context.Context, roleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.roles[roleID]
	return ok, nil
}

func (s *MemoryStore) HasPermission(_ context.Context, userID string, mask permission.Mask, entityType EntityType, entityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.hasPermission(userID, mask, entityType, entityID), nil
}

// Grants returns a copy of every stored row.
func (s *MemoryStore) Grants() []Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.grants)
}

// CreateRole adds or replaces a role.
func (s *MemoryStore) CreateRole(ctx context.Context, role RoleInfo) error {
	if role.ID == "" {
		return invalid(ErrRoleRequired)
	}
	return s.mutate(ctx, func(st *memState) error {
		st.roles[role.ID] = role
		return nil
	})
}

// DeleteRole removes a role, its memberships and its grants.
func (s *MemoryStore) DeleteRole(ctx context.Context, roleID string) error {
	return s.mutate(ctx, func(st *memState) error {
		if _, ok := st.roles[roleID]; !ok {
			return notFound(ErrRoleNotFound)
		}
		delete(st.roles, roleID)
		for k := range st.members {
			if k.roleID == roleID {
				delete(st.members, k)
			}
		}
		st.grants = slices.DeleteFunc(st.grants, func(g Grant) bool { return g.RoleID == roleID })
		return nil
	})
}

// AddMember adds a user to a role. Adding an existing member is a no-op.
func (s *MemoryStore) AddMember(ctx context.Context, userID, roleID string) error {
	return s.mutate(ctx, func(st *memState) error {
		if _, ok := st.roles[roleID]; !ok {
			return notFound(ErrRoleNotFound)
		}
		k := memberKey{userID: userID, roleID: roleID}
		if _, ok := st.members[k]; !ok {
			st.members[k] = Membership{UserID: userID, RoleID: roleID}
		}
		return nil
	})
}

// SetMemberBanned flips the banned flag of a membership.
func (s *MemoryStore) SetMemberBanned(ctx context.Context, userID, roleID string, banned bool) error {
	return s.mutate(ctx, func(st *memState) error {
		k := memberKey{userID: userID, roleID: roleID}
		m, ok := st.members[k]
		if !ok {
			return notFound(ErrMemberNotFound)
		}
		m.Banned = banned
		st.members[k] = m
		return nil
	})
}

// RemoveMember deletes a membership.
func (s *MemoryStore) RemoveMember(ctx context.Context, userID, roleID string) error {
	return s.mutate(ctx, func(st *memState) error {
		delete(st.members, memberKey{userID: userID, roleID: roleID})
		return nil
	})
}

// Roles lists every role ordered by code.
func (s *MemoryStore) Roles(context.Context) ([]RoleInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := slices.Collect(maps.Values(s.state.roles))
	slices.SortFunc(roles, func(a, b RoleInfo) int {
		return cmp.Or(cmp.Compare(a.Code, b.Code), cmp.Compare(a.ID, b.ID))
	})
	return roles, nil
}

// Members lists the memberships of a role ordered by user id.
func (s *MemoryStore) Members(_ context.Context, roleID string) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Membership
	for k, m := range s.state.members {
		if k.roleID == roleID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Membership) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

func (s *MemoryStore) mutate(ctx context.Context, fn func(st *memState) error) error {
	return s.InTx(ctx, func(_ context.Context, tx Tx) error {
		return fn(tx.(*memTx).state)
	})
}

func (st *memState) clone() *memState {
	c := &memState{
		grants:  slices.Clone(st.grants),
		roles:   make(map[string]RoleInfo, len(st.roles)),
		members: make(map[memberKey]Membership, len(st.members)),
	}
	for k, v := range st.roles {
		c.roles[k] = v
	}
	for k, v := range st.members {
		c.members[k] = v
	}
	return c
}

func (st *memState) index(slot Slot) int {
	return slices.IndexFunc(st.grants, func(g Grant) bool { return g.Slot() == slot })
}

func (st *memState) find(slot Slot) (Grant, bool) {
	if i := st.index(slot); i >= 0 {
		return st.grants[i], true
	}
	return Grant{}, false
}

func (st *memState) entityGrants(entityType EntityType, entityID string) []Grant {
	var out []Grant
	for _, g := range st.grants {
		if g.EntityType == entityType && g.EntityID == entityID {
			out = append(out, g)
		}
	}
	return out
}

func (st *memState) roleGrants(roleID string) []Grant {
	var out []Grant
	for _, g := range st.grants {
		if g.RoleID == roleID {
			out = append(out, g)
		}
	}
	return out
}

func (st *memState) userGrants(entityType EntityType, userID string) []Grant {
	var out []Grant
	for _, g := range st.grants {
		if g.EntityType == entityType && g.UserID == userID {
			out = append(out, g)
		}
	}
	return out
}

func (st *memState) hasPermission(userID string, mask permission.Mask, entityType EntityType, entityID string) bool {
	for _, g := range st.grants {
		if g.Banned || g.EntityType != entityType || g.EntityID != entityID || !g.Permissions.Has(mask) {
			continue
		}
		if g.UserID != "" && g.UserID == userID {
			return true
		}
		if g.RoleID != "" {
			if m, ok := st.members[memberKey{userID: userID, roleID: g.RoleID}]; ok && !m.Banned {
				return true
			}
		}
	}
	return false
}

type memTx struct {
	state *memState
}

func (t *memTx) FindGrant(_ context.Context, slot Slot) (Grant, bool, error) {
	g, ok := t.state.find(slot)
	return g, ok, nil
}

func (t *memTx) ListEntityGrants(_ context.Context, entityType EntityType, entityID string) ([]Grant, error) {
	return t.state.entityGrants(entityType, entityID), nil
}

func (t *memTx) ListRoleGrants(_ context.Context, roleID string) ([]Grant, error) {
	return t.state.roleGrants(roleID), nil
}

func (t *memTx) ListUserGrants(_ context.Context, entityType EntityType, userID string) ([]Grant, error) {
	return t.state.userGrants(entityType, userID), nil
}

func (t *memTx) RoleExists(_ context.Context, roleID string) (bool, error) {
	_, ok := t.state.roles[roleID]
	return ok, nil
}

func (t *memTx) HasPermission(_ context.Context, userID string, mask permission.Mask, entityType EntityType, entityID string) (bool, error) {
	return t.state.hasPermission(userID, mask, entityType, entityID), nil
}

func (t *memTx) InsertGrant(_ context.Context, g Grant) (Grant, error) {
	if err := g.Subject().validate(); err != nil {
		return Grant{}, err
	}
	if t.state.index(g.Slot()) >= 0 {
		return Grant{}, invalid(ErrDuplicateSlot)
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	t.state.grants = append(t.state.grants, g)
	return g, nil
}

func (t *memTx) UpdateGrant(_ context.Context, g Grant) error {
	i := slices.IndexFunc(t.state.grants, func(x Grant) bool { return x.ID == g.ID })
	if i < 0 {
		return notFound(ErrGrantNotFound)
	}
	cur := t.state.grants[i]
	cur.Permissions = g.Permissions
	if cur.Banned != g.Banned {
		cur.Banned = g.Banned
		if t.state.index(cur.Slot()) >= 0 {
			return invalid(ErrDuplicateSlot)
		}
	}
	t.state.grants[i] = cur
	return nil
}

func (t *memTx) DeleteGrant(_ context.Context, id uuid.UUID) error {
	t.state.grants = slices.DeleteFunc(t.state.grants, func(g Grant) bool { return g.ID == id })
	return nil
}

func (t *memTx) DeleteEntityGrants(_ context.Context, entityType EntityType, entityID string, filter DeleteFilter) (int, error) {
	before := len(t.state.grants)
	t.state.grants = slices.DeleteFunc(t.state.grants, func(g Grant) bool {
		if g.EntityType != entityType || g.EntityID != entityID {
			return false
		}
		if filter.InheritedOnly && !g.Inherited {
			return false
		}
		if filter.RolesOnly && g.RoleID == "" {
			return false
		}
		return true
	})
	return before - len(t.state.grants), nil
}

// Lock is a no-op: InTx already serialises every transaction.
func (t *memTx) Lock(context.Context, LockKey) error { return nil }
