package acl_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

const folder acl.EntityType = "folder"

// tree is an in-memory entity hierarchy used by the tests.
type tree struct {
	mu       sync.RWMutex
	parent   map[string]string
	children map[string][]string
	order    []string
	failOn   string
}

// newTree builds a tree from child->parent edges; an empty parent adds a root.
func newTree(edges ...[2]string) *tree {
	t := &tree{parent: map[string]string{}, children: map[string][]string{}}
	for _, e := range edges {
		t.add(e[0], e[1])
	}
	return t
}

func (t *tree) add(id, parentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.order, id) {
		t.order = append(t.order, id)
	}
	if parentID == "" {
		return
	}
	t.parent[id] = parentID
	t.children[parentID] = append(t.children[parentID], id)
}

func (t *tree) move(id, newParent string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.parent[id]; ok {
		t.children[old] = slices.DeleteFunc(t.children[old], func(c string) bool { return c == id })
	}
	t.parent[id] = newParent
	t.children[newParent] = append(t.children[newParent], id)
}

func (t *tree) subtree(root string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if root == "" {
		return slices.Clone(t.order)
	}
	out := []string{root}
	for i := 0; i < len(out); i++ {
		out = append(out, t.children[out[i]]...)
	}
	return out
}

var errTreeUnavailable = errors.New("tree unavailable")

func (t *tree) hierarchy(q acl.Queries, entityType acl.EntityType) acl.Hierarchy {
	return acl.Hierarchy{
		Children: func(_ context.Context, id string) ([]string, error) {
			t.mu.RLock()
			defer t.mu.RUnlock()
			if t.failOn != "" && t.failOn == id {
				return nil, errTreeUnavailable
			}
			return slices.Clone(t.children[id]), nil
		},
		Parent: func(_ context.Context, id string) (string, bool, error) {
			t.mu.RLock()
			defer t.mu.RUnlock()
			p, ok := t.parent[id]
			return p, ok, nil
		},
		RecursiveIDsForUser: func(ctx context.Context, userID string, mask permission.Mask, rootID string) ([]string, error) {
			var out []string
			for _, id := range t.subtree(rootID) {
				ok, err := q.HasPermission(ctx, userID, mask, entityType, id)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, id)
				}
			}
			return out, nil
		},
	}
}

type fixture struct {
	store  *acl.MemoryStore
	tree   *tree
	engine *acl.Engine
}

func newFixture(t *testing.T, tr *tree, opts ...acl.Option) *fixture {
	t.Helper()
	store := acl.NewMemoryStore()
	reg := acl.NewRegistry().Register(folder, tr.hierarchy(store, folder))
	return &fixture{store: store, tree: tr, engine: acl.New(store, reg, opts...)}
}

func (f *fixture) mask(t *testing.T, slot acl.Slot) permission.Mask {
	t.Helper()
	g, ok, err := f.engine.Permission(context.Background(), slot)
	require.NoError(t, err)
	if !ok {
		return permission.None
	}
	return g.Permissions
}

func (f *fixture) exists(t *testing.T, slot acl.Slot) bool {
	t.Helper()
	_, ok, err := f.engine.Permission(context.Background(), slot)
	require.NoError(t, err)
	return ok
}

func (f *fixture) has(t *testing.T, userID string, mask permission.Mask, entityID string) bool {
	t.Helper()
	ok, err := f.engine.HasPermission(context.Background(), userID, mask, folder, entityID)
	require.NoError(t, err)
	return ok
}

func direct(entityID, userID string) acl.Slot {
	return acl.DirectSlot(folder, entityID, acl.User(userID))
}

func inherited(entityID, userID string) acl.Slot {
	return acl.InheritedSlot(folder, entityID, acl.User(userID))
}
