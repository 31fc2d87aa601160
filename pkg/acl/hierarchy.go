package acl

import (
	"context"
	"sync"

	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// Hierarchy exposes the tree of one entity type. The tree is owned by the
// domain module; the engine only reads it. Nil functions behave as empty.
type Hierarchy struct {
	// Children returns the first-level children of an entity.
	Children func(ctx context.Context, entityID string) ([]string, error)

	// Parent returns the immediate parent of an entity, if any.
	Parent func(ctx context.Context, entityID string) (string, bool, error)

	// RecursiveIDsForUser returns every entity under rootID (or every entity
	// when rootID is empty) on which the user holds mask directly, through a
	// role or by inheritance.
	RecursiveIDsForUser func(ctx context.Context, userID string, mask permission.Mask, rootID string) ([]string, error)
}

// Registry maps entity types to their hierarchies. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[EntityType]Hierarchy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[EntityType]Hierarchy)}
}

// Register sets the hierarchy of an entity type, replacing any previous one.
func (r *Registry) Register(entityType EntityType, h Hierarchy) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[entityType] = h
	return r
}

// Lookup returns the hierarchy of an entity type.
func (r *Registry) Lookup(entityType EntityType) (Hierarchy, bool) {
	if r == nil {
		return Hierarchy{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.types[entityType]
	return h, ok
}

// Children returns the first-level children of entityID.
func (r *Registry) Children(ctx context.Context, entityType EntityType, entityID string) ([]string, error) {
	h, ok := r.Lookup(entityType)
	if !ok || h.Children == nil {
		return nil, nil
	}
	return h.Children(ctx, entityID)
}

// Parent returns the parent of entityID.
func (r *Registry) Parent(ctx context.Context, entityType EntityType, entityID string) (string, bool, error) {
	h, ok := r.Lookup(entityType)
	if !ok || h.Parent == nil {
		return "", false, nil
	}
	parentID, found, err := h.Parent(ctx, entityID)
	if err != nil || !found || parentID == "" {
		return "", false, err
	}
	return parentID, true, nil
}

// RecursiveIDsForUser returns the ids reachable by userID with mask.
func (r *Registry) RecursiveIDsForUser(ctx context.Context, entityType EntityType, userID string, mask permission.Mask, rootID string) ([]string, error) {
	h, ok := r.Lookup(entityType)
	if !ok || h.RecursiveIDsForUser == nil {
		return nil, nil
	}
	return h.RecursiveIDsForUser(ctx, userID, mask, rootID)
}
