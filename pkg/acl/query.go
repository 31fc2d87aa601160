package acl

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// Checker answers single access checks.
type Checker interface {
	HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType EntityType, entityID string) (bool, error)
}

var _ Checker = (*Engine)(nil)

// HasPermission reports whether the user holds any bit of mask on exactly
// (entityType, entityID), directly, by inheritance or through an unbanned
// role membership. Banned rows never match. Reads run outside any
// transaction and may race concurrent writes.
func (e *Engine) HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType EntityType, entityID string) (bool, error) {
	if userID == "" || mask.IsNone() {
		return false, nil
	}
	return e.store.HasPermission(ctx, userID, mask, entityType, entityID)
}

// CheckMany runs HasPermission for every user id and returns the results in
// input order.
func (e *Engine) CheckMany(ctx context.Context, userIDs []string, mask permission.Mask, entityType EntityType, entityID string) ([]CheckResult, error) {
	return CheckMany(ctx, e, e.checkConcurrency, userIDs, mask, entityType, entityID)
}

// CheckMany runs c.HasPermission for every user id with at most limit checks
// in flight and returns the results in input order.
func CheckMany(ctx context.Context, c Checker, limit int, userIDs []string, mask permission.Mask, entityType EntityType, entityID string) ([]CheckResult, error) {
	results := make([]CheckResult, len(userIDs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range userIDs {
		g.Go(func() error {
			ok, err := c.HasPermission(ctx, id, mask, entityType, entityID)
			if err != nil {
				return err
			}
			results[i] = CheckResult{ID: id, Value: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RecursiveIDsForUser returns the entity ids under rootID (or all of them when
// rootID is Global) on which the user holds mask, as reported by the
// registered hierarchy.
func (e *Engine) RecursiveIDsForUser(ctx context.Context, userID string, entityType EntityType, mask permission.Mask, rootID string) ([]string, error) {
	return e.hierarchy.RecursiveIDsForUser(ctx, entityType, userID, mask, rootID)
}

// FilterIDs keeps the ids on which the user holds mask, preserving order.
func (e *Engine) FilterIDs(ctx context.Context, ids []string, userID string, entityType EntityType, mask permission.Mask) ([]string, error) {
	return Filter(ctx, e, ids, func(id string) string { return id }, userID, entityType, mask)
}

// Filter keeps the items whose id is reachable by the user with mask,
// preserving input order.
func Filter[T any](ctx context.Context, e *Engine, items []T, id func(T) string, userID string, entityType EntityType, mask permission.Mask) ([]T, error) {
	allowed, err := e.RecursiveIDsForUser(ctx, userID, entityType, mask, Global)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := set[id(item)]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}
