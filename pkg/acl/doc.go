// Package acl decides whether a user holds a capability on an entity and
// propagates permission changes through entity trees.
//
// Permissions are rows (Grant) holding a permission.Mask for one subject, a
// user or a role, on one entity. Each subject has at most one direct row
// (explicitly granted) and one inherited row (computed from the ancestors)
// per entity. Granting ORs bits into the direct row, revoking clears them,
// and after either operation the engine recomputes the entity's inherited
// row from its parent and overwrites the inherited rows of the whole subtree.
//
// Key concepts:
//
//   - Entity tree: owned by the domain, exposed to the engine through a
//     Hierarchy (children, parent, recursive reachability) per EntityType.
//   - Global grants: an empty entity id means "the entity type as a whole".
//   - Owner: the single user holding the Owner bit directly on an entity.
//   - Private: the owner may flag an entity private; a private entity stops
//     propagation into its subtree and rejects inherited role grants.
//   - Ban: a banned row is ignored by access checks but never deleted by revoke.
//
// Every mutating call runs inside one Store transaction, cascades included,
// and either applies completely or not at all.
//
// Basic usage:
//
//	store := acl.NewMemoryStore()
//	tree := acl.NewRegistry().Register("folder", acl.Hierarchy{
//	    Children: folders.ChildIDs,
//	    Parent:   folders.ParentID,
//	})
//	engine := acl.New(store, tree, acl.WithLogger(log))
//
//	if err := engine.GrantToUser(ctx, permission.Update, "folder", "f1", "u1"); err != nil {
//	    // acl.ErrInvalidArgument, acl.ErrNotFound or a store error
//	}
//
//	ok, err := engine.HasPermission(ctx, "u1", permission.Update, "folder", "f1-child")
package acl
