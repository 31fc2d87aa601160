// Package seed loads roles, memberships and grants from YAML and applies
// them through the permission engine.
//
//	roles:
//	  - id: editors
//	    members: [alice, bob]
//	owners:
//	  - {entity_type: folder, entity_id: projects, user: alice, private: false}
//	grants:
//	  - {entity_type: folder, entity_id: projects, role: editors, permissions: read|update}
//	  - {entity_type: folder, user: carol, permissions: login_read}
//	bans:
//	  - {entity_type: folder, user: mallory}
//
// Permissions accept flag names, composites and decimal values.
package seed
