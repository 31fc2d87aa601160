// Package permission defines the capability bitmask shared by the access
// control packages.
//
// A Mask is a plain value: combining masks is a bitwise OR, revoking is an
// AND-NOT, and checking is an overlap test. The numeric values of the flags
// are stored in the database and must stay stable.
//
//	m := permission.Read | permission.Update
//	m.Has(permission.Update)            // true
//	m = m.Clear(permission.Update)      // read
//	permission.Parse("read|update")     // 24, nil
//
// Owner and Private are special: Owner marks the single user owning an
// entity and Private, set on the owner's row, stops inheritance at that
// entity. Neither bit is ever inherited by children (see Mask.Inheritable).
package permission
