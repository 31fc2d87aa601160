package permission

// Mask is a set of capability flags stored as a single integer.
type Mask uint32

// Capability flags. Values are persisted, never renumber them.
const (
	Login Mask = 1 << iota
	Create
	Delete
	Update
	Read
	Owner
	Full
	Editor
	Private

	// None means "no permission" and is never a valid grant or revoke target.
	None Mask = 0
)

// Named composites.
const (
	CreateUpdateDelete     = Create | Update | Delete
	CreateReadUpdateDelete = Create | Read | Update | Delete
	ReadUpdate             = Read | Update
	ReadUpdateDelete       = Read | Update | Delete
	LoginRead              = Login | Read
	OwnerPrivate           = Owner | Private
	All                    = Login | Create | Delete | Update | Read | Owner | Full | Editor | Private
)

// HasFlag reports whether mask shares at least one bit with flag.
func HasFlag(mask, flag Mask) bool {
	return mask&flag != 0
}

// SetFlag returns mask with the bits of flag set.
func SetFlag(mask, flag Mask) Mask {
	return mask | flag
}

// ClearFlag returns mask with the bits of flag cleared.
func ClearFlag(mask, flag Mask) Mask {
	return mask &^ flag
}

// IsOwner reports whether the Owner bit is set.
func IsOwner(mask Mask) bool {
	return mask&Owner != 0
}

// IsPrivate reports whether the Private bit is set.
func IsPrivate(mask Mask) bool {
	return mask&Private != 0
}

// Has reports whether m shares at least one bit with flag.
func (m Mask) Has(flag Mask) bool {
	return HasFlag(m, flag)
}

// HasAll reports whether every bit of flag is set in m.
func (m Mask) HasAll(flag Mask) bool {
	return m&flag == flag
}

// Set returns m with flag set.
func (m Mask) Set(flag Mask) Mask {
	return SetFlag(m, flag)
}

// Clear returns m with flag cleared.
func (m Mask) Clear(flag Mask) Mask {
	return ClearFlag(m, flag)
}

// IsNone reports whether no bit is set.
func (m Mask) IsNone() bool {
	return m == None
}

// Inheritable strips the bits that never travel from a parent to a child.
func (m Mask) Inheritable() Mask {
	return m &^ OwnerPrivate
}
