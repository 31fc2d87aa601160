package acl

import "errors"

// Error kinds. Every error returned by the engine wraps one of them.
var (
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("acl.invalid_argument")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("acl.not_found")

	// ErrRolesUnsupported is returned by role operations when the store does
	// not implement RoleStore.
	ErrRolesUnsupported = errors.New("acl.roles_unsupported")

	// ErrForbidden is reserved for callers enforcing access above the engine.
	// The engine itself never returns it.
	ErrForbidden = errors.New("acl.forbidden")
)

// Error details, joined with a kind.
var (
	ErrEmptyPermission  = errors.New("acl.empty_permission")
	ErrSubjectRequired  = errors.New("acl.subject_required")
	ErrAmbiguousSubject = errors.New("acl.ambiguous_subject")
	ErrOwnerPermission  = errors.New("acl.owner_permission")
	ErrRoleNotFound     = errors.New("acl.role_not_found")
	ErrOwnerNotFound    = errors.New("acl.owner_not_found")
	ErrHierarchyTooDeep = errors.New("acl.hierarchy_too_deep")
	ErrDuplicateSlot    = errors.New("acl.duplicate_slot")
	ErrGrantNotFound    = errors.New("acl.grant_not_found")
	ErrGlobalEntity     = errors.New("acl.global_entity")
	ErrRoleRequired     = errors.New("acl.role_required")
	ErrMemberNotFound   = errors.New("acl.member_not_found")
)

func invalid(detail error) error {
	return errors.Join(ErrInvalidArgument, detail)
}

func notFound(detail error) error {
	return errors.Join(ErrNotFound, detail)
}
