package rbac

import "errors"

// Domain errors for engine operations.
var (
	// ErrValidation is returned when an entity fails shape validation.
	ErrValidation = errors.New("rbac.validation")

	// ErrPermissionNotFound is returned when a permission ID does not exist.
	ErrPermissionNotFound = errors.New("rbac.permission_not_found")

	// ErrRoleNotFound is returned when a role ID does not exist.
	ErrRoleNotFound = errors.New("rbac.role_not_found")

	// ErrPolicyNotFound is returned when a policy ID does not exist.
	ErrPolicyNotFound = errors.New("rbac.policy_not_found")

	// ErrSystemRoleImmutable is returned on attempts to change the permission
	// set of, or delete, a built-in system role.
	ErrSystemRoleImmutable = errors.New("rbac.system_role_immutable")

	// ErrDuplicateAssignment is returned when an identical role assignment
	// (same role, organization, and scope) already exists.
	ErrDuplicateAssignment = errors.New("rbac.duplicate_assignment")

	// ErrOrganizationMismatch is returned when assigning a role outside its
	// owning organization. System roles are exempt.
	ErrOrganizationMismatch = errors.New("rbac.organization_mismatch")

	// ErrInvalidOperator is returned when a condition declares an operator
	// outside the supported set.
	ErrInvalidOperator = errors.New("rbac.invalid_operator")

	// ErrInvalidEffect is returned when a policy rule effect is neither
	// allow nor deny.
	ErrInvalidEffect = errors.New("rbac.invalid_effect")
)
