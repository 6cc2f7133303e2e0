package rbac

import "time"

// EventType identifies what happened inside the engine.
type EventType string

const (
	EventPermissionCreated EventType = "permission.created"
	EventPermissionUpdated EventType = "permission.updated"
	EventPermissionDeleted EventType = "permission.deleted"

	EventRoleCreated EventType = "role.created"
	EventRoleUpdated EventType = "role.updated"
	EventRoleDeleted EventType = "role.deleted"

	EventRoleAssigned EventType = "role.assigned"
	EventRoleRevoked  EventType = "role.revoked"

	EventPolicyCreated EventType = "policy.created"

	EventAccessChecked EventType = "access.checked"
)

// Event is published on the engine's broadcast channel for every mutation
// and every evaluated access check. External subscribers (durable audit
// sinks, webhook fan-out) consume these without coupling to engine internals.
type Event struct {
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id,omitempty"`

	// EntityID is the permission, role, assignment, or policy the event is
	// about. Empty for access checks.
	EntityID string `json:"entity_id,omitempty"`

	// UserID is the affected principal (assignments, access checks).
	UserID string `json:"user_id,omitempty"`

	// Decision is set for access.checked events.
	Decision *AccessDecision `json:"decision,omitempty"`

	At time.Time `json:"at"`
}
