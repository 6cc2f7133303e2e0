package rbac

import "time"

const (
	// Wildcard matches any resource or action in permissions and policy rules.
	Wildcard = "*"

	// SystemOrganization owns built-in roles created during bootstrap.
	// System roles are assignable in any organization.
	SystemOrganization = "system"
)

// Operator is a condition comparison operator. The set is closed: unknown
// operators are rejected at permission/policy creation time and evaluate to
// false if one slips in through direct struct construction.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "starts_with"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Valid reports whether the operator is part of the supported set.
func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpStartsWith, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// Condition is a single attribute predicate attached to a permission or a
// policy rule. Field names the attribute to compare: "resource.*" paths and
// the literal "resourceId" resolve against the checked resource, "user.*"
// against the caller's user attributes, and "request.*" against request
// metadata. ContextField, when set, overrides Field as the attribute path.
// All conditions on one permission or rule must pass (logical AND).
type Condition struct {
	Field        string   `json:"field"`
	Operator     Operator `json:"operator"`
	Value        any      `json:"value"`
	ContextField string   `json:"context_field,omitempty"`
}

// Permission is an atomic resource+action capability, optionally gated by
// conditions. Resource and action are fixed once created; name, description,
// and conditions may change.
type Permission struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Resource    string      `json:"resource"`
	Action      string      `json:"action"`
	Conditions  []Condition `json:"conditions,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Role is a named bundle of permission IDs, optionally inheriting from
// parent roles. A role inherits all permissions of its parents transitively.
// System roles have an immutable permission set and cannot be deleted.
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OrganizationID string    `json:"organization_id"`
	Permissions    []string  `json:"permissions"`
	Parents        []string  `json:"parents,omitempty"`
	IsSystem       bool      `json:"is_system"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ScopeType tags the kind of sub-resource a role assignment is narrowed to.
type ScopeType string

const (
	ScopeOrganization ScopeType = "organization"
	ScopeDepartment   ScopeType = "department"
	ScopeTeam         ScopeType = "team"
	ScopeProject      ScopeType = "project"
	ScopeResource     ScopeType = "resource"
)

// ResourceScope narrows where a role assignment applies. It is purely a
// filter, never an ownership relation.
type ResourceScope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id"`
	Name string    `json:"name,omitempty"`
}

func (s *ResourceScope) equal(other *ResourceScope) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Type == other.Type && s.ID == other.ID
}

// UserRole binds a principal to a role within an organization, optionally
// scoped and/or time-limited. Expired assignments are pruned lazily whenever
// the principal's roles are read.
type UserRole struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	RoleID         string         `json:"role_id"`
	OrganizationID string         `json:"organization_id"`
	Scope          *ResourceScope `json:"scope,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	AssignedBy     string         `json:"assigned_by"`
	AssignedAt     time.Time      `json:"assigned_at"`
}

// Expired reports whether the assignment's expiry has passed.
func (ur UserRole) Expired(now time.Time) bool {
	return ur.ExpiresAt != nil && now.After(*ur.ExpiresAt)
}

// RequestMeta carries request-level metadata available to condition
// evaluation under the "request." path.
type RequestMeta struct {
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// AccessContext is the caller-supplied input to a decision, besides the
// resource, action, and optional resource ID.
type AccessContext struct {
	UserID             string         `json:"user_id"`
	OrganizationID     string         `json:"organization_id"`
	UserAttributes     map[string]any `json:"user_attributes,omitempty"`
	ResourceAttributes map[string]any `json:"resource_attributes,omitempty"`
	Request            *RequestMeta   `json:"request,omitempty"`
}

// ConditionResult records the evaluation of one condition for diagnostics.
type ConditionResult struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Expected any      `json:"expected"`
	Actual   any      `json:"actual"`
	Passed   bool     `json:"passed"`
}

// AccessDecision is the outcome of one access check.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`

	// MatchedPermissions lists the IDs of permissions that granted access.
	MatchedPermissions []string `json:"matched_permissions,omitempty"`

	// ConditionResults traces every condition evaluated on the way to the
	// decision, including those of permissions that did not grant.
	ConditionResults []ConditionResult `json:"condition_results,omitempty"`

	// Cacheable and CacheTTL hint how the decision may be memoized.
	// Decisions that evaluated any attribute condition are never cacheable:
	// the cache key carries no attributes, so replaying them for a check
	// with different attributes would be wrong in both directions.
	// A zero CacheTTL means the engine default applies.
	Cacheable bool          `json:"cacheable"`
	CacheTTL  time.Duration `json:"cache_ttl,omitempty"`
}

// Effect is the outcome a policy rule imposes when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// PolicyRule matches requests by resource/action membership and optional
// principal restriction, then imposes its effect if its conditions pass.
type PolicyRule struct {
	Effect     Effect      `json:"effect"`
	Resources  []string    `json:"resources"`
	Actions    []string    `json:"actions"`
	Conditions []Condition `json:"conditions,omitempty"`

	// UserIDs and RoleIDs restrict the rule to explicit principals or to
	// holders of specific roles. Empty means the rule applies to everyone.
	UserIDs []string `json:"user_ids,omitempty"`
	RoleIDs []string `json:"role_ids,omitempty"`
}

// Policy is an organization-level set of prioritized rules that can override
// permission-based outcomes. Policies are evaluated only when permission
// resolution does not produce a grant.
type Policy struct {
	ID             string       `json:"id"`
	Name           string       `json:"name,omitempty"`
	OrganizationID string       `json:"organization_id"`
	Rules          []PolicyRule `json:"rules"`
	Priority       int          `json:"priority"`
	Active         bool         `json:"active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// AuditEntry is an immutable record of one evaluated access check.
type AuditEntry struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	UserID         string        `json:"user_id"`
	Resource       string        `json:"resource"`
	Action         string        `json:"action"`
	ResourceID     string        `json:"resource_id,omitempty"`
	Allowed        bool          `json:"allowed"`
	Reason         string        `json:"reason"`
	Context        AccessContext `json:"context"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Statistics aggregates engine activity for one organization.
type Statistics struct {
	// ActivePrincipals counts distinct users holding at least one role.
	ActivePrincipals int `json:"active_principals"`

	// Roles counts roles owned by the organization.
	Roles int `json:"roles"`

	// Permissions counts permissions in the global catalog.
	Permissions int `json:"permissions"`

	// ChecksLast24h counts audit entries in the trailing 24 hours.
	ChecksLast24h int `json:"checks_last_24h"`

	// DenialRate is the fraction of those checks that were denied.
	DenialRate float64 `json:"denial_rate"`
}
