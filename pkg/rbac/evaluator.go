package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// Denial reasons. "No matching permissions found" and the conditions-not-met
// variant are diagnostic only; both deny.
const (
	reasonNoPermissions    = "No matching permissions found"
	reasonConditionsNotMet = "Permission found but conditions not met"
)

// CheckAccess resolves whether the principal in the access context may
// perform action on resource. Shorthand for CheckResourceAccess with no
// resource ID.
func (e *Engine) CheckAccess(ctx context.Context, access AccessContext, resource, action string) AccessDecision {
	return e.CheckResourceAccess(ctx, access, resource, action, "")
}

// CheckResourceAccess is the full decision pipeline. It is total and
// fail-closed: a well-formed context always yields a decision, and anything
// unmatched denies. Every check is recorded to the audit log, cache hits
// included.
func (e *Engine) CheckResourceAccess(ctx context.Context, access AccessContext, resource, action, resourceID string) AccessDecision {
	key := cacheKey(access.UserID, access.OrganizationID, resource, action, resourceID)

	if decision, ok := e.cache.Get(ctx, key); ok {
		e.record(ctx, access, resource, action, resourceID, decision)
		return decision
	}

	decision := e.evaluate(access, resource, action, resourceID)

	if decision.Cacheable {
		ttl := decision.CacheTTL
		if ttl <= 0 {
			ttl = e.cfg.CacheTTL
		}
		e.cache.Set(ctx, key, decision, ttl)
	}

	e.record(ctx, access, resource, action, resourceID, decision)
	e.log.DebugContext(ctx, "access evaluated",
		slog.String("user_id", access.UserID),
		slog.String("org_id", access.OrganizationID),
		slog.String("resource", resource),
		slog.String("action", action),
		slog.Bool("allowed", decision.Allowed))

	return decision
}

func (e *Engine) evaluate(access AccessContext, resource, action, resourceID string) AccessDecision {
	// Active assignments only; expired rows are pruned by this read.
	assignments := e.assignments.activeForUser(access.UserID, access.OrganizationID, e.now())

	heldRoles := make(map[string]struct{}, len(assignments))
	roleIDs := make([]string, 0, len(assignments))
	for _, ur := range assignments {
		if _, ok := heldRoles[ur.RoleID]; !ok {
			heldRoles[ur.RoleID] = struct{}{}
			roleIDs = append(roleIDs, ur.RoleID)
		}
	}

	perms := e.permissions.byIDs(e.roles.effectivePermissionIDs(roleIDs))

	var trace []ConditionResult
	conditionsFailed := false

	for _, perm := range perms {
		if !fieldMatches(perm.Resource, resource) || !fieldMatches(perm.Action, action) {
			continue
		}

		if len(perm.Conditions) == 0 {
			return AccessDecision{
				Allowed:            true,
				Reason:             fmt.Sprintf("Access granted by permission: %s", perm.Name),
				MatchedPermissions: []string{perm.ID},
				ConditionResults:   trace,
				Cacheable:          len(trace) == 0,
			}
		}

		results, ok := evalConditions(perm.Conditions, access, resourceID)
		trace = append(trace, results...)
		if ok {
			// The grant hinges on attribute values that are not part of the
			// cache key, so it must not be replayed for a later check with
			// different attributes.
			return AccessDecision{
				Allowed:            true,
				Reason:             fmt.Sprintf("Access granted by permission: %s", perm.Name),
				MatchedPermissions: []string{perm.ID},
				ConditionResults:   trace,
			}
		}
		conditionsFailed = true
	}

	// Permission resolution was inconclusive; give policies a say.
	decision, policyTrace, matched := e.evaluatePolicies(access, resource, action, resourceID, heldRoles)
	if matched {
		decision.ConditionResults = append(trace, decision.ConditionResults...)
		decision.Cacheable = decision.Cacheable && len(trace) == 0
		return decision
	}
	trace = append(trace, policyTrace...)

	reason := reasonNoPermissions
	if conditionsFailed {
		reason = reasonConditionsNotMet
	}
	return AccessDecision{
		Allowed:          false,
		Reason:           reason,
		ConditionResults: trace,
		Cacheable:        len(trace) == 0,
	}
}

// fieldMatches implements the permission matching rule: exact match, or "*"
// on either side. Resource and action each match independently.
func fieldMatches(pattern, value string) bool {
	return pattern == Wildcard || value == Wildcard || pattern == value
}

// record appends the decision to the audit log and publishes it on the event
// channel. Audit failures are logged, never surfaced: a decision must not
// fail because its paper trail did.
func (e *Engine) record(ctx context.Context, access AccessContext, resource, action, resourceID string, decision AccessDecision) {
	entry := AuditEntry{
		ID:             e.newID(),
		OrganizationID: access.OrganizationID,
		UserID:         access.UserID,
		Resource:       resource,
		Action:         action,
		ResourceID:     resourceID,
		Allowed:        decision.Allowed,
		Reason:         decision.Reason,
		Context:        access,
		CreatedAt:      e.now(),
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		e.log.ErrorContext(ctx, "audit append failed",
			slog.String("user_id", access.UserID), slog.Any("error", err))
	}

	e.emit(ctx, Event{
		Type:           EventAccessChecked,
		OrganizationID: access.OrganizationID,
		UserID:         access.UserID,
		Decision:       &decision,
	})
}
