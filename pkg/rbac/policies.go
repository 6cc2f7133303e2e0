package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

type policyStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func newPolicyStore() *policyStore {
	return &policyStore{policies: make(map[string]Policy)}
}

func (s *policyStore) put(p Policy) {
	s.mu.Lock()
	s.policies[p.ID] = p
	s.mu.Unlock()
}

func (s *policyStore) get(id string) (Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	return p, ok
}

// activeByPriority returns the organization's active policies sorted by
// descending priority. Ties keep a stable order by creation time so
// evaluation is deterministic.
func (s *policyStore) activeByPriority(orgID string) []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Policy
	for _, p := range s.policies {
		if p.OrganizationID == orgID && p.Active {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b Policy) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// CreatePolicyParams describes a new organization policy.
type CreatePolicyParams struct {
	Name     string
	Rules    []PolicyRule
	Priority int
	Active   bool
}

// CreatePolicy validates and stores an organization policy. Rule effects and
// condition operators are checked up front so evaluation never meets an
// unknown verb.
func (e *Engine) CreatePolicy(ctx context.Context, orgID string, params CreatePolicyParams) (Policy, error) {
	if orgID == "" {
		return Policy{}, fmt.Errorf("%w: organization is required", ErrValidation)
	}
	if len(params.Rules) == 0 {
		return Policy{}, fmt.Errorf("%w: policy needs at least one rule", ErrValidation)
	}
	for i, rule := range params.Rules {
		if rule.Effect != EffectAllow && rule.Effect != EffectDeny {
			return Policy{}, fmt.Errorf("%w: rule %d effect %q", ErrInvalidEffect, i, rule.Effect)
		}
		if len(rule.Resources) == 0 || len(rule.Actions) == 0 {
			return Policy{}, fmt.Errorf("%w: rule %d needs resources and actions", ErrValidation, i)
		}
		if err := validateConditions(rule.Conditions); err != nil {
			return Policy{}, fmt.Errorf("rule %d: %w", i, err)
		}
	}

	now := e.now()
	policy := Policy{
		ID:             e.newID(),
		Name:           params.Name,
		OrganizationID: orgID,
		Rules:          params.Rules,
		Priority:       params.Priority,
		Active:         params.Active,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.policies.put(policy)

	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventPolicyCreated, OrganizationID: orgID, EntityID: policy.ID})
	e.log.InfoContext(ctx, "policy created",
		slog.String("policy_id", policy.ID), slog.String("org_id", orgID), slog.Int("priority", policy.Priority))

	return policy, nil
}

// GetPolicy returns a policy by ID.
func (e *Engine) GetPolicy(ctx context.Context, id string) (Policy, error) {
	policy, ok := e.policies.get(id)
	if !ok {
		return Policy{}, ErrPolicyNotFound
	}
	return policy, nil
}

// evaluatePolicies walks active policies in priority order and returns the
// decision of the first rule that matches, regardless of effect. A
// lower-priority rule never gets a say once any rule has matched; in
// particular this is NOT deny-overrides-allow. Returns matched=false when no
// rule matched at all, along with the trace of conditions evaluated on rules
// that were skipped: those reads make even a no-match outcome depend on the
// caller's attributes, so the caller must not cache it.
func (e *Engine) evaluatePolicies(access AccessContext, resource, action, resourceID string, heldRoles map[string]struct{}) (AccessDecision, []ConditionResult, bool) {
	holdsRole := func(roleID string) bool {
		_, ok := heldRoles[roleID]
		return ok
	}

	var trace []ConditionResult
	for _, policy := range e.policies.activeByPriority(access.OrganizationID) {
		for _, rule := range policy.Rules {
			if !ruleMatches(rule, resource, action, access.UserID, holdsRole) {
				continue
			}

			if len(rule.Conditions) > 0 {
				results, ok := evalConditions(rule.Conditions, access, resourceID)
				trace = append(trace, results...)
				if !ok {
					continue
				}
			}

			allowed := rule.Effect == EffectAllow
			reason := fmt.Sprintf("Access denied by policy rule (policy %s)", policy.ID)
			if allowed {
				reason = fmt.Sprintf("Access granted by policy rule (policy %s)", policy.ID)
			}
			return AccessDecision{
				Allowed:          allowed,
				Reason:           reason,
				ConditionResults: trace,
				// Rule conditions read attributes the cache key does not
				// carry; such decisions are valid for this check only.
				Cacheable: len(trace) == 0,
			}, trace, true
		}
	}

	return AccessDecision{}, trace, false
}

// ruleMatches checks resource/action membership (either may list "*") and,
// when the rule carries principal restrictions, that the caller is one of
// the listed users or holds one of the listed roles in the organization.
func ruleMatches(rule PolicyRule, resource, action, userID string, holdsRole func(string) bool) bool {
	if !matchesList(rule.Resources, resource) || !matchesList(rule.Actions, action) {
		return false
	}

	if len(rule.UserIDs) == 0 && len(rule.RoleIDs) == 0 {
		return true
	}
	if slices.Contains(rule.UserIDs, userID) {
		return true
	}
	for _, roleID := range rule.RoleIDs {
		if holdsRole(roleID) {
			return true
		}
	}
	return false
}

func matchesList(list []string, value string) bool {
	for _, item := range list {
		if item == Wildcard || item == value {
			return true
		}
	}
	return false
}
