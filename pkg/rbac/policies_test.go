package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authzkit/authzkit/pkg/rbac"
)

func TestCreatePolicy_Validation(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{})
	assert.True(t, errors.Is(err, rbac.ErrValidation), "a policy needs rules")

	_, err = engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules: []rbac.PolicyRule{{Effect: "maybe", Resources: []string{"*"}, Actions: []string{"*"}}},
	})
	assert.True(t, errors.Is(err, rbac.ErrInvalidEffect))

	_, err = engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules: []rbac.PolicyRule{{Effect: rbac.EffectAllow, Actions: []string{"*"}}},
	})
	assert.True(t, errors.Is(err, rbac.ErrValidation), "rules need resources")

	_, err = engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules: []rbac.PolicyRule{{
			Effect: rbac.EffectAllow, Resources: []string{"*"}, Actions: []string{"*"},
			Conditions: []rbac.Condition{{Field: "resource.x", Operator: "regex", Value: "a"}},
		}},
	})
	assert.True(t, errors.Is(err, rbac.ErrInvalidOperator))

	policy, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectDeny, Resources: []string{"order"}, Actions: []string{"*"}}},
		Priority: 10,
		Active:   true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, policy.ID)

	got, err := engine.GetPolicy(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.ID, got.ID)
}

func TestPolicies_DenyWithoutPermission(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:  []rbac.PolicyRule{{Effect: rbac.EffectAllow, Resources: []string{"docs"}, Actions: []string{"read"}}},
		Active: true,
	})
	require.NoError(t, err)

	// No permission grants, so the policy decides.
	access := rbac.AccessContext{UserID: "u1", OrganizationID: "org1"}
	decision := engine.CheckAccess(ctx, access, "docs", "read")
	assert.True(t, decision.Allowed)

	decision = engine.CheckAccess(ctx, access, "docs", "write")
	assert.False(t, decision.Allowed, "no rule matched, fail closed")
}

func TestPolicies_PriorityFirstMatchWins(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	// Priority 10 denies, priority 5 would allow. The higher priority rule
	// is found first and wins, regardless of effect ordering.
	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectDeny, Resources: []string{"order"}, Actions: []string{"refund"}}},
		Priority: 10,
		Active:   true,
	})
	require.NoError(t, err)

	_, err = engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectAllow, Resources: []string{"order"}, Actions: []string{"refund"}}},
		Priority: 5,
		Active:   true,
	})
	require.NoError(t, err)

	access := rbac.AccessContext{UserID: "u1", OrganizationID: "org1"}
	assert.False(t, engine.CheckAccess(ctx, access, "order", "refund").Allowed)
}

func TestPolicies_HighPriorityAllowShadowsDeny(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectAllow, Resources: []string{"order"}, Actions: []string{"refund"}}},
		Priority: 10,
		Active:   true,
	})
	require.NoError(t, err)

	_, err = engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectDeny, Resources: []string{"*"}, Actions: []string{"*"}}},
		Priority: 1,
		Active:   true,
	})
	require.NoError(t, err)

	// First match wins: this is intentionally NOT deny-overrides-allow.
	access := rbac.AccessContext{UserID: "u1", OrganizationID: "org1"}
	assert.True(t, engine.CheckAccess(ctx, access, "order", "refund").Allowed)
}

func TestPolicies_InactiveIgnored(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectAllow, Resources: []string{"*"}, Actions: []string{"*"}}},
		Priority: 100,
		Active:   false,
	})
	require.NoError(t, err)

	access := rbac.AccessContext{UserID: "u1", OrganizationID: "org1"}
	assert.False(t, engine.CheckAccess(ctx, access, "docs", "read").Allowed)
}

func TestPolicies_PrincipalRestriction(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	perm := mustPermission(t, engine, "content.read", "content", "read")
	role := mustRole(t, engine, "org1", "Viewer", []string{perm.ID})
	mustAssign(t, engine, "holder", role.ID, "org1")

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules: []rbac.PolicyRule{{
			Effect:    rbac.EffectAllow,
			Resources: []string{"billing"},
			Actions:   []string{"view"},
			UserIDs:   []string{"vip"},
			RoleIDs:   []string{role.ID},
		}},
		Active: true,
	})
	require.NoError(t, err)

	check := func(userID string) bool {
		return engine.CheckAccess(ctx, rbac.AccessContext{UserID: userID, OrganizationID: "org1"}, "billing", "view").Allowed
	}

	assert.True(t, check("vip"), "explicitly listed user matches")
	assert.True(t, check("holder"), "holder of a restricted role matches")
	assert.False(t, check("stranger"), "restricted rule skips everyone else")
}

func TestPolicies_RuleConditions(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules: []rbac.PolicyRule{{
			Effect:    rbac.EffectDeny,
			Resources: []string{"order"},
			Actions:   []string{"refund"},
			Conditions: []rbac.Condition{
				{Field: "resource.amount", Operator: rbac.OpGreaterThan, Value: 1000},
			},
		}},
		Active: true,
	})
	require.NoError(t, err)

	big := engine.CheckAccess(ctx, rbac.AccessContext{
		UserID: "u1", OrganizationID: "org1",
		ResourceAttributes: map[string]any{"amount": 5000},
	}, "order", "refund")
	assert.False(t, big.Allowed)
	assert.Contains(t, big.Reason, "denied by policy rule")

	// Below the threshold the rule's conditions fail, the rule is skipped,
	// and with nothing else matching the default denial applies.
	small := engine.CheckAccess(ctx, rbac.AccessContext{
		UserID: "u1", OrganizationID: "org1",
		ResourceAttributes: map[string]any{"amount": 50},
	}, "order", "refund")
	assert.False(t, small.Allowed)
	assert.Equal(t, "No matching permissions found", small.Reason)
}

func TestPolicies_PermissionGrantShortCircuitsPolicies(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	ctx := context.Background()

	perm := mustPermission(t, engine, "content.read", "content", "read")
	role := mustRole(t, engine, "org1", "Viewer", []string{perm.ID})
	mustAssign(t, engine, "u1", role.ID, "org1")

	_, err := engine.CreatePolicy(ctx, "org1", rbac.CreatePolicyParams{
		Rules:    []rbac.PolicyRule{{Effect: rbac.EffectDeny, Resources: []string{"*"}, Actions: []string{"*"}}},
		Priority: 100,
		Active:   true,
	})
	require.NoError(t, err)

	// Policies only run when permission evaluation is inconclusive; an
	// outright permission grant is never overridden.
	access := rbac.AccessContext{UserID: "u1", OrganizationID: "org1"}
	assert.True(t, engine.CheckAccess(ctx, access, "content", "read").Allowed)
	assert.False(t, engine.CheckAccess(ctx, access, "content", "write").Allowed)
}
