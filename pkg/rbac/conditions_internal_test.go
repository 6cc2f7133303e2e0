package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvalOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		op       Operator
		actual   any
		expected any
		want     bool
	}{
		{"equals strings", OpEquals, "a", "a", true},
		{"equals mismatch", OpEquals, "a", "b", false},
		{"equals numeric coercion", OpEquals, float64(5), 5, true},
		{"equals numeric string", OpEquals, "5", 5, true},
		{"not_equals", OpNotEquals, "a", "b", true},
		{"not_equals same", OpNotEquals, 3, 3.0, false},
		{"in member", OpIn, "finance", []string{"finance", "audit"}, true},
		{"in non-member", OpIn, "sales", []string{"finance", "audit"}, false},
		{"in non-list value fails closed", OpIn, "finance", "finance", false},
		{"in any slice", OpIn, 2, []any{1, 2, 3}, true},
		{"not_in non-member", OpNotIn, "sales", []string{"finance"}, true},
		{"not_in member", OpNotIn, "finance", []string{"finance"}, false},
		{"not_in non-list value fails closed", OpNotIn, "sales", "finance", false},
		{"contains substring", OpContains, "hello world", "world", true},
		{"contains missing substring", OpContains, "hello", "world", false},
		{"contains list membership", OpContains, []any{"a", "b"}, "b", true},
		{"starts_with", OpStartsWith, "10.1.2.3", "10.", true},
		{"starts_with mismatch", OpStartsWith, "203.0.113.9", "10.", false},
		{"starts_with non-string", OpStartsWith, 10, "10", false},
		{"greater_than", OpGreaterThan, 10, 5, true},
		{"greater_than equal", OpGreaterThan, 5, 5, false},
		{"greater_than string coercion", OpGreaterThan, "10", "5", true},
		{"less_than", OpLessThan, 100, 500, true},
		{"less_than over", OpLessThan, 600, 500, false},
		{"less_than non-numeric", OpLessThan, "abc", 500, false},
		{"unknown operator fails closed", Operator("matches"), "a", "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalOperator(tt.op, tt.actual, tt.expected))
		})
	}
}

func TestResolveField(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	access := AccessContext{
		UserID:             "u1",
		OrganizationID:     "org1",
		UserAttributes:     map[string]any{"department": "finance"},
		ResourceAttributes: map[string]any{"amount": 600, "owner": "u2"},
		Request:            &RequestMeta{IP: "10.0.0.1", UserAgent: "curl", SessionID: "s1", Timestamp: now},
	}

	tests := []struct {
		name string
		cond Condition
		want any
	}{
		{"user attribute", Condition{Field: "user.department"}, "finance"},
		{"request ip", Condition{Field: "request.ip"}, "10.0.0.1"},
		{"request user agent", Condition{Field: "request.user_agent"}, "curl"},
		{"request session", Condition{Field: "request.session_id"}, "s1"},
		{"request timestamp", Condition{Field: "request.timestamp"}, now},
		{"resource attribute with prefix", Condition{Field: "resource.amount"}, 600},
		{"resource attribute bare", Condition{Field: "owner"}, "u2"},
		{"resource id literal", Condition{Field: "resourceId"}, "r-42"},
		{"context field overrides field", Condition{Field: "resource.amount", ContextField: "user.department"}, "finance"},
		{"unknown user attribute", Condition{Field: "user.missing"}, nil},
		{"unknown request field", Condition{Field: "request.missing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveField(tt.cond, access, "r-42"))
		})
	}
}

func TestResolveField_NilBags(t *testing.T) {
	t.Parallel()

	access := AccessContext{UserID: "u1", OrganizationID: "org1"}

	assert.Nil(t, resolveField(Condition{Field: "user.department"}, access, ""))
	assert.Nil(t, resolveField(Condition{Field: "request.ip"}, access, ""))
	assert.Nil(t, resolveField(Condition{Field: "resource.amount"}, access, ""))
}

func TestEvalConditions_Trace(t *testing.T) {
	t.Parallel()

	access := AccessContext{
		ResourceAttributes: map[string]any{"amount": 100, "status": "pending"},
	}
	conds := []Condition{
		{Field: "resource.amount", Operator: OpLessThan, Value: 500},
		{Field: "resource.status", Operator: OpEquals, Value: "captured"},
	}

	results, passed := evalConditions(conds, access, "")
	assert.False(t, passed)
	assert.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "resource.status", results[1].Field)
}
