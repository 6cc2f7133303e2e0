package rbac

import (
	"reflect"
	"strconv"
	"strings"
)

const (
	userFieldPrefix     = "user."
	requestFieldPrefix  = "request."
	resourceFieldPrefix = "resource."
	resourceIDField     = "resourceId"
)

// evalConditions evaluates every condition against the caller context,
// returning the per-condition trace and whether all passed. Conditions are
// ANDed; a single failure means the permission or rule does not apply.
func evalConditions(conds []Condition, access AccessContext, resourceID string) ([]ConditionResult, bool) {
	results := make([]ConditionResult, 0, len(conds))
	passed := true

	for _, cond := range conds {
		actual := resolveField(cond, access, resourceID)
		ok := evalOperator(cond.Operator, actual, cond.Value)
		results = append(results, ConditionResult{
			Field:    fieldPath(cond),
			Operator: cond.Operator,
			Expected: cond.Value,
			Actual:   actual,
			Passed:   ok,
		})
		if !ok {
			passed = false
		}
	}

	return results, passed
}

func fieldPath(cond Condition) string {
	if cond.ContextField != "" {
		return cond.ContextField
	}
	return cond.Field
}

// resolveField pulls the attribute the condition compares against.
// Paths starting with "user." read the caller's attribute bag, "request."
// reads request metadata, everything else is resource-scoped: the literal
// "resourceId" resolves to the checked resource's ID, and "resource."
// prefixes are stripped before looking up the resource attribute bag.
func resolveField(cond Condition, access AccessContext, resourceID string) any {
	path := fieldPath(cond)

	switch {
	case strings.HasPrefix(path, userFieldPrefix):
		if access.UserAttributes == nil {
			return nil
		}
		return access.UserAttributes[strings.TrimPrefix(path, userFieldPrefix)]

	case strings.HasPrefix(path, requestFieldPrefix):
		return requestField(access.Request, strings.TrimPrefix(path, requestFieldPrefix))

	case path == resourceIDField:
		return resourceID

	default:
		key := strings.TrimPrefix(path, resourceFieldPrefix)
		if access.ResourceAttributes == nil {
			return nil
		}
		return access.ResourceAttributes[key]
	}
}

func requestField(meta *RequestMeta, key string) any {
	if meta == nil {
		return nil
	}
	switch key {
	case "ip":
		return meta.IP
	case "user_agent", "userAgent":
		return meta.UserAgent
	case "session_id", "sessionId":
		return meta.SessionID
	case "timestamp":
		return meta.Timestamp
	}
	return nil
}

// evalOperator applies one comparison. Unknown operators evaluate to false:
// an unrecognized predicate must deny, never fail open.
func evalOperator(op Operator, actual, expected any) bool {
	switch op {
	case OpEquals:
		return valuesEqual(actual, expected)
	case OpNotEquals:
		return !valuesEqual(actual, expected)
	case OpIn:
		list, ok := asList(expected)
		return ok && containsValue(list, actual)
	case OpNotIn:
		list, ok := asList(expected)
		return ok && !containsValue(list, actual)
	case OpContains:
		return containsMatch(actual, expected)
	case OpStartsWith:
		a, aok := asString(actual)
		b, bok := asString(expected)
		return aok && bok && strings.HasPrefix(a, b)
	case OpGreaterThan:
		a, aok := asNumber(actual)
		b, bok := asNumber(expected)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := asNumber(actual)
		b, bok := asNumber(expected)
		return aok && bok && a < b
	}
	return false
}

// valuesEqual compares numerically when both sides coerce to numbers, so 5
// and 5.0 (or a JSON-decoded float64 against an int literal) compare equal.
// Everything else falls back to deep equality.
func valuesEqual(a, b any) bool {
	if an, aok := asNumber(a); aok {
		if bn, bok := asNumber(b); bok {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}

// asList normalizes the condition value for in/not_in. The configured value
// must be a list; anything else fails the condition (fail-closed).
func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if valuesEqual(item, v) {
			return true
		}
	}
	return false
}

// containsMatch handles both string containment and list membership,
// depending on the shape of the actual value.
func containsMatch(actual, expected any) bool {
	if list, ok := asList(actual); ok {
		return containsValue(list, expected)
	}
	a, aok := asString(actual)
	b, bok := asString(expected)
	return aok && bok && strings.Contains(a, b)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asNumber coerces numeric types and numeric strings to float64, mirroring
// loose Number() coercion for the comparison operators.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
