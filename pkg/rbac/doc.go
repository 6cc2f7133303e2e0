// Package rbac implements an in-process role-based access control engine.
//
// The engine resolves whether a principal may perform an action on a resource,
// given a catalog of permissions, roles with inheritance, scoped and
// time-limited role assignments, and organization-level override policies.
// Decisions are memoized in a TTL cache and recorded to an append-only audit
// log.
//
// Construct one Engine per process and pass it by reference; there is no
// package-level singleton:
//
//	engine := rbac.New(rbac.WithLogger(log))
//	defer engine.Close()
//
//	perm, _ := engine.CreatePermission(ctx, rbac.CreatePermissionParams{
//		Name:     "content.read",
//		Resource: "content",
//		Action:   "read",
//	})
//	role, _ := engine.CreateRole(ctx, "org1", rbac.CreateRoleParams{
//		Name:        "Viewer",
//		Permissions: []string{perm.ID},
//	})
//	_, _ = engine.AssignRole(ctx, "u1", role.ID, "org1", "admin", rbac.AssignRoleParams{})
//
//	decision := engine.CheckAccess(ctx, rbac.AccessContext{
//		UserID:         "u1",
//		OrganizationID: "org1",
//	}, "content", "read")
//
// # Decision pipeline
//
// CheckAccess consults the decision cache first. On a miss it resolves the
// principal's active role assignments (expired assignments are pruned lazily
// at read time), collects the transitive permission set through role
// inheritance (cycle-safe worklist traversal), and matches permissions
// against the requested resource and action, where "*" on either field
// matches anything. A matching permission with no conditions grants
// immediately; with conditions, all must pass. If no permission grants,
// organization policies are evaluated.
//
// Only attribute-independent decisions are cached. Any decision that
// evaluated a condition depends on caller-supplied attributes the cache key
// does not carry, so it is computed fresh on every check.
//
// # Policy semantics
//
// Policies are evaluated sorted by descending priority, rules in list order,
// and the FIRST matching rule wins regardless of its effect. This is not the
// common "deny overrides allow" pattern: a high-priority allow rule shadows a
// lower-priority deny. Keep this in mind when layering policies.
//
// Evaluation is total and fail-closed: CheckAccess never fails for a
// well-formed context; anything unmatched yields a denial with a reason.
package rbac
