package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type roleStore struct {
	mu    sync.RWMutex
	roles map[string]Role
}

func newRoleStore() *roleStore {
	return &roleStore{roles: make(map[string]Role)}
}

func (s *roleStore) get(id string) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	return r, ok
}

func (s *roleStore) put(r Role) {
	s.mu.Lock()
	s.roles[r.ID] = r
	s.mu.Unlock()
}

func (s *roleStore) delete(id string) {
	s.mu.Lock()
	delete(s.roles, id)
	s.mu.Unlock()
}

func (s *roleStore) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[id]
	return ok
}

func (s *roleStore) findSystemByName(name string) (Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.IsSystem && r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

func (s *roleStore) byOrganization(orgID string) []Role {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Role
	for _, r := range s.roles {
		if r.OrganizationID == orgID || r.IsSystem {
			out = append(out, r)
		}
	}
	return out
}

func (s *roleStore) countOwned(orgID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.roles {
		if r.OrganizationID == orgID {
			n++
		}
	}
	return n
}

// stripPermission removes a deleted permission ID from every role.
func (s *roleStore) stripPermission(permID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, role := range s.roles {
		kept := role.Permissions[:0:0]
		for _, pid := range role.Permissions {
			if pid != permID {
				kept = append(kept, pid)
			}
		}
		if len(kept) != len(role.Permissions) {
			role.Permissions = kept
			role.UpdatedAt = now
			s.roles[id] = role
		}
	}
}

// stripParent removes a deleted role ID from every role's parent list.
func (s *roleStore) stripParent(roleID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, role := range s.roles {
		kept := role.Parents[:0:0]
		for _, pid := range role.Parents {
			if pid != roleID {
				kept = append(kept, pid)
			}
		}
		if len(kept) != len(role.Parents) {
			role.Parents = kept
			role.UpdatedAt = now
			s.roles[id] = role
		}
	}
}

// effectivePermissionIDs collects the transitive permission set of the given
// roles, walking parent links with an explicit worklist. The visited set
// guarantees termination even if the stored graph contains a cycle; cycles
// are tolerated at read time, not rejected at write time, because cross-role
// edits after creation could introduce one.
func (s *roleStore) effectivePermissionIDs(roleIDs []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]struct{}, len(roleIDs))
	seen := make(map[string]struct{})
	var permIDs []string

	stack := make([]string, len(roleIDs))
	copy(stack, roleIDs)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, done := visited[id]; done {
			continue
		}
		visited[id] = struct{}{}

		role, ok := s.roles[id]
		if !ok {
			continue
		}
		for _, pid := range role.Permissions {
			if _, dup := seen[pid]; !dup {
				seen[pid] = struct{}{}
				permIDs = append(permIDs, pid)
			}
		}
		stack = append(stack, role.Parents...)
	}

	return permIDs
}

// CreateRoleParams describes a new role. Permissions and Parents reference
// existing entities by ID.
type CreateRoleParams struct {
	Name        string
	Description string
	Permissions []string
	Parents     []string
}

// UpdateRoleParams is a merge patch: nil fields are left unchanged.
type UpdateRoleParams struct {
	Name        *string
	Description *string
	Permissions *[]string
	Parents     *[]string
}

// CreateRole validates and stores a new role owned by the organization.
// Every referenced permission and parent role must exist. System roles can
// never be created through this path; they are reserved for Bootstrap.
func (e *Engine) CreateRole(ctx context.Context, orgID string, params CreateRoleParams) (Role, error) {
	if orgID == "" || params.Name == "" {
		return Role{}, fmt.Errorf("%w: organization and role name are required", ErrValidation)
	}
	if orgID == SystemOrganization {
		return Role{}, fmt.Errorf("%w: system roles are created via bootstrap only", ErrValidation)
	}
	for _, pid := range params.Permissions {
		if !e.permissions.exists(pid) {
			return Role{}, fmt.Errorf("%w: permission %q", ErrPermissionNotFound, pid)
		}
	}
	for _, parent := range params.Parents {
		if !e.roles.exists(parent) {
			return Role{}, fmt.Errorf("%w: parent role %q", ErrRoleNotFound, parent)
		}
	}

	now := e.now()
	role := Role{
		ID:             e.newID(),
		Name:           params.Name,
		Description:    params.Description,
		OrganizationID: orgID,
		Permissions:    params.Permissions,
		Parents:        params.Parents,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.roles.put(role)

	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventRoleCreated, OrganizationID: orgID, EntityID: role.ID})
	e.log.InfoContext(ctx, "role created",
		slog.String("role_id", role.ID), slog.String("org_id", orgID), slog.String("name", role.Name))

	return role, nil
}

// UpdateRole merges the patch into an existing role. Changing the permission
// set or parents of a system role is rejected.
func (e *Engine) UpdateRole(ctx context.Context, id string, patch UpdateRoleParams) (Role, error) {
	role, ok := e.roles.get(id)
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	if role.IsSystem && (patch.Permissions != nil || patch.Parents != nil) {
		return Role{}, ErrSystemRoleImmutable
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return Role{}, fmt.Errorf("%w: role name cannot be empty", ErrValidation)
		}
		role.Name = *patch.Name
	}
	if patch.Description != nil {
		role.Description = *patch.Description
	}
	if patch.Permissions != nil {
		for _, pid := range *patch.Permissions {
			if !e.permissions.exists(pid) {
				return Role{}, fmt.Errorf("%w: permission %q", ErrPermissionNotFound, pid)
			}
		}
		role.Permissions = *patch.Permissions
	}
	if patch.Parents != nil {
		for _, parent := range *patch.Parents {
			if !e.roles.exists(parent) {
				return Role{}, fmt.Errorf("%w: parent role %q", ErrRoleNotFound, parent)
			}
		}
		role.Parents = *patch.Parents
	}
	role.UpdatedAt = e.now()
	e.roles.put(role)

	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventRoleUpdated, OrganizationID: role.OrganizationID, EntityID: role.ID})

	return role, nil
}

// DeleteRole removes a role, all assignments referencing it, and its entry in
// any role's parent list. System roles cannot be deleted.
func (e *Engine) DeleteRole(ctx context.Context, id string) error {
	role, ok := e.roles.get(id)
	if !ok {
		return ErrRoleNotFound
	}
	if role.IsSystem {
		return ErrSystemRoleImmutable
	}

	e.roles.delete(id)
	e.roles.stripParent(id, e.now())
	e.assignments.removeByRole(id)

	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventRoleDeleted, OrganizationID: role.OrganizationID, EntityID: id})
	e.log.InfoContext(ctx, "role deleted", slog.String("role_id", id))

	return nil
}

// GetRole returns a role by ID.
func (e *Engine) GetRole(ctx context.Context, id string) (Role, error) {
	role, ok := e.roles.get(id)
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

// OrganizationRoles returns the organization's roles plus the system
// built-ins, which are assignable everywhere.
func (e *Engine) OrganizationRoles(ctx context.Context, orgID string) []Role {
	return e.roles.byOrganization(orgID)
}
