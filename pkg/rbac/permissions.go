package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type permissionStore struct {
	mu    sync.RWMutex
	perms map[string]Permission
}

func newPermissionStore() *permissionStore {
	return &permissionStore{perms: make(map[string]Permission)}
}

func (s *permissionStore) get(id string) (Permission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.perms[id]
	return p, ok
}

func (s *permissionStore) put(p Permission) {
	s.mu.Lock()
	s.perms[p.ID] = p
	s.mu.Unlock()
}

func (s *permissionStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[id]; !ok {
		return false
	}
	delete(s.perms, id)
	return true
}

func (s *permissionStore) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.perms[id]
	return ok
}

func (s *permissionStore) findByName(name string) (Permission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.perms {
		if p.Name == name {
			return p, true
		}
	}
	return Permission{}, false
}

func (s *permissionStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.perms)
}

// byIDs resolves permission IDs to permissions, skipping dangling references.
func (s *permissionStore) byIDs(ids []string) []Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Permission, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *permissionStore) list(filter PermissionFilter) []Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Permission, 0, len(s.perms))
	for _, p := range s.perms {
		if filter.Resource != "" && p.Resource != filter.Resource {
			continue
		}
		if filter.Action != "" && p.Action != filter.Action {
			continue
		}
		out = append(out, p)
	}
	return out
}

// CreatePermissionParams describes a new permission.
type CreatePermissionParams struct {
	Name        string
	Description string
	Resource    string
	Action      string
	Conditions  []Condition
}

// UpdatePermissionParams is a merge patch: nil fields are left unchanged.
// Resource and action are part of the permission's identity and cannot change.
type UpdatePermissionParams struct {
	Name        *string
	Description *string
	Conditions  *[]Condition
}

// PermissionFilter narrows ListPermissions. Empty fields match everything.
type PermissionFilter struct {
	Resource string
	Action   string
}

func validateConditions(conds []Condition) error {
	for _, c := range conds {
		if !c.Operator.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
		}
		if c.Field == "" && c.ContextField == "" {
			return fmt.Errorf("%w: condition field is required", ErrValidation)
		}
	}
	return nil
}

// CreatePermission validates and stores a new permission. Unknown condition
// operators are rejected here rather than silently failing at evaluation.
func (e *Engine) CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error) {
	if params.Name == "" || params.Resource == "" || params.Action == "" {
		return Permission{}, fmt.Errorf("%w: permission name, resource, and action are required", ErrValidation)
	}
	if err := validateConditions(params.Conditions); err != nil {
		return Permission{}, err
	}

	now := e.now()
	perm := Permission{
		ID:          e.newID(),
		Name:        params.Name,
		Description: params.Description,
		Resource:    params.Resource,
		Action:      params.Action,
		Conditions:  params.Conditions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e.permissions.put(perm)

	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventPermissionCreated, EntityID: perm.ID})
	e.log.InfoContext(ctx, "permission created",
		slog.String("permission_id", perm.ID), slog.String("name", perm.Name))

	return perm, nil
}

// UpdatePermission merges the patch into an existing permission and
// invalidates the decision cache.
func (e *Engine) UpdatePermission(ctx context.Context, id string, patch UpdatePermissionParams) (Permission, error) {
	perm, ok := e.permissions.get(id)
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return Permission{}, fmt.Errorf("%w: permission name cannot be empty", ErrValidation)
		}
		perm.Name = *patch.Name
	}
	if patch.Description != nil {
		perm.Description = *patch.Description
	}
	if patch.Conditions != nil {
		if err := validateConditions(*patch.Conditions); err != nil {
			return Permission{}, err
		}
		perm.Conditions = *patch.Conditions
	}
	perm.UpdatedAt = e.now()
	e.permissions.put(perm)

	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventPermissionUpdated, EntityID: perm.ID})

	return perm, nil
}

// DeletePermission removes a permission and strips its ID from every role.
// Deleting an unknown permission is a no-op returning false.
func (e *Engine) DeletePermission(ctx context.Context, id string) (bool, error) {
	if !e.permissions.delete(id) {
		return false, nil
	}

	e.roles.stripPermission(id, e.now())
	e.invalidateAll(ctx)
	e.emit(ctx, Event{Type: EventPermissionDeleted, EntityID: id})
	e.log.InfoContext(ctx, "permission deleted", slog.String("permission_id", id))

	return true, nil
}

// GetPermission returns a permission by ID.
func (e *Engine) GetPermission(ctx context.Context, id string) (Permission, error) {
	perm, ok := e.permissions.get(id)
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return perm, nil
}

// ListPermissions returns permissions matching the filter.
func (e *Engine) ListPermissions(ctx context.Context, filter PermissionFilter) []Permission {
	return e.permissions.list(filter)
}
