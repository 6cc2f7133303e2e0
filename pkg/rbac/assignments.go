package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type assignmentStore struct {
	mu sync.Mutex
	// byUser keeps insertion order per principal; expired entries are pruned
	// in place whenever the principal's assignments are read.
	byUser map[string][]UserRole
}

func newAssignmentStore() *assignmentStore {
	return &assignmentStore{byUser: make(map[string][]UserRole)}
}

// add stores the assignment unless an identical role+org+scope binding
// already exists for the principal.
func (s *assignmentStore) add(ur UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byUser[ur.UserID] {
		if existing.RoleID == ur.RoleID &&
			existing.OrganizationID == ur.OrganizationID &&
			existing.Scope.equal(ur.Scope) {
			return ErrDuplicateAssignment
		}
	}
	s.byUser[ur.UserID] = append(s.byUser[ur.UserID], ur)
	return nil
}

// remove deletes the first assignment matching user+role+org.
func (s *assignmentStore) remove(userID, roleID, orgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	for i, ur := range list {
		if ur.RoleID == roleID && ur.OrganizationID == orgID {
			s.byUser[userID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// removeByRole deletes every assignment of the given role, across all users.
// Used when the role itself is deleted.
func (s *assignmentStore) removeByRole(roleID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []string
	for userID, list := range s.byUser {
		kept := list[:0:0]
		for _, ur := range list {
			if ur.RoleID != roleID {
				kept = append(kept, ur)
			}
		}
		if len(kept) != len(list) {
			s.byUser[userID] = kept
			affected = append(affected, userID)
		}
	}
	return affected
}

// activeForUser returns the principal's non-expired assignments, optionally
// narrowed to one organization. Expiry is enforced lazily: expired entries
// are dropped from storage as a side effect of the read, there is no
// background sweep.
func (s *assignmentStore) activeForUser(userID, orgID string, now time.Time) []UserRole {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	kept := list[:0:0]
	var out []UserRole
	for _, ur := range list {
		if ur.Expired(now) {
			continue
		}
		kept = append(kept, ur)
		if orgID == "" || ur.OrganizationID == orgID {
			out = append(out, ur)
		}
	}

	if len(kept) != len(list) {
		if len(kept) == 0 {
			delete(s.byUser, userID)
		} else {
			s.byUser[userID] = kept
		}
	}
	return out
}

// principalsWithRole counts distinct users holding at least one non-expired
// role in the organization.
func (s *assignmentStore) principalsWithRole(orgID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, list := range s.byUser {
		for _, ur := range list {
			if ur.OrganizationID == orgID && !ur.Expired(now) {
				n++
				break
			}
		}
	}
	return n
}

// AssignRoleParams carries the optional narrowing of a role assignment.
type AssignRoleParams struct {
	Scope     *ResourceScope
	ExpiresAt *time.Time
}

// AssignRole binds a principal to a role within an organization. The role
// must exist and belong to that organization (system roles are assignable
// anywhere). An identical role+org+scope binding is rejected as a duplicate.
func (e *Engine) AssignRole(ctx context.Context, userID, roleID, orgID, assignedBy string, params AssignRoleParams) (UserRole, error) {
	if userID == "" || orgID == "" {
		return UserRole{}, fmt.Errorf("%w: user and organization are required", ErrValidation)
	}

	role, ok := e.roles.get(roleID)
	if !ok {
		return UserRole{}, fmt.Errorf("%w: %q", ErrRoleNotFound, roleID)
	}
	if !role.IsSystem && role.OrganizationID != orgID {
		return UserRole{}, fmt.Errorf("%w: role %q belongs to organization %q", ErrOrganizationMismatch, roleID, role.OrganizationID)
	}

	ur := UserRole{
		ID:             e.newID(),
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: orgID,
		Scope:          params.Scope,
		ExpiresAt:      params.ExpiresAt,
		AssignedBy:     assignedBy,
		AssignedAt:     e.now(),
	}
	if err := e.assignments.add(ur); err != nil {
		return UserRole{}, err
	}

	// Synchronous per-user invalidation: the next CheckAccess for this
	// principal re-evaluates, so the new grant is visible immediately.
	e.invalidateUser(ctx, userID)
	e.emit(ctx, Event{Type: EventRoleAssigned, OrganizationID: orgID, EntityID: roleID, UserID: userID})
	e.log.InfoContext(ctx, "role assigned",
		slog.String("user_id", userID), slog.String("role_id", roleID), slog.String("org_id", orgID))

	return ur, nil
}

// RevokeRole removes the principal's binding to the role in the
// organization. Returns false when no matching assignment exists.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleID, orgID string) (bool, error) {
	if !e.assignments.remove(userID, roleID, orgID) {
		return false, nil
	}

	e.invalidateUser(ctx, userID)
	e.emit(ctx, Event{Type: EventRoleRevoked, OrganizationID: orgID, EntityID: roleID, UserID: userID})
	e.log.InfoContext(ctx, "role revoked",
		slog.String("user_id", userID), slog.String("role_id", roleID), slog.String("org_id", orgID))

	return true, nil
}

// UserRoles returns the principal's currently active assignments. Pass an
// empty orgID for all organizations. Expired assignments are removed from
// storage by this call.
func (e *Engine) UserRoles(ctx context.Context, userID, orgID string) []UserRole {
	return e.assignments.activeForUser(userID, orgID, e.now())
}
