package rbac

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// bootstrapDoc is the YAML shape consumed by Bootstrap. Roles reference
// permissions and each other by name, scoped to the document.
type bootstrapDoc struct {
	Permissions []bootstrapPermission `yaml:"permissions"`
	Roles       []bootstrapRole       `yaml:"roles"`
}

type bootstrapPermission struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Resource    string               `yaml:"resource"`
	Action      string               `yaml:"action"`
	Conditions  []bootstrapCondition `yaml:"conditions"`
}

type bootstrapCondition struct {
	Field        string `yaml:"field"`
	Operator     string `yaml:"operator"`
	Value        any    `yaml:"value"`
	ContextField string `yaml:"context_field"`
}

type bootstrapRole struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
}

// Bootstrap seeds the built-in permission catalog and system roles from a
// YAML document. This is the only path that creates IsSystem roles; they are
// owned by the system organization and assignable in any organization.
// Re-running with the same document is idempotent: permissions are matched
// by name, roles by name within the system organization.
func (e *Engine) Bootstrap(ctx context.Context, r io.Reader) error {
	var doc bootstrapDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w: bootstrap document: %w", ErrValidation, err)
	}

	permIDs := make(map[string]string, len(doc.Permissions))
	for _, bp := range doc.Permissions {
		if bp.Name == "" || bp.Resource == "" || bp.Action == "" {
			return fmt.Errorf("%w: bootstrap permission needs name, resource, and action", ErrValidation)
		}

		conds := make([]Condition, 0, len(bp.Conditions))
		for _, bc := range bp.Conditions {
			conds = append(conds, Condition{
				Field:        bc.Field,
				Operator:     Operator(bc.Operator),
				Value:        bc.Value,
				ContextField: bc.ContextField,
			})
		}
		if err := validateConditions(conds); err != nil {
			return fmt.Errorf("bootstrap permission %q: %w", bp.Name, err)
		}

		if existing, ok := e.permissions.findByName(bp.Name); ok {
			permIDs[bp.Name] = existing.ID
			continue
		}

		now := e.now()
		perm := Permission{
			ID:          e.newID(),
			Name:        bp.Name,
			Description: bp.Description,
			Resource:    bp.Resource,
			Action:      bp.Action,
			Conditions:  conds,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		e.permissions.put(perm)
		permIDs[bp.Name] = perm.ID
		e.emit(ctx, Event{Type: EventPermissionCreated, EntityID: perm.ID})
	}

	// First pass creates the roles so the second pass can resolve parent
	// references in any declaration order.
	roleIDs := make(map[string]string, len(doc.Roles))
	for _, br := range doc.Roles {
		if br.Name == "" {
			return fmt.Errorf("%w: bootstrap role needs a name", ErrValidation)
		}

		if existing, ok := e.roles.findSystemByName(br.Name); ok {
			roleIDs[br.Name] = existing.ID
			continue
		}

		perms := make([]string, 0, len(br.Permissions))
		for _, name := range br.Permissions {
			id, ok := permIDs[name]
			if !ok {
				if existing, found := e.permissions.findByName(name); found {
					id = existing.ID
				} else {
					return fmt.Errorf("%w: bootstrap role %q references unknown permission %q", ErrPermissionNotFound, br.Name, name)
				}
			}
			perms = append(perms, id)
		}

		now := e.now()
		role := Role{
			ID:             e.newID(),
			Name:           br.Name,
			Description:    br.Description,
			OrganizationID: SystemOrganization,
			Permissions:    perms,
			IsSystem:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		e.roles.put(role)
		roleIDs[br.Name] = role.ID
		e.emit(ctx, Event{Type: EventRoleCreated, OrganizationID: SystemOrganization, EntityID: role.ID})
	}

	for _, br := range doc.Roles {
		if len(br.Inherits) == 0 {
			continue
		}
		parents := make([]string, 0, len(br.Inherits))
		for _, name := range br.Inherits {
			id, ok := roleIDs[name]
			if !ok {
				return fmt.Errorf("%w: bootstrap role %q inherits unknown role %q", ErrRoleNotFound, br.Name, name)
			}
			parents = append(parents, id)
		}

		role, _ := e.roles.get(roleIDs[br.Name])
		role.Parents = parents
		role.UpdatedAt = e.now()
		e.roles.put(role)
	}

	e.invalidateAll(ctx)
	e.log.InfoContext(ctx, "bootstrap applied",
		slog.Int("permissions", len(doc.Permissions)), slog.Int("roles", len(doc.Roles)))

	return nil
}
