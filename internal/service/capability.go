package service

import "github.com/noah-isme/quote-desk-api/internal/models"

// CapabilityChecker decides whether an actor may moderate a quote.
type CapabilityChecker interface {
	CanEdit(actor *models.JWTClaims, quoteID string) bool
}

// RoleCapabilities grants edit rights by role. It does not look at the quote.
type RoleCapabilities struct {
	editors map[models.UserRole]bool
}

// NewRoleCapabilities allows the given roles to edit; with no roles it uses
// SUPERADMIN, ADMIN and EDITOR.
func NewRoleCapabilities(roles ...models.UserRole) *RoleCapabilities {
	if len(roles) == 0 {
		roles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleEditor}
	}
	editors := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		editors[r] = true
	}
	return &RoleCapabilities{editors: editors}
}

// CanEdit implements CapabilityChecker.
func (c *RoleCapabilities) CanEdit(actor *models.JWTClaims, _ string) bool {
	if c == nil || actor == nil {
		return false
	}
	return c.editors[actor.Role]
}

// EditorRoles returns the roles allowed to edit, for route guards.
func (c *RoleCapabilities) EditorRoles() []models.UserRole {
	out := make([]models.UserRole, 0, len(c.editors))
	for _, r := range []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleEditor, models.RoleViewer} {
		if c.editors[r] {
			out = append(out, r)
		}
	}
	return out
}
