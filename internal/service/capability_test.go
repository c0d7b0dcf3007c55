package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/quote-desk-api/internal/models"
)

func TestRoleCapabilitiesDefaults(t *testing.T) {
	caps := NewRoleCapabilities()

	assert.True(t, caps.CanEdit(&models.JWTClaims{Role: models.RoleEditor}, "q-1"))
	assert.True(t, caps.CanEdit(&models.JWTClaims{Role: models.RoleSuperAdmin}, "q-1"))
	assert.False(t, caps.CanEdit(&models.JWTClaims{Role: models.RoleViewer}, "q-1"))
	assert.False(t, caps.CanEdit(nil, "q-1"))
	assert.Equal(t, []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleEditor}, caps.EditorRoles())
}

func TestRoleCapabilitiesCustomRoles(t *testing.T) {
	caps := NewRoleCapabilities(models.RoleAdmin)

	assert.False(t, caps.CanEdit(&models.JWTClaims{Role: models.RoleEditor}, "q-1"))
	assert.True(t, caps.CanEdit(&models.JWTClaims{Role: models.RoleAdmin}, "q-1"))
	assert.Equal(t, []models.UserRole{models.RoleAdmin}, caps.EditorRoles())
}
