package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RolePatient, PermissionCreateMedicationEvent, true},
		{"", PermissionCreateMedicationEvent, true},
		{RoleGuardian, PermissionCreateMedicationEvent, false},
		{RoleGuardian, PermissionReadNotification, true},
		{RoleAdmin, PermissionCreateMedicationEvent, true},
		{"robot", PermissionReadNotification, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.permission, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.permission))
		})
	}
}

func TestCheckPermission(t *testing.T) {
	assert.NoError(t, CheckPermission(RolePatient, PermissionCreateMedicationEvent))

	err := CheckPermission(RoleGuardian, PermissionCreateMedicationEvent)
	var denied *PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, RoleGuardian, denied.Role)
}
