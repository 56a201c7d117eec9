package rbac

import "slices"

// 权限常量
const (
	PermissionCreateMedicationEvent = "medication_event:create"
	PermissionReadNotification      = "notification:read"
)

// 角色常量
const (
	RolePatient  = "patient"
	RoleGuardian = "guardian"
	RoleAdmin    = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RolePatient: {
		PermissionCreateMedicationEvent,
	},
	RoleGuardian: {
		PermissionReadNotification,
	},
	RoleAdmin: {
		PermissionCreateMedicationEvent,
		PermissionReadNotification,
	},
}

// NormalizeRole token 中没有角色时按患者处理（旧版客户端签发的 token 不带 role）
func NormalizeRole(role string) string {
	if role == "" {
		return RolePatient
	}
	return role
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	permissions, ok := rolePermissions[NormalizeRole(role)]
	if !ok {
		return false
	}
	return slices.Contains(permissions, permission)
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
