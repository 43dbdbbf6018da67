// Package access описывает правила доступа как чистые функции над Principal.
// Роль вычисляется HTTP-слоем из профиля; правила никогда не ходят в БД.
package access

import "tasktrack/internal/models"

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return "user"
	}
}

// Principal — аутентифицированный субъект запроса.
type Principal struct {
	UserID string
	Role   Role
}

// RoleOf выводит роль из флагов профиля; для nil это обычный пользователь.
func RoleOf(p *models.Profile) Role {
	switch {
	case p == nil:
		return RoleUser
	case p.IsSuperAdmin:
		return RoleSuperAdmin
	case p.IsAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// CanAccess: строка принадлежит субъекту.
func CanAccess(p Principal, ownerID string) bool {
	return p.UserID != "" && p.UserID == ownerID
}

// CanAdminister разрешает доступ к журналу аудита и корзине.
func CanAdminister(p Principal) bool {
	return p.UserID != "" && p.Role >= RoleAdmin
}

// CanSetAdmin — менять флаг is_admin может только супер-админ,
// и не у самого супер-админа.
func CanSetAdmin(p Principal, target *models.Profile) bool {
	if target == nil || p.Role != RoleSuperAdmin {
		return false
	}
	return !target.IsSuperAdmin && target.UserID != p.UserID
}
