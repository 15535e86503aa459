package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the payload of access tokens issued by the identity provider.
type JWTClaims struct {
	UserID             string   `json:"user_id"`
	Role               UserRole `json:"role"`
	Email              string   `json:"email"`
	FullName           string   `json:"full_name"`
	DepartmentCode     string   `json:"department_code,omitempty"`
	IsHeadOfDepartment bool     `json:"is_hod,omitempty"`
	jwt.RegisteredClaims
}

// AuthContext identifies the already-authenticated caller of a core operation.
// It is passed by value so that no operation can run without an actor.
type AuthContext struct {
	ActorID            string   `json:"actor_id"`
	Role               UserRole `json:"role"`
	DepartmentCode     string   `json:"department_code"`
	IsHeadOfDepartment bool     `json:"is_head_of_department"`
}

// AuthContextFromClaims converts verified token claims into an AuthContext.
func AuthContextFromClaims(claims *JWTClaims) AuthContext {
	return AuthContext{
		ActorID:            claims.UserID,
		Role:               claims.Role,
		DepartmentCode:     NormalizeCode(claims.DepartmentCode),
		IsHeadOfDepartment: claims.IsHeadOfDepartment,
	}
}

// Valid reports whether the context names an actor.
func (a AuthContext) Valid() bool {
	return strings.TrimSpace(a.ActorID) != "" && a.Role != ""
}

// IsAdmin reports whether the actor holds an administrative role.
func (a AuthContext) IsAdmin() bool {
	return a.Role == RoleSuperAdmin || a.Role == RoleAdmin
}

// InDepartment reports whether the actor belongs to the given department.
func (a AuthContext) InDepartment(code string) bool {
	return a.DepartmentCode != "" && a.DepartmentCode == NormalizeCode(code)
}

// HeadOf reports whether the actor is head of the given department.
func (a AuthContext) HeadOf(code string) bool {
	return a.IsHeadOfDepartment && a.InDepartment(code)
}
