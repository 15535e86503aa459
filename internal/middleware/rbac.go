package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
	"github.com/noah-isme/academic-programs-api/pkg/response"
)

// RequireRoles admits callers holding one of roles. Administrators always pass.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[actor.Role]; ok || actor.IsAdmin() {
			c.Next()
			return
		}
		response.Error(c, appErrors.ErrForbidden)
	}
}

// RequireHeadOfDepartment admits only department heads. The department match
// itself is checked per item by the service.
func RequireHeadOfDepartment() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if !actor.IsHeadOfDepartment || actor.DepartmentCode == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "head of department role required"))
			return
		}
		c.Next()
	}
}
