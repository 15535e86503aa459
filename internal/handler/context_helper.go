package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-programs-api/internal/middleware"
	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
	"github.com/noah-isme/academic-programs-api/pkg/response"
)

// actorFromContext returns the authenticated caller, writing a 401 when absent.
func actorFromContext(c *gin.Context) (models.AuthContext, bool) {
	actor, ok := middleware.Actor(c)
	if !ok || !actor.Valid() {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.AuthContext{}, false
	}
	return actor, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
