// Package handler holds helpers shared by the resource handlers.
package handler

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/middleware"
	"github.com/lipanganya/doctime-api/pkg/errors"
	"github.com/lipanganya/doctime-api/pkg/httputil"
)

// BindJSON decodes the body into obj. On failure the response is already
// written and false is returned.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		renderBindError(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		renderBindError(c, err)
		return false
	}
	return true
}

func renderBindError(c *gin.Context, err error) {
	var verrs playground.ValidationErrors
	if stderrors.As(err, &verrs) {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		c.Abort()
		return
	}
	httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
}

// ParamUUID parses the named path parameter.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// CurrentUser returns the authenticated caller or writes a 401.
func CurrentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return uuid.Nil, false
	}
	return id, true
}
