package middleware

import (
	stderrors "errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	"github.com/lipanganya/doctime-api/pkg/httputil"
	"github.com/lipanganya/doctime-api/pkg/validator"
)

// RegisterValidators installs the domain binding tags on gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*playground.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return validator.Register(v)
}

// Validation renders bind errors left by handlers as a 400 with per-field
// messages.
func Validation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		for _, e := range c.Errors.ByType(gin.ErrorTypeBind) {
			var verrs playground.ValidationErrors
			if stderrors.As(e.Err, &verrs) {
				httputil.RespondWithValidationErrors(c, validator.Message(verrs), validator.Fields(verrs))
				return
			}
		}
	}
}
