package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/felipemchdev/policyforge-core/model"
	"github.com/gin-gonic/gin"
)

// Recovery middleware recovers from panics and converts them into the
// gateway's uniform error shape
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				slog.Error("panic recovered",
					"error", err,
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, model.GatewayError{
					Error: "Internal server error.",
					Code:  model.CodeInternalError,
				})
			}
		}()

		c.Next()
	}
}
