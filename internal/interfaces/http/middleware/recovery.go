package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ErrorBody is the JSON error envelope of every failed API call.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Recovery converts a panic into a 500 with the internal error code and logs the stack.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered",
					logging.String("panic", fmt.Sprint(rec)),
					logging.String(logging.KeyRequestID, GetRequestID(c)),
					logging.String("method", c.Request.Method),
					logging.String("path", c.Request.URL.Path),
					logging.String("stack", string(debug.Stack())))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
					Code:      string(errors.ErrCodeInternal),
					Message:   errors.DefaultMessageForCode(errors.ErrCodeInternal),
					RequestID: GetRequestID(c),
				})
			}
		}()
		c.Next()
	}
}

//Personal.AI order the ending
