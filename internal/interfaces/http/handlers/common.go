package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/middleware"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// queryInt reads a positive integer query parameter, falling back to def
// and capping at max.
func queryInt(c *gin.Context, name string, def, max int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// chain appends h to a copy of mw.
func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	return append(append(out, mw...), h)
}

// bindJSON decodes the body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeAppError(c, errors.InvalidParam("malformed request body").WithDetail(err.Error()))
		return false
	}
	return true
}

// writeAppError maps err to its status through the error-code table. Server
// errors keep their code but hide the message.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeOK {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)
	body := middleware.ErrorBody{Code: string(code), RequestID: middleware.GetRequestID(c)}

	var ae *errors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		body.Message = ae.Message
		body.Detail = ae.Detail
	} else {
		body.Message = errors.DefaultMessageForCode(code)
		logging.FromContext(c.Request.Context()).Error("Request failed",
			logging.String("path", c.FullPath()), logging.Err(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

//Personal.AI order the ending
