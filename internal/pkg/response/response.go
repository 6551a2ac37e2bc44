// Package response renders the JSON envelope every API endpoint shares.
// Failures keep HTTP 200 and carry a service error code in the body;
// clients switch on the code, not the status.
package response

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// apiError satisfies the coded-error shape proxyutil folds into the
// failure envelope.
type apiError struct {
	code    uint32
	message string
}

func (e *apiError) Error() string { return e.message }
func (e *apiError) Code() uint32  { return e.code }

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, &apiError{code: uint32(code), message: message})
}

func Errorf(c *gin.Context, code int, format string, args ...interface{}) {
	Error(c, code, fmt.Sprintf(format, args...))
}
