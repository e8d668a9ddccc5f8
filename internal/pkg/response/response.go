package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// apiError carries a business code through proxyutil's envelope.
type apiError struct {
	code uint32
	msg  string
}

func (e *apiError) Error() string { return e.msg }

func (e *apiError) Code() uint32 { return e.code }

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes {code, msg} with the given http status.
func Error(c *gin.Context, status int, code int, message string) {
	proxyutil.FailJson(c, status, &apiError{code: uint32(code), msg: message})
}
