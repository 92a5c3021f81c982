package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码，每种账本错误类型对应一个
const (
	CodeInvalidAmount              = 1001
	CodeAccountNotFound            = 1002
	CodeAccountInactive            = 1003
	CodeInsufficientBalance        = 1004
	CodeOverdraftExceeded          = 1005
	CodeLimitExceeded              = 1006
	CodeSameAccountTransfer        = 1007
	CodeInsufficientInitialDeposit = 1008
	CodeGenerationExhausted        = 1009
	CodeConcurrentConflict         = 1010
	CodeUnsupportedOperation       = 1011
	CodeInvalidVariant             = 1012
	CodeLedgerMismatch             = 1013
	CodeTransactionNotFound        = 1014
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

// BusinessErrorWithData 业务错误附带结构化字段
func BusinessErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
