package handler

import (
	"errors"
	"log"

	"bankledger/internal/model"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// businessCodes 账本错误类型到业务码的映射
var businessCodes = []struct {
	kind error
	code int
}{
	{model.ErrInvalidAmount, response.CodeInvalidAmount},
	{model.ErrAccountNotFound, response.CodeAccountNotFound},
	{model.ErrAccountInactive, response.CodeAccountInactive},
	{model.ErrInsufficientBalance, response.CodeInsufficientBalance},
	{model.ErrOverdraftExceeded, response.CodeOverdraftExceeded},
	{model.ErrLimitExceeded, response.CodeLimitExceeded},
	{model.ErrSameAccountTransfer, response.CodeSameAccountTransfer},
	{model.ErrInsufficientInitialDeposit, response.CodeInsufficientInitialDeposit},
	{model.ErrGenerationExhausted, response.CodeGenerationExhausted},
	{model.ErrConcurrentConflict, response.CodeConcurrentConflict},
	{model.ErrUnsupportedOperation, response.CodeUnsupportedOperation},
	{model.ErrInvalidVariant, response.CodeInvalidVariant},
	{model.ErrLedgerMismatch, response.CodeLedgerMismatch},
	{model.ErrTransactionNotFound, response.CodeTransactionNotFound},
}

// ErrorDetail 业务错误携带的结构化字段，调用方据此组织提示文案
type ErrorDetail struct {
	AccountNumber string `json:"account_number,omitempty"`
	Balance       string `json:"balance,omitempty"`
	Requested     string `json:"requested,omitempty"`
	Limit         string `json:"limit,omitempty"`
}

// codeOf 错误对应的业务码，非业务错误返回 CodeServerError
func codeOf(err error) int {
	for _, bc := range businessCodes {
		if errors.Is(err, bc.kind) {
			return bc.code
		}
	}
	return response.CodeServerError
}

// renderError 按错误类型输出响应
// 业务错误返回类型名和结构化字段；其他错误只记日志，响应里不带底层错误信息
func renderError(c *gin.Context, err error) {
	code := codeOf(err)
	if code == response.CodeServerError {
		log.Printf("[HTTP] %s %s 内部错误: requestID=%s, err=%v",
			c.Request.Method, c.Request.URL.Path, c.GetString(requestIDHeader), err)
		response.ServerError(c, "服务器内部错误")
		return
	}

	var le *model.LedgerError
	if !errors.As(err, &le) {
		response.BusinessError(c, code, err.Error())
		return
	}

	detail := &ErrorDetail{AccountNumber: le.AccountNumber}
	if !le.Balance.IsZero() || !le.Requested.IsZero() {
		detail.Balance = le.Balance.String()
	}
	if !le.Requested.IsZero() {
		detail.Requested = le.Requested.String()
	}
	if !le.Limit.IsZero() {
		detail.Limit = le.Limit.String()
	}
	response.BusinessErrorWithData(c, code, le.Kind.Error(), detail)
}
