package model

import (
	"errors"
	"fmt"
	"strings"

	"bankledger/pkg/money"
)

// ============================================================================
// 错误分类
// ============================================================================
//
// 所有业务失败都是“可预期、带类型”的错误，直接返回给调用方，核心层不自动重试
// （ConcurrentConflict 与编号碰撞除外，服务层会有限次重试）。
//
// 判断类型：errors.Is(err, model.ErrInsufficientBalance)
// 取结构化字段：errors.As(err, &ledgerErr)
//
// ============================================================================

var (
	ErrInvalidAmount              = money.ErrInvalidAmount
	ErrAccountNotFound            = errors.New("account not found")
	ErrAccountInactive            = errors.New("account inactive")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrOverdraftExceeded          = errors.New("overdraft exceeded")
	ErrLimitExceeded              = errors.New("limit exceeded")
	ErrSameAccountTransfer        = errors.New("same account transfer")
	ErrInsufficientInitialDeposit = errors.New("insufficient initial deposit")
	ErrGenerationExhausted        = errors.New("identifier generation exhausted")
	ErrConcurrentConflict         = errors.New("concurrent conflict")
	ErrUnsupportedOperation       = errors.New("unsupported operation")
	ErrInvalidVariant             = errors.New("invalid account variant")
	ErrLedgerMismatch             = errors.New("ledger mismatch")
	ErrTransactionNotFound        = errors.New("transaction not found")
)

// LedgerError 带上下文的业务错误，Kind 为上面的哨兵错误之一
type LedgerError struct {
	Kind          error
	AccountNumber string
	Balance       money.Money // 操作前余额
	Requested     money.Money // 请求金额（含手续费时为总扣款）
	Limit         money.Money // 触发的阈值：最低余额 / 透支额度 / 单笔限额
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.AccountNumber != "" {
		fmt.Fprintf(&b, ": account=%s", e.AccountNumber)
	}
	if !e.Requested.IsZero() {
		fmt.Fprintf(&b, " balance=%s requested=%s", e.Balance, e.Requested)
	}
	if !e.Limit.IsZero() {
		fmt.Fprintf(&b, " limit=%s", e.Limit)
	}
	return b.String()
}

// NotFound 账户不存在
func NotFound(accountNumber string) *LedgerError {
	return &LedgerError{Kind: ErrAccountNotFound, AccountNumber: accountNumber}
}

func (e *LedgerError) Unwrap() error {
	return e.Kind
}

func newLedgerError(kind error, account *Account, requested, limit money.Money) *LedgerError {
	return &LedgerError{
		Kind:          kind,
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		Requested:     requested,
		Limit:         limit,
	}
}
