package handler

import (
	"errors"
	"strconv"

	"bankledger/internal/model"
	"bankledger/internal/service"
	"bankledger/pkg/idgen"
	"bankledger/pkg/money"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler HTTP 适配层，只做参数解析和错误码转换，业务全部在 LedgerService
type Handler struct {
	ledgerService *service.LedgerService
}

func NewHandler(ledgerService *service.LedgerService) *Handler {
	return &Handler{ledgerService: ledgerService}
}

// accountNumber 读取并校验路径中的账号
func accountNumber(c *gin.Context) (string, bool) {
	number := c.Param("number")
	if !idgen.IsAccountNumber(number) {
		response.ParamError(c, "账号格式错误")
		return "", false
	}
	return number, true
}

// bindFailed 请求体解析失败：金额格式错误按业务错误返回，其余为参数错误
func bindFailed(c *gin.Context, err error) {
	if errors.Is(err, model.ErrInvalidAmount) {
		renderError(c, err)
		return
	}
	response.ParamError(c, "参数错误: "+err.Error())
}

func ownerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("owner_id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "owner_id 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 账户相关接口
// ============================================================

// OpenAccountRequest 开户请求，金额可以是字符串或数字
type OpenAccountRequest struct {
	OwnerID        int64       `json:"owner_id" binding:"required,gt=0"`
	Variant        string      `json:"variant" binding:"required"`
	InitialDeposit money.Money `json:"initial_deposit"`
}

// OpenAccount 开户
// POST /api/v1/accounts
func (h *Handler) OpenAccount(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	variant, err := model.ParseVariant(req.Variant)
	if err != nil {
		renderError(c, err)
		return
	}

	account, err := h.ledgerService.OpenAccount(c.Request.Context(), req.OwnerID, variant, req.InitialDeposit)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, account)
}

// GetAccount 查询账户
// GET /api/v1/accounts/:number
func (h *Handler) GetAccount(c *gin.Context) {
	number, ok := accountNumber(c)
	if !ok {
		return
	}

	account, err := h.ledgerService.GetAccount(c.Request.Context(), number)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, account)
}

// CloseAccount 销户
// DELETE /api/v1/accounts/:number
func (h *Handler) CloseAccount(c *gin.Context) {
	number, ok := accountNumber(c)
	if !ok {
		return
	}

	account, err := h.ledgerService.CloseAccount(c.Request.Context(), number)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, account)
}

// AmountRequest 存取款请求
type AmountRequest struct {
	Amount money.Money `json:"amount"`
}

// Deposit 存款
// POST /api/v1/accounts/:number/deposit
func (h *Handler) Deposit(c *gin.Context) {
	number, ok := accountNumber(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	balance, err := h.ledgerService.Deposit(c.Request.Context(), number, req.Amount)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_number": number,
		"balance":        balance,
	})
}

// Withdraw 取款
// POST /api/v1/accounts/:number/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	number, ok := accountNumber(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	balance, err := h.ledgerService.Withdraw(c.Request.Context(), number, req.Amount)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_number": number,
		"balance":        balance,
	})
}

// GetHistory 分录查询（最近的在前）
// GET /api/v1/accounts/:number/history?limit=20&before_id=123
func (h *Handler) GetHistory(c *gin.Context) {
	number, ok := accountNumber(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		response.ParamError(c, "limit 参数错误")
		return
	}
	beforeID, err := strconv.ParseInt(c.DefaultQuery("before_id", "0"), 10, 64)
	if err != nil || beforeID < 0 {
		response.ParamError(c, "before_id 参数错误")
		return
	}

	page, err := h.ledgerService.GetHistory(c.Request.Context(), number, service.HistoryQuery{
		Limit:    limit,
		BeforeID: beforeID,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, page)
}

// GetTransaction 按流水号查询分录
// GET /api/v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	id := c.Param("id")
	if !idgen.IsTransactionID(id) {
		response.ParamError(c, "流水号格式错误")
		return
	}

	entry, err := h.ledgerService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, entry)
}

// ============================================================
// 转账接口
// ============================================================

// TransferRequest 转账请求
type TransferRequest struct {
	FromAccount string      `json:"from_account" binding:"required,len=12,numeric"`
	ToAccount   string      `json:"to_account" binding:"required,len=12,numeric"`
	Amount      money.Money `json:"amount"`
	Description string      `json:"description" binding:"max=256"`
}

// Transfer 转账
// POST /api/v1/transfers
//
// 【关键点】
// 1. 原子性：两端余额和两条分录同一事务提交
// 2. 免手续费：活期账户转出不收手续费
// 3. 死锁避免：两端账户按账号顺序加锁
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.ledgerService.Transfer(c.Request.Context(), req.FromAccount, req.ToAccount, req.Amount, req.Description)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 客户维度接口
// ============================================================

// ListAccounts 客户名下账户
// GET /api/v1/owners/:owner_id/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	id, ok := ownerID(c)
	if !ok {
		return
	}

	accounts, err := h.ledgerService.ListAccounts(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner_id": id,
		"list":     accounts,
		"total":    len(accounts),
	})
}

// TotalBalance 客户有效账户余额合计
// GET /api/v1/owners/:owner_id/balance
func (h *Handler) TotalBalance(c *gin.Context) {
	id, ok := ownerID(c)
	if !ok {
		return
	}

	total, err := h.ledgerService.ComputeTotalBalance(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner_id":      id,
		"total_balance": total,
	})
}
