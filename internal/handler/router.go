package handler

import (
	"bankledger/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(ledgerService *service.LedgerService) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(ledgerService)

	api := r.Group("/api/v1")
	{
		// 账户
		accounts := api.Group("/accounts")
		{
			accounts.POST("", h.OpenAccount)
			accounts.GET("/:number", h.GetAccount)
			accounts.DELETE("/:number", h.CloseAccount)
			accounts.POST("/:number/deposit", h.Deposit)
			accounts.POST("/:number/withdraw", h.Withdraw)
			accounts.GET("/:number/history", h.GetHistory)
		}

		// 转账
		api.POST("/transfers", h.Transfer)

		// 流水
		api.GET("/transactions/:id", h.GetTransaction)

		// 客户维度
		owners := api.Group("/owners")
		{
			owners.GET("/:owner_id/accounts", h.ListAccounts)
			owners.GET("/:owner_id/balance", h.TotalBalance)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
