package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/handler"
	"bankledger/internal/infrastructure/cache"
	"bankledger/internal/infrastructure/database"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/infrastructure/mq"
	"bankledger/internal/job"
	"bankledger/internal/service"
	"bankledger/pkg/idgen"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg := config.LoadConfig(*configPath)
	policies, err := cfg.Ledger.Policies()
	if err != nil {
		log.Fatalf("账户规则配置错误: %v", err)
	}

	// 初始化 ID 生成器
	refs, err := idgen.NewReferences(cfg.Server.WorkerID)
	if err != nil {
		log.Fatalf("初始化 ID 生成器失败: %v", err)
	}
	seed := time.Now().UnixNano() ^ cfg.Server.WorkerID<<32
	ids := service.Generators{
		AccountNumbers: idgen.NewAccountNumberGenerator(seed),
		TransactionIDs: idgen.NewTransactionIDGenerator(seed + 1),
		References:     refs,
	}

	// 初始化数据库
	db := database.InitDatabase(&cfg.Database)

	// 初始化账户锁
	var locker lock.Locker
	switch cfg.Lock.Driver {
	case "local":
		locker = lock.NewLocalLocker()
		log.Println("使用进程内账户锁（仅限单实例部署）")
	default:
		redisClient := cache.InitRedis(&cfg.Redis)
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryInterval, cfg.Lock.MaxRetries)
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化消息投递
	publisher, err := mq.NewPublisher(ctx, &cfg.Broker)
	if err != nil {
		log.Fatalf("初始化消息投递失败: %v", err)
	}
	defer publisher.Close()

	ledgerService := service.NewLedgerService(db, locker, policies, service.OptionsFromConfig(cfg), ids)

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, &cfg.Jobs.Outbox)
	go outboxSender.Start(ctx)

	if cfg.Jobs.Interest.Enabled {
		interestJob := job.NewInterestJob(db, ledgerService, locker, &cfg.Jobs.Interest)
		go interestJob.Start(ctx)
	}

	if cfg.Jobs.Reconcile.Enabled {
		reconcileJob := job.NewReconcileJob(db, ledgerService, &cfg.Jobs.Reconcile)
		go reconcileJob.Start(ctx)
	}

	// 设置路由
	router := handler.SetupRouter(ledgerService)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 先停止接收请求，已提交的变更不受影响
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	// 取消上下文，停止后台任务
	cancel()

	log.Println("服务已关闭")
}
