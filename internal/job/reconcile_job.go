package job

import (
	"context"
	"errors"
	"log"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/model"
	"bankledger/internal/repository"

	"gorm.io/gorm"
)

// AccountVerifier 对账入口，由 LedgerService 实现
type AccountVerifier interface {
	VerifyAccount(ctx context.Context, accountNumber string) error
}

// ReconcileJob 定期核对账户余额与分录轨迹
// 只报告不修复：账本不一致需要人工介入
type ReconcileJob struct {
	accountRepo *repository.AccountRepository
	verifier    AccountVerifier
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewReconcileJob(db *gorm.DB, verifier AccountVerifier, cfg *config.PeriodicJob) *ReconcileJob {
	return &ReconcileJob{
		accountRepo: repository.NewAccountRepository(db),
		verifier:    verifier,
		stopCh:      make(chan struct{}),
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	log.Println("[ReconcileJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// RunOnce 核对全部账户（含已销户），返回不一致的账号
func (j *ReconcileJob) RunOnce(ctx context.Context) []string {
	var (
		after      string
		checked    int
		mismatched []string
	)

	for {
		accounts, err := j.accountRepo.ListBatch(ctx, after, "", false, j.batchSize)
		if err != nil {
			log.Printf("[ReconcileJob] 查询账户失败: %v", err)
			break
		}
		if len(accounts) == 0 {
			break
		}

		for _, a := range accounts {
			checked++
			err := j.verifier.VerifyAccount(ctx, a.AccountNumber)
			if err == nil {
				continue
			}
			if errors.Is(err, model.ErrLedgerMismatch) {
				mismatched = append(mismatched, a.AccountNumber)
				log.Printf("[ReconcileJob] 发现账本不一致: %v", err)
				continue
			}
			log.Printf("[ReconcileJob] 对账失败: accountNumber=%s, err=%v", a.AccountNumber, err)
		}

		if ctx.Err() != nil {
			break
		}
		after = accounts[len(accounts)-1].AccountNumber
	}

	log.Printf("[ReconcileJob] 本轮核对 %d 个账户，不一致 %d 个", checked, len(mismatched))
	return mismatched
}
