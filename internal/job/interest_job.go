package job

import (
	"context"
	"errors"
	"log"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
	"bankledger/internal/repository"
	"bankledger/pkg/money"

	"gorm.io/gorm"
)

// InterestAccruer 计息入口，由 LedgerService 实现
// 同一计息期重复调用必须返回 0 且不入账
type InterestAccruer interface {
	AccrueInterestForPeriod(ctx context.Context, accountNumber, period string) (money.Money, error)
}

// interestLockName 计息扫描的互斥锁名，账号是 12 位数字，不会与它冲突
const interestLockName = "job:interest"

// InterestJob 给所有有效储蓄账户计当月利息
//
// 多实例部署时每个实例都会启动该任务：扫描前先抢 interestLockName，
// 抢不到说明其他实例正在扫描，本轮跳过。即使锁过期导致两个实例同时扫描，
// 账户上的计息期标记也保证每个计息期只入账一次。
// 启动时立即扫描一轮，之后按 interval 重复。
type InterestJob struct {
	accountRepo *repository.AccountRepository
	accruer     InterestAccruer
	locker      lock.Locker
	now         func() time.Time
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewInterestJob(db *gorm.DB, accruer InterestAccruer, locker lock.Locker, cfg *config.PeriodicJob) *InterestJob {
	return &InterestJob{
		accountRepo: repository.NewAccountRepository(db),
		accruer:     accruer,
		locker:      locker,
		now:         time.Now,
		stopCh:      make(chan struct{}),
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
	}
}

func (j *InterestJob) Start(ctx context.Context) {
	log.Println("[InterestJob] 计息任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("[InterestJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[InterestJob] 任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *InterestJob) Stop() {
	close(j.stopCh)
}

// RunOnce 为当前计息期扫描一轮，返回本轮计息成功的账户数和利息合计
func (j *InterestJob) RunOnce(ctx context.Context) (int, money.Money) {
	release, err := j.locker.Lock(ctx, interestLockName)
	if err != nil {
		log.Printf("[InterestJob] 其他实例正在计息，本轮跳过: %v", err)
		return 0, money.Zero()
	}
	defer release()

	var (
		period   = model.InterestPeriod(j.now())
		after    string
		accrued  int
		total    = money.Zero()
		failures int
	)

	for {
		accounts, err := j.accountRepo.ListBatch(ctx, after, model.VariantSavings, true, j.batchSize)
		if err != nil {
			log.Printf("[InterestJob] 查询账户失败: %v", err)
			break
		}
		if len(accounts) == 0 {
			break
		}

		for _, a := range accounts {
			interest, err := j.accruer.AccrueInterestForPeriod(ctx, a.AccountNumber, period)
			switch {
			case err == nil && interest.IsZero():
				// 已计息或利息为 0
			case err == nil:
				accrued++
				total = total.Add(interest)
			case errors.Is(err, model.ErrAccountInactive):
				// 扫描后被销户
			default:
				failures++
				log.Printf("[InterestJob] 计息失败: accountNumber=%s, err=%v", a.AccountNumber, err)
			}
		}

		if ctx.Err() != nil {
			break
		}
		after = accounts[len(accounts)-1].AccountNumber
	}

	log.Printf("[InterestJob] 计息期 %s 本轮计息 %d 个账户，利息合计 %s，失败 %d", period, accrued, total, failures)
	return accrued, total
}
