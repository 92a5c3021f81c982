package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
	"bankledger/internal/repository"
	"bankledger/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// 账本服务
// ============================================================================
//
// 【并发控制的三层防护】
// 1. 账户锁（Redis 分布式锁 / 进程内锁）：同一账户的变更串行执行，
//    多账户按账号排序后加锁，避免互相等待
// 2. 数据库行锁：事务内按账号顺序 SELECT ... FOR UPDATE
// 3. 乐观锁：余额更新带 version 条件，冲突时整体重试有限次
//
// 【原子性】
// 余额更新、分录追加、本地消息写入在同一个数据库事务中完成，
// 任何一步失败整体回滚，不存在“扣了款没记账”的中间状态。
//
// ============================================================================

// Options 服务运行参数
type Options struct {
	AccountNumberAttempts int    // 账号碰撞后最多尝试次数
	TransactionIDAttempts int    // 流水号碰撞后最多尝试次数
	ConflictRetries       int    // 乐观锁冲突重试次数
	Topic                 string // 账本事件投递的 topic
}

// OptionsFromConfig 从全局配置提取服务参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AccountNumberAttempts: cfg.Ledger.AccountNumberAttempts,
		TransactionIDAttempts: cfg.Ledger.TransactionIDAttempts,
		ConflictRetries:       cfg.Ledger.ConflictRetries,
		Topic:                 cfg.Broker.Topic,
	}
}

// Generators 标识符来源
type Generators struct {
	AccountNumbers idgen.Generator
	TransactionIDs idgen.Generator
	References     idgen.Generator
}

type LedgerService struct {
	db       *gorm.DB
	locker   lock.Locker
	policies model.Policies
	opts     Options
	ids      Generators

	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
}

func NewLedgerService(db *gorm.DB, locker lock.Locker, policies model.Policies, opts Options, ids Generators) *LedgerService {
	if opts.AccountNumberAttempts <= 0 {
		opts.AccountNumberAttempts = 5
	}
	if opts.TransactionIDAttempts <= 0 {
		opts.TransactionIDAttempts = 5
	}
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	return &LedgerService{
		db:          db,
		locker:      locker,
		policies:    policies,
		opts:        opts,
		ids:         ids,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// applyFunc 在已加锁的账户上执行业务规则，返回需要追加的分录
// accounts 与调用 mutate 时传入的账号顺序一致
type applyFunc func(accounts []*model.Account) ([]*model.LedgerEntry, error)

// errNothingToApply 业务上无需变更（例如利息为 0），事务回滚且不视为失败
var errNothingToApply = errors.New("nothing to apply")

// mutate 对一个或多个账户执行一次原子变更
func (s *LedgerService) mutate(ctx context.Context, event string, accountNumbers []string, apply applyFunc) ([]*model.Account, string, error) {
	release, err := s.locker.Lock(ctx, accountNumbers...)
	if err != nil {
		return nil, "", fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	for attempt := 0; ; attempt++ {
		accounts, reference, err := s.mutateOnce(ctx, event, accountNumbers, apply)
		if err == nil || !errors.Is(err, model.ErrConcurrentConflict) || attempt >= s.opts.ConflictRetries {
			return accounts, reference, err
		}
		log.Printf("账户版本冲突，重试: accounts=%v, attempt=%d, err=%v", accountNumbers, attempt+1, err)
	}
}

func (s *LedgerService) mutateOnce(ctx context.Context, event string, accountNumbers []string, apply applyFunc) ([]*model.Account, string, error) {
	var (
		accounts  []*model.Account
		reference string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		accounts, err = s.loadForUpdate(ctx, tx, accountNumbers)
		if err != nil {
			return err
		}

		entries, err := apply(accounts)
		if err != nil {
			return err
		}

		for _, account := range accounts {
			if err := s.accountRepo.Update(ctx, tx, account); err != nil {
				return err
			}
		}

		reference = s.ids.References.Next()
		if err := s.assignTransactionIDs(ctx, tx, entries); err != nil {
			return err
		}
		for _, e := range entries {
			e.Reference = reference
		}

		for _, account := range accounts {
			if err := s.ledgerRepo.Append(ctx, tx, account, entriesOf(account, entries)...); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// 流水号被并发事务抢先写入
					return &model.LedgerError{Kind: model.ErrConcurrentConflict, AccountNumber: account.AccountNumber}
				}
				return fmt.Errorf("记录分录失败: %w", err)
			}
		}

		ledgerEvent := &model.LedgerEvent{
			Event:     event,
			Reference: reference,
			Accounts:  accounts,
			Entries:   entries,
			At:        accounts[0].UpdatedAt,
		}
		if err := s.outboxRepo.CreateEvent(ctx, tx, s.opts.Topic, accountNumbers[0], ledgerEvent); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return accounts, reference, nil
}

// loadForUpdate 按账号排序加行锁读取，返回顺序与入参一致
func (s *LedgerService) loadForUpdate(ctx context.Context, tx *gorm.DB, accountNumbers []string) ([]*model.Account, error) {
	sorted := append([]string(nil), accountNumbers...)
	sort.Strings(sorted)

	byNumber := make(map[string]*model.Account, len(sorted))
	for _, n := range sorted {
		if _, ok := byNumber[n]; ok {
			continue
		}
		account, err := s.accountRepo.GetByAccountNumberForUpdate(ctx, tx, n)
		if err != nil {
			return nil, err
		}
		byNumber[n] = account
	}

	accounts := make([]*model.Account, len(accountNumbers))
	for i, n := range accountNumbers {
		accounts[i] = byNumber[n]
	}
	return accounts, nil
}

// assignTransactionIDs 为分录分配流水号，碰撞（库内已存在或同批重复）时重新生成
func (s *LedgerService) assignTransactionIDs(ctx context.Context, tx *gorm.DB, entries []*model.LedgerEntry) error {
	used := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		assigned := false
		for i := 0; i < s.opts.TransactionIDAttempts; i++ {
			id := s.ids.TransactionIDs.Next()
			if _, dup := used[id]; dup {
				continue
			}
			exists, err := s.ledgerRepo.ExistsTransactionID(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("校验流水号失败: %w", err)
			}
			if exists {
				continue
			}
			used[id] = struct{}{}
			e.TransactionID = id
			assigned = true
			break
		}
		if !assigned {
			return &model.LedgerError{Kind: model.ErrGenerationExhausted, AccountNumber: e.AccountNumber}
		}
	}
	return nil
}

func entriesOf(account *model.Account, entries []*model.LedgerEntry) []*model.LedgerEntry {
	var out []*model.LedgerEntry
	for _, e := range entries {
		if e.AccountID == account.ID {
			out = append(out, e)
		}
	}
	return out
}
