package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db    *gorm.DB
	clock Clock
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db, clock: defaultClock}
}

// WithClock 替换时间来源
func (r *AccountRepository) WithClock(c Clock) *AccountRepository {
	r.clock = c
	return r
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Create 写入新账户，时间戳由仓储统一生成
func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	now := r.clock()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Version = 0
	return r.conn(tx).WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFound(accountNumber)
		}
		return nil, err
	}
	return &account, nil
}

// GetByAccountNumberForUpdate 在事务内加行锁读取
// sqlite 没有行锁（连接池为 1，事务本身串行），不拼 FOR UPDATE
func (r *AccountRepository) GetByAccountNumberForUpdate(ctx context.Context, tx *gorm.DB, accountNumber string) (*model.Account, error) {
	var account model.Account
	query := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.
		Where("account_number = ?", accountNumber).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFound(accountNumber)
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ExistsByAccountNumber(ctx context.Context, tx *gorm.DB, accountNumber string) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("account_number = ?", accountNumber).
		Count(&count).Error
	return count > 0, err
}

// Update 按版本号条件更新余额、状态与计息期
//
// 已经持有账户锁和行锁时版本号不会冲突；一旦 RowsAffected == 0，
// 说明有绕过锁的并发写入，返回 ErrConcurrentConflict 由服务层重试。
func (r *AccountRepository) Update(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	updatedAt := r.clock.stamp(account.UpdatedAt)

	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance":              account.Balance,
			"is_active":            account.IsActive,
			"last_interest_period": account.LastInterestPeriod,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           updatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.LedgerError{Kind: model.ErrConcurrentConflict, AccountNumber: account.AccountNumber}
	}

	account.Version++
	account.UpdatedAt = updatedAt
	return nil
}

// ListByOwner 查询客户名下账户，activeOnly 为 true 时只返回有效账户
func (r *AccountRepository) ListByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]*model.Account, error) {
	var accounts []*model.Account
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("created_at ASC, account_number ASC").Find(&accounts).Error
	return accounts, err
}

// ListBatch 按账号游标分批扫描，供后台任务使用
// variant 为空表示不限类型
func (r *AccountRepository) ListBatch(ctx context.Context, afterAccountNumber string, variant model.Variant, activeOnly bool, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	query := r.db.WithContext(ctx).Where("account_number > ?", afterAccountNumber)
	if variant != "" {
		query = query.Where("variant = ?", variant)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("account_number ASC").Limit(limit).Find(&accounts).Error
	return accounts, err
}
