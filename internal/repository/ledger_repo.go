package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

// LedgerRepository 分录仓储：只有追加和查询，没有更新和删除
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append 追加同一账户的分录
//
// 分录时间戳取账户本次更新的 UpdatedAt（AccountRepository.Update 已保证单调），
// 因此账户余额与最后一条分录在同一时刻生效。
func (r *LedgerRepository) Append(ctx context.Context, tx *gorm.DB, account *model.Account, entries ...*model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.AccountID != account.ID {
			return errors.New("分录与账户不匹配")
		}
		e.CreatedAt = account.UpdatedAt
	}
	return tx.WithContext(ctx).Create(entries).Error
}

func (r *LedgerRepository) ExistsTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error
	return count > 0, err
}

// ListByAccountID 按时间倒序返回分录
// beforeID > 0 时只返回 ID 小于它的分录（游标翻页）；limit <= 0 表示不限制
func (r *LedgerRepository) ListByAccountID(ctx context.Context, accountID string, beforeID int64, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry

	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("id DESC").Find(&entries).Error
	return entries, err
}

// LastByAccountID 最近一条分录，没有时返回 nil
func (r *LedgerRepository) LastByAccountID(ctx context.Context, accountID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *LedgerRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
