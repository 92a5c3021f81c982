package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bankledger/internal/model"
	"bankledger/pkg/money"
)

// HistoryQuery 分录查询条件
// Limit 为 0 返回全部；BeforeID 为上一页返回的 NextCursor
type HistoryQuery struct {
	Limit    int
	BeforeID int64
}

// HistoryPage 按时间倒序的一页分录，NextCursor 为 0 表示没有更多
type HistoryPage struct {
	AccountNumber string               `json:"account_number"`
	Entries       []*model.LedgerEntry `json:"entries"`
	NextCursor    int64                `json:"next_cursor,omitempty"`
}

// GetHistory 查询账户分录（最近的在前），只读，多次调用结果一致
func (s *LedgerService) GetHistory(ctx context.Context, accountNumber string, q HistoryQuery) (*HistoryPage, error) {
	if q.Limit < 0 {
		return nil, fmt.Errorf("limit 不能为负数: %d", q.Limit)
	}

	account, err := s.accountRepo.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	fetch := q.Limit
	if fetch > 0 {
		fetch++ // 多取一条判断是否还有下一页
	}
	entries, err := s.ledgerRepo.ListByAccountID(ctx, account.ID, q.BeforeID, fetch)
	if err != nil {
		return nil, fmt.Errorf("查询分录失败: %w", err)
	}

	page := &HistoryPage{AccountNumber: account.AccountNumber, Entries: entries}
	if q.Limit > 0 && len(entries) > q.Limit {
		page.Entries = entries[:q.Limit]
		page.NextCursor = page.Entries[q.Limit-1].ID
	}
	if page.Entries == nil {
		page.Entries = []*model.LedgerEntry{}
	}
	return page, nil
}

// GetTransaction 按流水号查询单条分录
func (s *LedgerService) GetTransaction(ctx context.Context, transactionID string) (*model.LedgerEntry, error) {
	entry, err := s.ledgerRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("查询分录失败: %w", err)
	}
	if entry == nil {
		return nil, &model.LedgerError{Kind: model.ErrTransactionNotFound}
	}
	return entry, nil
}

// errInterestAccrued 该计息期已经计过息
var errInterestAccrued = errors.New("interest already accrued for period")

// AccrueInterest 按当前计息期（UTC 自然月）计息
func (s *LedgerService) AccrueInterest(ctx context.Context, accountNumber string) (money.Money, error) {
	return s.AccrueInterestForPeriod(ctx, accountNumber, model.InterestPeriod(time.Now()))
}

// AccrueInterestForPeriod 储蓄账户按月计息，利息以 DEPOSIT 分录入账
//
// 计息期记录在账户上，与余额在同一事务内更新：同一计息期重复调用
// （多实例同时扫描、任务重启后补跑）返回 0 且不产生任何记录。
// 利息为 0 时同样不产生记录；活期账户返回 ErrUnsupportedOperation。
func (s *LedgerService) AccrueInterestForPeriod(ctx context.Context, accountNumber, period string) (money.Money, error) {
	if _, err := time.Parse(model.InterestPeriodLayout, period); err != nil {
		return money.Zero(), fmt.Errorf("计息期格式错误: %q", period)
	}

	var interest money.Money

	_, ref, err := s.mutate(ctx, model.EventInterest, []string{accountNumber}, func(accounts []*model.Account) ([]*model.LedgerEntry, error) {
		a := accounts[0]
		if a.Variant != model.VariantSavings {
			return nil, &model.LedgerError{Kind: model.ErrUnsupportedOperation, AccountNumber: a.AccountNumber}
		}
		if !a.IsActive {
			return nil, &model.LedgerError{Kind: model.ErrAccountInactive, AccountNumber: a.AccountNumber, Balance: a.Balance}
		}
		if a.InterestAccrued(period) {
			return nil, errInterestAccrued
		}

		interest = s.policies.Savings.MonthlyInterest(a.Balance)
		if interest.IsZero() {
			return nil, errNothingToApply
		}
		entry, err := a.Credit(interest, model.EntryTypeDeposit, "Monthly interest")
		if err != nil {
			return nil, err
		}
		a.LastInterestPeriod = period
		return []*model.LedgerEntry{entry}, nil
	})
	if errors.Is(err, errInterestAccrued) {
		log.Printf("本期已计息，跳过: accountNumber=%s, period=%s", accountNumber, period)
		return money.Zero(), nil
	}
	if errors.Is(err, errNothingToApply) {
		return money.Zero(), nil
	}
	if err != nil {
		return money.Zero(), err
	}

	log.Printf("计息成功: accountNumber=%s, period=%s, interest=%s, ref=%s", accountNumber, period, interest, ref)
	return interest, nil
}

// VerifyAccount 对账：从开户余额开始逐条重放分录
//
// 校验三件事：
//   - 每条分录的 BalanceAfter 等于重放到该条时的余额
//   - 分录时间戳单调不减
//   - 账户当前余额等于最后一条分录的 BalanceAfter（无分录时等于 OpeningBalance）
//
// 不一致时返回 ErrLedgerMismatch，Balance 为记录值，Requested 为重放得到的期望值。
func (s *LedgerService) VerifyAccount(ctx context.Context, accountNumber string) error {
	release, err := s.locker.Lock(ctx, accountNumber)
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	account, err := s.accountRepo.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return err
	}

	mismatch := func(recorded, expected money.Money) error {
		return &model.LedgerError{
			Kind:          model.ErrLedgerMismatch,
			AccountNumber: account.AccountNumber,
			Balance:       recorded,
			Requested:     expected,
		}
	}

	// 先比对余额与最后一条分录，不一致时无需重放
	last, err := s.ledgerRepo.LastByAccountID(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("查询分录失败: %w", err)
	}
	tail := account.OpeningBalance
	if last != nil {
		tail = last.BalanceAfter
	}
	if !account.Balance.Equal(tail) {
		return mismatch(account.Balance, tail)
	}

	entries, err := s.ledgerRepo.ListByAccountID(ctx, account.ID, 0, 0)
	if err != nil {
		return fmt.Errorf("查询分录失败: %w", err)
	}

	running := account.OpeningBalance
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Type.IsCredit() {
			running = running.Add(e.Amount)
		} else {
			running = running.Sub(e.Amount)
		}
		if !e.BalanceAfter.Equal(running) {
			return fmt.Errorf("分录 %s: %w", e.TransactionID, mismatch(e.BalanceAfter, running))
		}
		if i < len(entries)-1 && e.CreatedAt.Before(entries[i+1].CreatedAt) {
			return fmt.Errorf("分录 %s 时间戳倒退: %w", e.TransactionID, mismatch(e.BalanceAfter, running))
		}
	}

	if !account.Balance.Equal(running) {
		return mismatch(account.Balance, running)
	}
	return nil
}
