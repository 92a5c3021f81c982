package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bankledger/internal/model"
	"bankledger/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// errAccountNumberTaken 候选账号已被占用，换一个重试
var errAccountNumberTaken = errors.New("account number taken")

// OpenAccount 开户
//
// 初始存款直接写入余额（OpeningBalance），不产生分录；
// 账号随机生成，碰撞时重新生成，超过 AccountNumberAttempts 次返回 ErrGenerationExhausted。
func (s *LedgerService) OpenAccount(ctx context.Context, ownerID int64, variant model.Variant, initialDeposit money.Money) (*model.Account, error) {
	policy, err := s.policies.For(variant)
	if err != nil {
		return nil, err
	}
	if err := money.ValidateAmount(initialDeposit); err != nil {
		return nil, err
	}
	if initialDeposit.LessThan(policy.MinimumBalance()) {
		return nil, &model.LedgerError{
			Kind:      model.ErrInsufficientInitialDeposit,
			Requested: initialDeposit,
			Limit:     policy.MinimumBalance(),
		}
	}

	for attempt := 1; attempt <= s.opts.AccountNumberAttempts; attempt++ {
		account := &model.Account{
			ID:             uuid.NewString(),
			AccountNumber:  s.ids.AccountNumbers.Next(),
			OwnerID:        ownerID,
			Variant:        variant,
			Balance:        initialDeposit,
			OpeningBalance: initialDeposit,
			IsActive:       true,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			exists, err := s.accountRepo.ExistsByAccountNumber(ctx, tx, account.AccountNumber)
			if err != nil {
				return fmt.Errorf("校验账号失败: %w", err)
			}
			if exists {
				return errAccountNumberTaken
			}
			if err := s.accountRepo.Create(ctx, tx, account); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errAccountNumberTaken
				}
				return fmt.Errorf("创建账户失败: %w", err)
			}
			return s.outboxRepo.CreateEvent(ctx, tx, s.opts.Topic, account.AccountNumber, &model.LedgerEvent{
				Event:     model.EventAccountOpened,
				Reference: account.ID,
				Accounts:  []*model.Account{account},
				At:        account.CreatedAt,
			})
		})
		if errors.Is(err, errAccountNumberTaken) {
			log.Printf("账号碰撞，重新生成: accountNumber=%s, attempt=%d", account.AccountNumber, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("开户成功: accountNumber=%s, ownerID=%d, variant=%s, balance=%s",
			account.AccountNumber, ownerID, variant, initialDeposit)
		return account, nil
	}

	return nil, &model.LedgerError{Kind: model.ErrGenerationExhausted}
}

// GetAccount 按账号查询（含已销户账户）
func (s *LedgerService) GetAccount(ctx context.Context, accountNumber string) (*model.Account, error) {
	return s.accountRepo.GetByAccountNumber(ctx, accountNumber)
}

// ListAccounts 客户名下全部账户（含已销户账户）
func (s *LedgerService) ListAccounts(ctx context.Context, ownerID int64) ([]*model.Account, error) {
	return s.accountRepo.ListByOwner(ctx, ownerID, false)
}

// ComputeTotalBalance 客户名下有效账户的余额合计，没有账户时为 0
func (s *LedgerService) ComputeTotalBalance(ctx context.Context, ownerID int64) (money.Money, error) {
	accounts, err := s.accountRepo.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return money.Zero(), fmt.Errorf("查询账户失败: %w", err)
	}

	balances := make([]money.Money, len(accounts))
	for i, a := range accounts {
		balances[i] = a.Balance
	}
	return money.Sum(balances...), nil
}

// CloseAccount 销户（软删除），分录与余额保留用于审计
func (s *LedgerService) CloseAccount(ctx context.Context, accountNumber string) (*model.Account, error) {
	accounts, _, err := s.mutate(ctx, model.EventAccountClosed, []string{accountNumber}, func(accounts []*model.Account) ([]*model.LedgerEntry, error) {
		a := accounts[0]
		if !a.IsActive {
			return nil, &model.LedgerError{Kind: model.ErrAccountInactive, AccountNumber: a.AccountNumber, Balance: a.Balance}
		}
		a.IsActive = false
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("销户成功: accountNumber=%s, balance=%s", accountNumber, accounts[0].Balance)
	return accounts[0], nil
}
