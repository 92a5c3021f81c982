package service

import (
	"context"
	"log"

	"bankledger/internal/model"
	"bankledger/pkg/money"
)

// Deposit 存款，返回存款后余额
func (s *LedgerService) Deposit(ctx context.Context, accountNumber string, amount money.Money) (money.Money, error) {
	if err := money.ValidateAmount(amount); err != nil {
		return money.Zero(), err
	}

	accounts, ref, err := s.mutate(ctx, model.EventDeposit, []string{accountNumber}, func(accounts []*model.Account) ([]*model.LedgerEntry, error) {
		entry, err := accounts[0].Credit(amount, model.EntryTypeDeposit, "")
		if err != nil {
			return nil, err
		}
		return []*model.LedgerEntry{entry}, nil
	})
	if err != nil {
		return money.Zero(), err
	}

	balance := accounts[0].Balance
	log.Printf("存款成功: accountNumber=%s, amount=%s, balance=%s, ref=%s", accountNumber, amount, balance, ref)
	return balance, nil
}

// Withdraw 取款，返回取款后余额
// 活期账户额外扣除手续费（单独一条 FEE 分录）
func (s *LedgerService) Withdraw(ctx context.Context, accountNumber string, amount money.Money) (money.Money, error) {
	if err := money.ValidateAmount(amount); err != nil {
		return money.Zero(), err
	}

	accounts, ref, err := s.mutate(ctx, model.EventWithdrawal, []string{accountNumber}, func(accounts []*model.Account) ([]*model.LedgerEntry, error) {
		a := accounts[0]
		policy, err := s.policies.For(a.Variant)
		if err != nil {
			return nil, err
		}
		return a.Debit(policy, amount, model.DebitWithdrawal, "")
	})
	if err != nil {
		return money.Zero(), err
	}

	balance := accounts[0].Balance
	log.Printf("取款成功: accountNumber=%s, amount=%s, balance=%s, ref=%s", accountNumber, amount, balance, ref)
	return balance, nil
}

// TransferResult 转账后双方余额
type TransferResult struct {
	Reference   string      `json:"reference"`
	FromBalance money.Money `json:"from_balance"`
	ToBalance   money.Money `json:"to_balance"`
}

// Transfer 账户间转账
//
// 【流程】
// 1. 同账户转账直接拒绝
// 2. 两个账户按账号顺序加锁、加行锁
// 3. 转出方按取款规则校验（免手续费、不受单笔限额约束），记 TRANSFER_OUT
// 4. 转入方记 TRANSFER_IN
// 5. 两条分录共享同一个 Reference，与余额一起在同一事务提交
func (s *LedgerService) Transfer(ctx context.Context, fromNumber, toNumber string, amount money.Money, description string) (*TransferResult, error) {
	if fromNumber == toNumber {
		return nil, &model.LedgerError{Kind: model.ErrSameAccountTransfer, AccountNumber: fromNumber, Requested: amount}
	}
	if err := money.ValidateAmount(amount); err != nil {
		return nil, err
	}

	accounts, ref, err := s.mutate(ctx, model.EventTransfer, []string{fromNumber, toNumber}, func(accounts []*model.Account) ([]*model.LedgerEntry, error) {
		from, to := accounts[0], accounts[1]

		// 转入方先做状态检查，避免转出方分录生成后才发现目标不可用
		if !to.IsActive {
			return nil, &model.LedgerError{Kind: model.ErrAccountInactive, AccountNumber: to.AccountNumber, Balance: to.Balance, Requested: amount}
		}

		policy, err := s.policies.For(from.Variant)
		if err != nil {
			return nil, err
		}
		out, err := from.Debit(policy, amount, model.DebitTransfer, description)
		if err != nil {
			return nil, err
		}
		in, err := to.Credit(amount, model.EntryTypeTransferIn, description)
		if err != nil {
			return nil, err
		}
		return append(out, in), nil
	})
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		Reference:   ref,
		FromBalance: accounts[0].Balance,
		ToBalance:   accounts[1].Balance,
	}
	log.Printf("转账成功: from=%s, to=%s, amount=%s, ref=%s", fromNumber, toNumber, amount, ref)
	return result, nil
}
