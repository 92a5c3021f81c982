package model

import (
	"fmt"

	"bankledger/pkg/money"

	"github.com/shopspring/decimal"
)

// DebitKind 出账场景
type DebitKind int

const (
	DebitWithdrawal DebitKind = iota // 客户取款：收手续费，受单笔限额约束
	DebitTransfer                    // 转账转出：免手续费，不受单笔限额约束
)

// Policy 账户类型的业务规则
type Policy interface {
	Variant() Variant
	MinimumBalance() money.Money
	Fee(kind DebitKind) money.Money
	// CheckDebit 在扣款前校验，account.Balance 为扣款前余额
	CheckDebit(account *Account, amount money.Money, kind DebitKind) error
}

// SavingsPolicy 储蓄账户：不允许低于最低余额
type SavingsPolicy struct {
	Minimum              money.Money
	DailyWithdrawalLimit money.Money     // 单笔取款上限
	InterestRate         decimal.Decimal // 年利率，按月计息
}

func (p SavingsPolicy) Variant() Variant { return VariantSavings }

func (p SavingsPolicy) MinimumBalance() money.Money { return p.Minimum }

func (p SavingsPolicy) Fee(DebitKind) money.Money { return money.Zero() }

func (p SavingsPolicy) CheckDebit(a *Account, amount money.Money, kind DebitKind) error {
	if kind == DebitWithdrawal && amount.GreaterThan(p.DailyWithdrawalLimit) {
		return newLedgerError(ErrLimitExceeded, a, amount, p.DailyWithdrawalLimit)
	}
	if a.Balance.Sub(amount).LessThan(p.Minimum) {
		return newLedgerError(ErrInsufficientBalance, a, amount, p.Minimum)
	}
	return nil
}

// MonthlyInterest 月息 = 余额 * 年利率 / 12，四舍五入到分；余额非正时为 0
func (p SavingsPolicy) MonthlyInterest(balance money.Money) money.Money {
	if !balance.IsPositive() {
		return money.Zero()
	}
	return balance.MulRate(p.InterestRate, 12)
}

// CurrentPolicy 活期账户：允许透支，取款收固定手续费
//
// Minimum 只是提示性的，余额可以一直降到 -OverdraftLimit。
// 透支校验包含手续费，保证任何一次取款后 balance >= -OverdraftLimit。
type CurrentPolicy struct {
	Minimum        money.Money
	OverdraftLimit money.Money
	TransactionFee money.Money
}

func (p CurrentPolicy) Variant() Variant { return VariantCurrent }

func (p CurrentPolicy) MinimumBalance() money.Money { return p.Minimum }

func (p CurrentPolicy) Fee(kind DebitKind) money.Money {
	if kind == DebitWithdrawal {
		return p.TransactionFee
	}
	return money.Zero()
}

func (p CurrentPolicy) CheckDebit(a *Account, amount money.Money, kind DebitKind) error {
	total := amount.Add(p.Fee(kind))
	if a.Balance.Sub(total).LessThan(p.OverdraftLimit.Neg()) {
		return newLedgerError(ErrOverdraftExceeded, a, total, p.OverdraftLimit)
	}
	return nil
}

// Policies 两种账户类型的规则集合
type Policies struct {
	Savings SavingsPolicy
	Current CurrentPolicy
}

// DefaultPolicies 默认规则
func DefaultPolicies() Policies {
	return Policies{
		Savings: SavingsPolicy{
			Minimum:              money.MustParse("500.00"),
			DailyWithdrawalLimit: money.MustParse("50000.00"),
			InterestRate:         decimal.RequireFromString("0.04"),
		},
		Current: CurrentPolicy{
			Minimum:        money.MustParse("1000.00"),
			OverdraftLimit: money.MustParse("10000.00"),
			TransactionFee: money.MustParse("10.00"),
		},
	}
}

// For 按账户类型分派规则
func (ps Policies) For(v Variant) (Policy, error) {
	switch v {
	case VariantSavings:
		return ps.Savings, nil
	case VariantCurrent:
		return ps.Current, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidVariant, v)
	}
}
