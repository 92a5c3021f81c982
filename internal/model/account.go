package model

import (
	"fmt"
	"time"

	"bankledger/pkg/money"
)

// Variant 账户类型，创建后不可变
type Variant string

const (
	VariantSavings Variant = "SAVINGS"
	VariantCurrent Variant = "CURRENT"
)

func (v Variant) Valid() bool {
	return v == VariantSavings || v == VariantCurrent
}

// ParseVariant 解析账户类型（大小写敏感）
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
	return v, nil
}

// Account 账户表（储蓄 / 活期共用一张表，通过 Variant 区分）
//
// 【重要】账号在全系统唯一（不是按类型唯一），所以按账号查询不需要区分类型。
// 余额不变量：Balance 恒等于最后一条分录的 BalanceAfter；没有分录时等于 OpeningBalance。
type Account struct {
	ID                 string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountNumber      string      `gorm:"type:varchar(12);uniqueIndex;not null" json:"account_number"`
	OwnerID            int64       `gorm:"index;not null" json:"owner_id"`
	Variant            Variant     `gorm:"type:varchar(10);index;not null" json:"variant"`
	Balance            money.Money `gorm:"type:decimal(20,2);not null" json:"balance"`
	OpeningBalance     money.Money `gorm:"type:decimal(20,2);not null" json:"opening_balance"` // 开户时直接写入的初始余额，不产生分录
	IsActive           bool        `gorm:"not null;default:true" json:"is_active"`
	LastInterestPeriod string      `gorm:"type:varchar(7);not null;default:''" json:"last_interest_period,omitempty"` // 最近一次已计息的计息期（YYYY-MM）
	Version            int         `gorm:"not null;default:0" json:"-"` // 乐观锁版本号
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// InterestPeriodLayout 计息期格式，按字符串比较即按时间先后
const InterestPeriodLayout = "2006-01"

// InterestPeriod t 所在的计息期（UTC 自然月）
func InterestPeriod(t time.Time) string {
	return t.UTC().Format(InterestPeriodLayout)
}

// InterestAccrued 该计息期是否已经计过息
func (a *Account) InterestAccrued(period string) bool {
	return a.LastInterestPeriod != "" && a.LastInterestPeriod >= period
}

// Credit 入账（存款 / 转入 / 利息），除账户状态和金额外没有其他业务限制
func (a *Account) Credit(amount money.Money, entryType EntryType, description string) (*LedgerEntry, error) {
	if !entryType.IsCredit() {
		return nil, fmt.Errorf("%w: %s is not a credit entry", ErrUnsupportedOperation, entryType)
	}
	if err := a.checkMutable(amount); err != nil {
		return nil, err
	}

	a.Balance = a.Balance.Add(amount)
	return a.entry(entryType, amount, description), nil
}

// Debit 出账（取款 / 转出），由 Policy 决定是否允许以及手续费
//
// 活期取款会产生两条分录，BalanceAfter 按顺序递减：
//
//	WITHDRAWAL 500.00  balance_after = -500.00
//	FEE         10.00  balance_after = -510.00
func (a *Account) Debit(p Policy, amount money.Money, kind DebitKind, description string) ([]*LedgerEntry, error) {
	if p.Variant() != a.Variant {
		return nil, fmt.Errorf("%w: policy %s applied to %s account", ErrInvalidVariant, p.Variant(), a.Variant)
	}
	if err := a.checkMutable(amount); err != nil {
		return nil, err
	}
	if err := p.CheckDebit(a, amount, kind); err != nil {
		return nil, err
	}

	entryType := EntryTypeWithdrawal
	if kind == DebitTransfer {
		entryType = EntryTypeTransferOut
	}

	a.Balance = a.Balance.Sub(amount)
	entries := []*LedgerEntry{a.entry(entryType, amount, description)}

	if fee := p.Fee(kind); fee.IsPositive() {
		a.Balance = a.Balance.Sub(fee)
		entries = append(entries, a.entry(EntryTypeFee, fee, "Transaction fee"))
	}
	return entries, nil
}

func (a *Account) checkMutable(amount money.Money) error {
	if err := money.ValidateAmount(amount); err != nil {
		return err
	}
	if !a.IsActive {
		return &LedgerError{Kind: ErrAccountInactive, AccountNumber: a.AccountNumber, Balance: a.Balance, Requested: amount}
	}
	return nil
}

func (a *Account) entry(entryType EntryType, amount money.Money, description string) *LedgerEntry {
	if description == "" {
		description = entryType.defaultDescription(a.AccountNumber)
	}
	return &LedgerEntry{
		AccountID:     a.ID,
		AccountNumber: a.AccountNumber,
		Type:          entryType,
		Amount:        amount,
		BalanceAfter:  a.Balance,
		Description:   description,
	}
}
