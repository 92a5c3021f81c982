package model

import (
	"time"

	"bankledger/pkg/money"
)

// ============================================================================
// 分录类型
// ============================================================================

type EntryType string

const (
	EntryTypeDeposit     EntryType = "DEPOSIT"
	EntryTypeWithdrawal  EntryType = "WITHDRAWAL"
	EntryTypeTransferIn  EntryType = "TRANSFER_IN"
	EntryTypeTransferOut EntryType = "TRANSFER_OUT"
	EntryTypeFee         EntryType = "FEE"
)

// IsCredit 入账类分录
func (t EntryType) IsCredit() bool {
	return t == EntryTypeDeposit || t == EntryTypeTransferIn
}

func (t EntryType) defaultDescription(accountNumber string) string {
	switch t {
	case EntryTypeDeposit:
		return "Deposit to " + accountNumber
	case EntryTypeWithdrawal:
		return "Withdrawal from " + accountNumber
	case EntryTypeTransferIn:
		return "Transfer to " + accountNumber
	case EntryTypeTransferOut:
		return "Transfer from " + accountNumber
	default:
		return "Transaction fee"
	}
}

// ============================================================================
// 账户分录实体
// ============================================================================

// LedgerEntry 账户分录表
// 记录账户的每一笔余额变动，是对账的核心依据
//
// 【重要】分录表设计原则：
// 1. 只追加，不修改，不删除，保证审计可追溯
// 2. 金额恒为正数，方向由 Type 表示
// 3. 记录变动后余额：同一账户的分录按 ID 排序后 BalanceAfter 构成连续的余额轨迹
// 4. 同一次操作产生的多条分录共享 Reference（转账两端、取款+手续费）
type LedgerEntry struct {
	ID            int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID string      `gorm:"type:varchar(13);uniqueIndex;not null" json:"transaction_id"` // TXN + 10 位数字
	AccountID     string      `gorm:"type:varchar(36);index;not null" json:"account_id"`
	AccountNumber string      `gorm:"type:varchar(12);index;not null" json:"account_number"`
	Type          EntryType   `gorm:"type:varchar(15);not null" json:"type"`
	Amount        money.Money `gorm:"type:decimal(20,2);not null" json:"amount"`
	BalanceAfter  money.Money `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	Description   string      `gorm:"type:varchar(256)" json:"description"`
	Reference     string      `gorm:"type:varchar(32);index;not null" json:"reference"`
	CreatedAt     time.Time   `gorm:"index" json:"timestamp"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
