package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 账本事件类型，作为消息头 / 归档字段发送
const (
	EventAccountOpened = "account.opened"
	EventAccountClosed = "account.closed"
	EventDeposit       = "ledger.deposit"
	EventWithdrawal    = "ledger.withdrawal"
	EventTransfer      = "ledger.transfer"
	EventInterest      = "ledger.interest"
)

// OutboxMessage 本地消息表
// 与余额变更在同一个数据库事务中写入，由 OutboxSender 异步投递
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// LedgerEvent 发往消息队列的事件体
type LedgerEvent struct {
	Event     string         `json:"event"`
	Reference string         `json:"reference"`
	Accounts  []*Account     `json:"accounts"`
	Entries   []*LedgerEntry `json:"entries,omitempty"`
	At        time.Time      `json:"at"`
}
