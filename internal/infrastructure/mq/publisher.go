package mq

import (
	"context"
	"fmt"

	"bankledger/internal/config"
)

// Message 待投递的账本事件
type Message struct {
	ID        int64 // outbox 主键，用于下游去重
	Topic     string
	Key       string // 分区键：账号，保证同一账户事件有序
	EventType string
	Payload   []byte
}

// Publisher 事件投递目标
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NewPublisher 按 broker.driver 创建投递目标
func NewPublisher(ctx context.Context, cfg *config.BrokerConfig) (Publisher, error) {
	switch cfg.Driver {
	case "kafka", "":
		return NewKafkaPublisher(cfg.Kafka.Brokers)
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	case "mongo":
		return NewMongoArchive(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	default:
		return nil, fmt.Errorf("不支持的消息投递类型: %s", cfg.Driver)
	}
}
