package mq

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/streadway/amqp"
)

// RabbitMQPublisher 发布到 topic 类型的 exchange，routing key 为事件类型
type RabbitMQPublisher struct {
	mu       sync.Mutex // amqp.Channel 不能并发使用
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("打开 RabbitMQ channel 失败: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 exchange 失败: %w", err)
	}

	return &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.Publish(
		p.exchange,    // exchange
		msg.EventType, // routing key
		false,         // mandatory
		false,         // immediate
		publishing(msg),
	)
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

func publishing(msg Message) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatInt(msg.ID, 10),
		Type:         msg.EventType,
		Headers: amqp.Table{
			"topic": msg.Topic,
			"key":   msg.Key,
		},
		Body: msg.Payload,
	}
}
