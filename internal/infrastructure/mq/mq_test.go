package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"bankledger/internal/config"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		key, _ := m.Key.Encode()
		if string(key) != "123456789012" {
			return errors.New("unexpected key " + string(key))
		}
		if m.Topic != "ledger-events" {
			return errors.New("unexpected topic " + m.Topic)
		}
		if len(m.Headers) != 2 || string(m.Headers[0].Value) != "ledger.deposit" {
			return errors.New("missing event header")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer)
	msg := Message{ID: 7, Topic: "ledger-events", Key: "123456789012", EventType: "ledger.deposit", Payload: []byte(`{}`)}

	require.NoError(t, p.Publish(context.Background(), msg))
	assert.ErrorIs(t, p.Publish(context.Background(), msg), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestArchiveDocument(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc, err := archiveDocument(Message{
		ID:        42,
		Topic:     "ledger-events",
		Key:       "123456789012",
		EventType: "ledger.transfer",
		Payload:   []byte(`{"reference":"OP1","entries":[{"type":"TRANSFER_OUT"}]}`),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(42), doc["_id"])
	assert.Equal(t, "ledger.transfer", doc["event"])
	assert.Equal(t, now, doc["archived_at"])
	payload := doc["payload"].(map[string]interface{})
	assert.Equal(t, "OP1", payload["reference"])

	_, err = archiveDocument(Message{Payload: []byte("not-json")}, now)
	assert.Error(t, err)
}

func TestRabbitMQPublishing(t *testing.T) {
	pub := publishing(Message{ID: 9, Topic: "ledger-events", Key: "123456789012", EventType: "account.closed", Payload: []byte(`{"a":1}`)})

	assert.Equal(t, "9", pub.MessageId)
	assert.Equal(t, "account.closed", pub.Type)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, "123456789012", pub.Headers["key"])
	assert.JSONEq(t, `{"a":1}`, string(pub.Body))
}

func TestNewPublisherUnknownDriver(t *testing.T) {
	_, err := NewPublisher(context.Background(), &config.BrokerConfig{Driver: "nats"})
	assert.Error(t, err)
}
