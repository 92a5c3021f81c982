package job

import (
	"context"
	"log"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/mq"
	"bankledger/internal/model"
	"bankledger/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 轮询本地消息表，把账本事件投递到消息队列
//
// 投递是“至少一次”：发送成功但状态更新失败时下次会重发，
// 下游按 outbox_id 去重。
// 超过最大重试次数的消息标记为 FAILED，每隔 requeueInterval 重新放回待发送队列。
type OutboxSender struct {
	outboxRepo      *repository.OutboxRepository
	publisher       mq.Publisher
	stopCh          chan struct{}
	interval        time.Duration
	requeueInterval time.Duration
	batchSize       int
	maxRetryCount   int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.OutboxJobConfig) *OutboxSender {
	return &OutboxSender{
		outboxRepo:      repository.NewOutboxRepository(db),
		publisher:       publisher,
		stopCh:          make(chan struct{}),
		interval:        cfg.Interval,
		requeueInterval: cfg.RequeueInterval,
		batchSize:       cfg.BatchSize,
		maxRetryCount:   cfg.MaxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// requeueC 为 nil 时该分支永远不会触发
	var requeueC <-chan time.Time
	if s.requeueInterval > 0 {
		requeueTicker := time.NewTicker(s.requeueInterval)
		defer requeueTicker.Stop()
		requeueC = requeueTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		case <-requeueC:
			s.requeueFailedMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 处理一批待发送消息，返回发送成功的条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

// requeueFailedMessages 把一批失败消息放回待发送队列，返回入队条数
func (s *OutboxSender) requeueFailedMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetFailedMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询失败消息失败: %v", err)
		return 0
	}

	requeued := 0
	for _, msg := range messages {
		if err := s.outboxRepo.Requeue(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 消息重新入队失败: id=%d, err=%v", msg.ID, err)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		log.Printf("[OutboxSender] %d 条失败消息重新入队", requeued)
	}
	return requeued
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, mq.Message{
		ID:        msg.ID,
		Topic:     msg.Topic,
		Key:       msg.MessageKey,
		EventType: msg.EventType,
		Payload:   []byte(msg.Payload),
	})

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return false
		}
		log.Printf("[OutboxSender] 消息发送成功: id=%d, event=%s, key=%s", msg.ID, msg.EventType, msg.MessageKey)
		return true
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, err=%v", msg.ID, err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
	return false
}
