package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"bankledger/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedis 创建 Redis 客户端并检查连通性
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return client, nil
}

func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client, err := NewRedis(context.Background(), cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Println("Redis 连接成功")
	return client
}
