package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoArchive 将账本事件归档到 MongoDB，供审计查询
//
// 以 outbox ID 作为 _id 做 upsert，重复投递不会产生重复文档。
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMongoArchive(ctx context.Context, uri, database, collection string) (*MongoArchive, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("连接 MongoDB 失败: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB ping 失败: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}, {Key: "archived_at", Value: -1}}},
		{Keys: bson.D{{Key: "event", Value: 1}}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("创建索引失败: %w", err)
	}

	return &MongoArchive{client: client, collection: coll}, nil
}

func (a *MongoArchive) Publish(ctx context.Context, msg Message) error {
	doc, err := archiveDocument(msg, time.Now())
	if err != nil {
		return err
	}
	_, err = a.collection.ReplaceOne(ctx,
		bson.M{"_id": msg.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("归档事件失败: %w", err)
	}
	return nil
}

func (a *MongoArchive) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}

func archiveDocument(msg Message, now time.Time) (bson.M, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("事件内容不是合法 JSON: %w", err)
	}
	return bson.M{
		"_id":         msg.ID,
		"topic":       msg.Topic,
		"key":         msg.Key,
		"event":       msg.EventType,
		"payload":     payload,
		"archived_at": now,
	}, nil
}
