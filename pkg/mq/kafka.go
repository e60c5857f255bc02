// Package mq 提供 Kafka 生产者封装，消息值统一 JSON 编码
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers []string
	// 主题前缀，发送时拼接在 topic 前
	TopicPrefix string
	MaxRetries  int
	// 重试退避（毫秒）
	RetryBackoff int
}

// MessageWriter 是 *kafka.Writer 的最小子集，便于在测试中替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer MessageWriter
	config KafkaConfig
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: no brokers configured")
	}
	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{}, // 同一购物车的事件落在同一分区，保证顺序
		AllowAutoTopicCreation: true,
		Compression:            kafka.Snappy,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            maxAttempts,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
		BatchTimeout:           10 * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers)
	return NewProducerWithWriter(writer, cfg), nil
}

// NewProducerWithWriter 使用已有的 writer 创建生产者
func NewProducerWithWriter(writer MessageWriter, cfg KafkaConfig) *KafkaProducer {
	return &KafkaProducer{
		writer: writer,
		config: cfg,
	}
}

// Topic 返回加上前缀后的完整主题名
func (kp *KafkaProducer) Topic(topic string) string {
	return kp.config.TopicPrefix + topic
}

// SendMessage 发送单条消息，value 以 JSON 编码
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	fullTopic := kp.Topic(topic)
	msg := kafka.Message{
		Topic: fullTopic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(topic)},
		},
		Time: time.Now(),
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "request-id", Value: []byte(id)})
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to topic %s: %w", fullTopic, err)
	}

	logger.Debug(ctx, "Kafka message sent",
		"topic", fullTopic,
		"key", key,
	)
	return nil
}

// Close 关闭生产者，等待缓冲中的消息写出
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
