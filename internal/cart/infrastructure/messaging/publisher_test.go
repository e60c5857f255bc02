package messaging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/shoppingcart/internal/cart/domain"
	"github.com/wyfcoding/shoppingcart/internal/cart/infrastructure/messaging"
	"github.com/wyfcoding/shoppingcart/pkg/logger"
	"github.com/wyfcoding/shoppingcart/pkg/mq"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaEventPublisher_WritesJSONKeyedByCart(t *testing.T) {
	writer := &recordingWriter{}
	producer := mq.NewProducerWithWriter(writer, mq.KafkaConfig{TopicPrefix: "shop."})
	publisher := messaging.NewKafkaEventPublisher(producer)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := logger.ContextWithRequestID(context.Background(), "req-1")
	err := publisher.Publish(ctx, domain.TopicCartEvicted, "17", domain.CartEvictedEvent{
		CartID:           17,
		InactivityWindow: "10m0s",
		Timestamp:        ts,
	})
	require.NoError(t, err)

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "shop.cart.evicted", msg.Topic)
	assert.Equal(t, "17", string(msg.Key))

	var got domain.CartEvictedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, int64(17), got.CartID)
	assert.True(t, ts.Equal(got.Timestamp))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "cart.evicted", headers["event-type"])
	assert.Equal(t, "req-1", headers["request-id"])
}

func TestKafkaEventPublisher_WrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	producer := mq.NewProducerWithWriter(&recordingWriter{err: boom}, mq.KafkaConfig{})
	publisher := messaging.NewKafkaEventPublisher(producer)

	err := publisher.Publish(context.Background(), domain.TopicCartCreated, "1", domain.CartCreatedEvent{CartID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "cart.created")
}

func TestLogEventPublisher(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, logger.Config{Level: "info", Format: "json"})
	publisher := messaging.NewLogEventPublisher(l)

	err := publisher.Publish(context.Background(), domain.TopicCartDeleted, "3", domain.CartDeletedEvent{CartID: 3})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, `"topic":"cart.deleted"`), out)
	assert.True(t, strings.Contains(out, `"key":"3"`), out)
	assert.True(t, strings.Contains(out, `"cart_id":3`), out)
}
