package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/kafka"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
)

func reconcileMessage(t *testing.T, basketID string) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(&models.ReconcileRequest{BasketID: basketID, Reason: "stripe API error", Attempt: 1, Timestamp: time.Now()})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "basket-reconcile", Key: []byte(basketID), Value: data}
}

func claimWith(messages ...*sarama.ConsumerMessage) *MockConsumerGroupClaim {
	msgChan := make(chan *sarama.ConsumerMessage, len(messages))
	for _, msg := range messages {
		msgChan <- msg
	}
	close(msgChan)
	claim := &MockConsumerGroupClaim{}
	claim.On("Messages").Return(msgChan)
	return claim
}

func TestReconcileConsumerHandlerMarksHandledMessages(t *testing.T) {
	var seen []string
	handler := kafka.NewReconcileConsumerHandler(func(req *models.ReconcileRequest) error {
		seen = append(seen, req.BasketID)
		return nil
	}, logger.New(io.Discard, false))

	first := reconcileMessage(t, "basket-1")
	second := reconcileMessage(t, "basket-2")
	session := &MockConsumerGroupSession{}
	session.On("MarkMessage", first, "").Return()
	session.On("MarkMessage", second, "").Return()
	claim := claimWith(first, second)

	require.NoError(t, handler.ConsumeClaim(session, claim))

	assert.Equal(t, []string{"basket-1", "basket-2"}, seen)
	session.AssertExpectations(t)
	claim.AssertExpectations(t)
}

func TestReconcileConsumerHandlerLeavesFailedMessagesUnmarked(t *testing.T) {
	handler := kafka.NewReconcileConsumerHandler(func(req *models.ReconcileRequest) error {
		return errors.New("stripe still down")
	}, logger.New(io.Discard, false))

	session := &MockConsumerGroupSession{}
	claim := claimWith(reconcileMessage(t, "basket-1"))

	require.NoError(t, handler.ConsumeClaim(session, claim))

	session.AssertNotCalled(t, "MarkMessage", mock.Anything, mock.Anything)
}

func TestReconcileConsumerHandlerSkipsMalformedMessages(t *testing.T) {
	called := false
	handler := kafka.NewReconcileConsumerHandler(func(req *models.ReconcileRequest) error {
		called = true
		return nil
	}, logger.New(io.Discard, false))

	bad := &sarama.ConsumerMessage{Topic: "basket-reconcile", Value: []byte("{not json")}
	session := &MockConsumerGroupSession{}
	session.On("MarkMessage", bad, "").Return()

	require.NoError(t, handler.ConsumeClaim(session, claimWith(bad)))

	assert.False(t, called)
	session.AssertExpectations(t)
}

// TestReconcileConsumerIntegration round-trips a reconcile request through a
// real broker. It requires a running Kafka broker.
func TestReconcileConsumerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:29092"
	}
	cfg := config.KafkaConfig{
		Brokers:        strings.Split(brokers, ","),
		GroupID:        "test-reconcile-" + time.Now().Format("20060102150405"),
		OrderTopic:     "order-events-test",
		ReconcileTopic: "basket-reconcile-test",
	}
	log := logger.New(io.Discard, false)

	probe := sarama.NewConfig()
	probe.Net.DialTimeout = 5 * time.Second
	client, err := sarama.NewClient(cfg.Brokers, probe)
	if err != nil {
		t.Skip("Skipping test because Kafka is not available:", err)
	}
	client.Close()

	producer, err := kafka.NewProducer(cfg, log)
	require.NoError(t, err)
	defer producer.Close()
	consumer, err := kafka.NewConsumer(cfg, log)
	require.NoError(t, err)
	defer consumer.Close()

	basketID := "it-basket-" + time.Now().Format("150405.000000")
	received := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = consumer.ConsumeReconcileRequests(ctx, func(req *models.ReconcileRequest) error {
			if req.BasketID == basketID {
				received <- struct{}{}
			}
			return nil
		})
	}()

	// the group joins with OffsetNewest, so keep publishing until it picks one up
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	deadline := time.After(30 * time.Second)
	for {
		require.NoError(t, producer.PublishReconcileRequest(&models.ReconcileRequest{BasketID: basketID, Attempt: 1, Timestamp: time.Now()}))
		select {
		case <-received:
			return
		case <-deadline:
			t.Fatalf("Timeout waiting for reconcile request for %s", basketID)
		case <-ticker.C:
		}
	}
}

// Mock implementations for Sarama interfaces
type MockConsumerGroupSession struct {
	mock.Mock
}

func (m *MockConsumerGroupSession) Claims() map[string][]int32 {
	args := m.Called()
	return args.Get(0).(map[string][]int32)
}

func (m *MockConsumerGroupSession) MemberID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConsumerGroupSession) GenerationID() int32 {
	args := m.Called()
	return int32(args.Int(0))
}

func (m *MockConsumerGroupSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
	m.Called(topic, partition, offset, metadata)
}

func (m *MockConsumerGroupSession) Commit() {
	m.Called()
}

func (m *MockConsumerGroupSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
	m.Called(topic, partition, offset, metadata)
}

func (m *MockConsumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	m.Called(msg, metadata)
}

func (m *MockConsumerGroupSession) Context() context.Context {
	args := m.Called()
	return args.Get(0).(context.Context)
}

type MockConsumerGroupClaim struct {
	mock.Mock
}

func (m *MockConsumerGroupClaim) Topic() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConsumerGroupClaim) Partition() int32 {
	args := m.Called()
	return int32(args.Int(0))
}

func (m *MockConsumerGroupClaim) InitialOffset() int64 {
	args := m.Called()
	return int64(args.Int(0))
}

func (m *MockConsumerGroupClaim) HighWaterMarkOffset() int64 {
	args := m.Called()
	return int64(args.Int(0))
}

func (m *MockConsumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	args := m.Called()
	return args.Get(0).(chan *sarama.ConsumerMessage)
}
