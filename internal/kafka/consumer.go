package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
)

type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewConsumer(cfg config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		consumer: consumer,
		topics:   []string{cfg.ReconcileTopic},
		log:      log,
	}, nil
}

// ConsumeReconcileRequests feeds queued reconcile retries to handler until
// ctx is cancelled.
func (c *Consumer) ConsumeReconcileRequests(ctx context.Context, handler func(*models.ReconcileRequest) error) error {
	consumerHandler := NewReconcileConsumerHandler(handler, c.log)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.consumer.Consume(ctx, c.topics, consumerHandler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				c.log.Error("KAFKA", fmt.Sprintf("Error consuming messages: %v", err))
				return err
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// ReconcileConsumerHandler is the sarama group handler for reconcile
// requests. Messages whose handler fails are left unmarked.
type ReconcileConsumerHandler struct {
	handler func(*models.ReconcileRequest) error
	log     *logger.Logger
}

func NewReconcileConsumerHandler(handler func(*models.ReconcileRequest) error, log *logger.Logger) *ReconcileConsumerHandler {
	return &ReconcileConsumerHandler{handler: handler, log: log}
}

func (h *ReconcileConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *ReconcileConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *ReconcileConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var req models.ReconcileRequest
		if err := json.Unmarshal(message.Value, &req); err != nil {
			h.log.Error("KAFKA", fmt.Sprintf("Failed to unmarshal message: %v", err))
			session.MarkMessage(message, "")
			continue
		}

		if err := h.handler(&req); err != nil {
			h.log.Error("KAFKA", fmt.Sprintf("Failed to handle reconcile request for basket %s: %v", req.BasketID, err))
			continue
		}

		session.MarkMessage(message, "")
	}

	return nil
}
