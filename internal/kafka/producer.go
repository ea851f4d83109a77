package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/models"
)

type Producer struct {
	producer       sarama.SyncProducer
	mockMode       bool
	orderTopic     string
	reconcileTopic string
	log            *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	if cfg.MockMode {
		log.LogKafka("MOCK_MODE", "producer", "Running in mock mode - no actual Kafka connection")
		return &Producer{
			mockMode:       true,
			orderTopic:     cfg.OrderTopic,
			reconcileTopic: cfg.ReconcileTopic,
			log:            log,
		}, nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.LogKafka("CONNECTED", "producer", fmt.Sprintf("Connected to Kafka brokers: %v", cfg.Brokers))
	return newProducer(producer, cfg, log), nil
}

func newProducer(producer sarama.SyncProducer, cfg config.KafkaConfig, log *logger.Logger) *Producer {
	return &Producer{
		producer:       producer,
		orderTopic:     cfg.OrderTopic,
		reconcileTopic: cfg.ReconcileTopic,
		log:            log,
	}
}

// PublishOrderEvent sends an order lifecycle event keyed by basket, so one
// basket's events stay in order on a single partition.
func (p *Producer) PublishOrderEvent(event *models.OrderEvent) error {
	return p.publish(p.orderTopic, event.BasketID, event.Type, event)
}

func (p *Producer) PublishReconcileRequest(req *models.ReconcileRequest) error {
	return p.publish(p.reconcileTopic, req.BasketID, "basket.reconcile", req)
}

func (p *Producer) publish(topic, key, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if p.mockMode {
		p.log.LogKafka("MOCK_PUBLISH", topic, fmt.Sprintf("Mock publishing %s for basket: %s", kind, key))
		p.log.LogKafka("MOCK_DATA", topic, string(data))
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Failed to send message to topic %s: %v", topic, err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.LogKafka("PUBLISHED", topic, fmt.Sprintf("%s sent to partition %d at offset %d for basket %s", kind, partition, offset, key))
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode {
		p.log.LogKafka("MOCK_CLOSE", "producer", "Mock producer closed")
		return nil
	}

	if p.producer != nil {
		p.log.LogKafka("CLOSING", "producer", "Closing Kafka producer connection")
		return p.producer.Close()
	}
	return nil
}
