package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig holds configuration for the Kafka producer
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Acks        string
	Compression string

	SASLMechanism string
	SASLUser      string
	SASLPassword  string

	TLSCAPath string
}

// ConfigMap translates the settings into librdkafka properties.
func (c KafkaConfig) ConfigMap() kafka.ConfigMap {
	acks := c.Acks
	if acks == "" {
		acks = "all"
	}
	configMap := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(c.Brokers, ","),
		"acks":              acks,
		"retries":           10,
		"retry.backoff.ms":  100,
		"linger.ms":         10,
	}
	if c.Compression != "" {
		configMap["compression.type"] = c.Compression
	}
	if c.SASLMechanism != "" {
		configMap["security.protocol"] = "SASL_SSL"
		configMap["sasl.mechanism"] = c.SASLMechanism
		if c.SASLUser != "" {
			configMap["sasl.username"] = c.SASLUser
		}
		if c.SASLPassword != "" {
			configMap["sasl.password"] = c.SASLPassword
		}
	}
	if c.TLSCAPath != "" {
		if c.SASLMechanism == "" {
			configMap["security.protocol"] = "SSL"
		}
		configMap["ssl.ca.location"] = c.TLSCAPath
	}
	return configMap
}

// KafkaSink produces decisions to a topic with key = decision id.
type KafkaSink struct {
	config   KafkaConfig
	producer *kafka.Producer
	logger   *slog.Logger
	done     chan struct{}
}

func NewKafkaSink(cfg KafkaConfig, logger *slog.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink needs brokers and a topic")
	}
	configMap := cfg.ConfigMap()
	producer, err := kafka.NewProducer(&configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	s := &KafkaSink{config: cfg, producer: producer, logger: logger, done: make(chan struct{})}
	go s.handleDeliveryReports()
	return s, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, rec core.DecisionRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize decision: %w", err)
	}
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &s.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(rec.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "combined_verdict", Value: []byte(rec.CombinedVerdict)},
			{Key: "schema", Value: []byte("v1")},
		},
	}
	if err := s.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	remaining := s.producer.Flush(10 * 1000)
	s.producer.Close()
	<-s.done
	if remaining > 0 {
		return fmt.Errorf("failed to flush %d remaining messages", remaining)
	}
	return nil
}

// handleDeliveryReports ends when Close closes the events channel.
func (s *KafkaSink) handleDeliveryReports() {
	defer close(s.done)
	for ev := range s.producer.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				s.logger.Error("kafka delivery failed", "key", string(e.Key), "error", e.TopicPartition.Error)
			}
		case kafka.Error:
			s.logger.Error("kafka error", "error", e)
		}
	}
}
