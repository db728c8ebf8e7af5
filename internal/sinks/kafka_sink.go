package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "ssw-alert-watcher/pkg/errors"
	"ssw-alert-watcher/pkg/types"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const defaultKafkaTimeout = 10 * time.Second

// KafkaRecord is the JSON value published for every alert.
type KafkaRecord struct {
	ID        string           `json:"id"`
	Kind      types.AlertKind  `json:"kind"`
	Timestamp time.Time        `json:"timestamp"`
	Event     types.AlertEvent `json:"event"`
	Message   Message          `json:"message"`
}

// KafkaSink publishes alerts to a Kafka topic, keyed by alert kind.
type KafkaSink struct {
	config   types.KafkaSinkConfig
	logger   *logrus.Logger
	producer sarama.SyncProducer
	*deliveryQueue
}

// NewKafkaSink cria um novo sink para Kafka
func NewKafkaSink(config types.KafkaSinkConfig, logger *logrus.Logger) (*KafkaSink, error) {
	saramaConfig, err := newSaramaConfig(config)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, apperrors.SinkError("kafka", "connect", "failed to create producer").Wrap(err)
	}

	logger.WithFields(logrus.Fields{
		"brokers":     config.Brokers,
		"topic":       config.Topic,
		"compression": config.Compression,
	}).Info("Kafka sink initialized")

	return newKafkaSinkWithProducer(config, producer, logger), nil
}

func newKafkaSinkWithProducer(config types.KafkaSinkConfig, producer sarama.SyncProducer, logger *logrus.Logger) *KafkaSink {
	s := &KafkaSink{
		config:   config,
		logger:   logger,
		producer: producer,
	}
	s.deliveryQueue = newDeliveryQueue("kafka", config.QueueSize, kafkaTimeout(config), s.publish, logger)
	return s
}

func kafkaTimeout(config types.KafkaSinkConfig) time.Duration {
	if config.Timeout != "" {
		if t, err := time.ParseDuration(config.Timeout); err == nil {
			return t
		}
	}
	return defaultKafkaTimeout
}

// newSaramaConfig maps the sink configuration onto a sync producer config.
func newSaramaConfig(config types.KafkaSinkConfig) (*sarama.Config, error) {
	if len(config.Brokers) == 0 {
		return nil, apperrors.ConfigError("kafka_sink", "no brokers configured")
	}
	if config.Topic == "" {
		return nil, apperrors.ConfigError("kafka_sink", "no topic configured")
	}
	if config.Timeout != "" {
		if _, err := time.ParseDuration(config.Timeout); err != nil {
			return nil, apperrors.ConfigError("kafka_sink", "invalid timeout").Wrap(err)
		}
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = "ssw-alert-watcher"
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	// Alertas não são reenviados; o cooldown já limita novas tentativas
	saramaConfig.Producer.Retry.Max = 0

	switch config.RequiredAcks {
	case 0:
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch strings.ToLower(config.Compression) {
	case "gzip":
		saramaConfig.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaConfig.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaConfig.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaConfig.Producer.Compression = sarama.CompressionZSTD
	case "", "none":
		saramaConfig.Producer.Compression = sarama.CompressionNone
	default:
		return nil, apperrors.ConfigError("kafka_sink", fmt.Sprintf("unsupported compression %q", config.Compression))
	}

	timeout := kafkaTimeout(config)
	saramaConfig.Net.DialTimeout = timeout
	saramaConfig.Net.ReadTimeout = timeout
	saramaConfig.Net.WriteTimeout = timeout
	saramaConfig.Producer.Timeout = timeout

	if config.Auth.Enabled {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = config.Auth.Username
		saramaConfig.Net.SASL.Password = config.Auth.Password

		switch strings.ToUpper(config.Auth.Mechanism) {
		case "", "PLAIN":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: scramSHA256}
			}
		case "SCRAM-SHA-512":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaConfig.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: scramSHA512}
			}
		default:
			return nil, apperrors.ConfigError("kafka_sink", fmt.Sprintf("unsupported SASL mechanism %q", config.Auth.Mechanism))
		}
	}

	if err := saramaConfig.Validate(); err != nil {
		return nil, apperrors.ConfigError("kafka_sink", "invalid producer configuration").Wrap(err)
	}
	return saramaConfig, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

// Start inicia o worker de publicação
func (s *KafkaSink) Start(ctx context.Context) error {
	if err := s.start(); err != nil {
		return err
	}
	s.logger.WithField("topic", s.config.Topic).Info("Kafka sink started")
	return nil
}

// Stop drena a fila e fecha o producer
func (s *KafkaSink) Stop() error {
	s.stop()
	if err := s.producer.Close(); err != nil {
		s.logger.WithError(err).Error("Error closing Kafka producer")
		return err
	}
	return nil
}

// Notify queues event for publication and returns immediately.
func (s *KafkaSink) Notify(ctx context.Context, event types.AlertEvent) error {
	return s.enqueue(ctx, event)
}

func (s *KafkaSink) IsHealthy() bool {
	return s.healthy()
}

// Stats returns delivery counters.
func (s *KafkaSink) Stats() DeliveryStats {
	return s.stats()
}

func (s *KafkaSink) publish(ctx context.Context, event types.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta := event.Meta()
	value, err := json.Marshal(KafkaRecord{
		ID:        meta.ID,
		Kind:      event.Kind(),
		Timestamp: meta.Timestamp,
		Event:     event,
		Message:   Render(event),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     s.config.Topic,
		Key:       sarama.StringEncoder(event.Kind()),
		Value:     sarama.ByteEncoder(value),
		Timestamp: meta.Timestamp,
		Headers: []sarama.RecordHeader{
			{Key: []byte("alert_id"), Value: []byte(meta.ID)},
		},
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"topic":     s.config.Topic,
		"partition": partition,
		"offset":    offset,
	}).Debug("Alert published to Kafka")
	return nil
}
