package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/pkg/logger"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	ClientID    string
}

// Topic returns the topic all identity events are written to.
func (c KafkaConfig) Topic() string {
	prefix := strings.Trim(strings.TrimSpace(c.TopicPrefix), ".")
	if prefix == "" {
		return "identity"
	}
	return prefix + ".identity"
}

// KafkaPublisher writes events to Kafka through a sarama AsyncProducer,
// keyed by account id so events for one account stay ordered.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      *zap.Logger

	mu      sync.RWMutex
	closed  bool
	drained chan struct{}
}

// NewKafkaPublisher dials the configured brokers.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: at least one kafka broker is required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("events: create kafka producer: %w", err)
	}

	log := logger.WithModule("events")
	log.Info("kafka publisher initialised",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic()),
	)
	return newKafkaPublisher(producer, cfg.Topic(), log), nil
}

func newKafkaPublisher(producer sarama.AsyncProducer, topic string, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log,
		drained:  make(chan struct{}),
	}
	go p.handleErrors()
	return p
}

func (p *KafkaPublisher) handleErrors() {
	defer close(p.drained)
	for perr := range p.producer.Errors() {
		if perr == nil {
			continue
		}
		p.log.Error("kafka publish failed",
			zap.Error(perr.Err),
			zap.String("topic", perr.Msg.Topic),
		)
	}
}

// Publish enqueues the event. It blocks only while the producer's input
// buffer is full.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AccountID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes buffered messages and stops the error drain.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("events: close kafka producer: %w", err)
	}
	return nil
}
