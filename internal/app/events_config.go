package app

import (
	"strings"

	"github.com/charlesng35/staffhub/internal/events"
)

// KafkaPublisherConfig converts EventsConfig into the events package representation.
func (c EventsConfig) KafkaPublisherConfig() events.KafkaConfig {
	brokers := make([]string, 0, len(c.Kafka.Brokers))
	for _, broker := range c.Kafka.Brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return events.KafkaConfig{
		Brokers:     brokers,
		TopicPrefix: strings.TrimSpace(c.Kafka.TopicPrefix),
		ClientID:    strings.TrimSpace(c.Kafka.ClientID),
	}
}
