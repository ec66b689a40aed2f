package kafkaconsumer

import (
	"time"

	"github.com/IBM/sarama"
)

type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	// RetryBackoff is the pause after a failed Consume before rejoining.
	RetryBackoff time.Duration
	// FromOldest replays the retained topic on first join. Republish events
	// are idempotent per dataset version so a replay only costs cache misses.
	FromOldest bool
	// DedupeSize bounds the number of partitions whose last offset is remembered.
	DedupeSize int
}

func DefaultConfig(brokers []string, topic, group string) Config {
	return Config{
		Brokers:          brokers,
		Topic:            topic,
		GroupID:          group,
		ClientID:         "barrier-prioritizer",
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		RetryBackoff:     2 * time.Second,
		DedupeSize:       4096,
	}
}

func (c Config) sarama() *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	if c.ClientID != "" {
		sc.ClientID = c.ClientID
	}
	sc.Consumer.Group.Session.Timeout = c.SessionTimeout
	sc.Consumer.Group.Heartbeat.Interval = c.Heartbeat
	sc.Consumer.Group.Rebalance.Timeout = c.RebalanceTimeout
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if c.FromOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.Consumer.Offsets.AutoCommit.Enable = true
	return sc
}
