package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/barrier-prioritizer/internal/core/observability"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/invalidation"
)

// Generations scopes cache keys per barrier kind.
type Generations interface {
	Advance(kind string, version uint64) bool
	Bump(kind string) uint64
}

// Purger drops process-local cached responses.
type Purger interface {
	Purge()
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	gens   Generations
	local  Purger
	dedupe *offsetDedupe
}

func New(cfg Config, logger *slog.Logger, gens Generations, local Purger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		gens:   gens,
		local:  local,
		dedupe: newOffsetDedupe(cfg.DedupeSize),
	}
}

// Start consumes republish events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.gens == nil {
		return errors.New("kafkaconsumer: missing generations")
	}

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, c.cfg.sarama())
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne, logger: c.logger}
	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				obs.IncKafkaConsumerError("consume")
				c.logger.Error("kafka consumer error",
					"err", err, "brokers", c.cfg.Brokers, "topic", c.cfg.Topic)
				select {
				case <-ctx.Done():
				case <-time.After(backoff):
				}
			}
		}
	}
}

// ProcessOne applies a single republish event. Malformed events are counted
// and skipped so they do not block the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()
	dedupeKey := msg.Topic + "/" + strconv.Itoa(int(msg.Partition))
	if c.dedupe.seen(dedupeKey, msg.Offset) {
		obs.IncInvalidation("", "duplicate")
		return nil
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.reject(ctx, msg, "decode", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.reject(ctx, msg, "validate", err)
		return nil
	}

	kind := string(ev.Kind())
	var gen uint64
	outcome := "applied"
	if ev.DatasetVersion > 0 {
		if c.gens.Advance(kind, ev.DatasetVersion) {
			gen = ev.DatasetVersion
		} else {
			outcome = "outdated"
		}
	} else {
		gen = c.gens.Bump(kind)
	}
	if outcome == "applied" && c.local != nil {
		c.local.Purge()
	}
	c.dedupe.mark(dedupeKey, msg.Offset)

	obs.IncInvalidation(kind, outcome)
	obs.ObserveUpstreamLatency("kafka_invalidation", nil, time.Since(start).Seconds())
	c.logger.InfoContext(ctx, "ranking cache invalidated",
		"kind", kind, "outcome", outcome, "generation", gen,
		"partition", msg.Partition, "offset", msg.Offset)
	return nil
}

func (c *Consumer) reject(ctx context.Context, msg *sarama.ConsumerMessage, kind string, err error) {
	obs.IncKafkaConsumerError(kind)
	obs.IncInvalidation("", "rejected")
	c.dedupe.mark(msg.Topic+"/"+strconv.Itoa(int(msg.Partition)), msg.Offset)
	c.logger.ErrorContext(ctx, "republish event rejected",
		"err", err, "reason", kind,
		"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
}
