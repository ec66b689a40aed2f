package kafkaconsumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

type groupHandler struct {
	process func(context.Context, *sarama.ConsumerMessage) error
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info("invalidation partitions assigned",
		"member", sess.MemberID(), "generation", sess.GenerationID(), "claims", sess.Claims())
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Debug("invalidation partitions released", "member", sess.MemberID())
	return nil
}

// ConsumeClaim applies republish events in partition order and marks each
// offset only after the cache generation moved.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("claim context done: %w", ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(ctx, msg); err != nil {
				return fmt.Errorf("apply republish event (partition=%d offset=%d): %w",
					msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
