package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/joripage/microbook/pkg/kafkabus"
	"github.com/joripage/microbook/pkg/logging"
	"github.com/joripage/microbook/pkg/store/model"
	"github.com/joripage/microbook/pkg/store/repo"
)

// EventConsumer drains raw book events off Kafka into the book_events
// table.
type EventConsumer struct {
	bookEvent repo.IBookEvent
	group     *kafkabus.ConsumerGroup
}

func NewEventConsumer(r repo.IRepo, group *kafkabus.ConsumerGroup) *EventConsumer {
	return &EventConsumer{
		bookEvent: r.BookEvent(),
		group:     group,
	}
}

// Run consumes until ctx is cancelled. A payload that fails to decode
// is dropped; persistence errors bubble up to the group's retry and
// DLQ handling.
func (c *EventConsumer) Run(ctx context.Context) error {
	return c.group.Run(ctx, func(ctx context.Context, msg kafkabus.Message) error {
		var ev model.BookEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log, ctx := logging.GetLogger(ctx)
			log.Warn(ctx, "decode book event", zap.Error(err))
			return nil
		}
		_, err := c.bookEvent.Create(ctx, &ev)
		return err
	})
}
