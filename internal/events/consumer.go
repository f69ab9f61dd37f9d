package events

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
)

// Consumer pulls member activity events off Pub/Sub and feeds the handler.
// Malformed messages are acked so a poison payload cannot wedge the
// subscription; everything else nacks for redelivery.
type Consumer struct {
	handler      *Handler
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(handler *Handler, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("event handler is required")
	}
	if subscription == nil {
		return nil, errors.New("events subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{handler: handler, subscription: subscription, logg: logg}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logCtx := c.logg.WithField(ctx, "message_id", msg.ID)
		err := c.handler.HandleEvent(logCtx, msg.Data)
		if err == nil {
			msg.Ack()
			return
		}
		if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			c.logg.Error(logCtx, "dropping malformed member event", err)
			msg.Ack()
			return
		}
		c.logg.Error(logCtx, "member event failed, requeueing", err)
		msg.Nack()
	})
}
