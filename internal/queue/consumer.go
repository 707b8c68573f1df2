package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/falldetect/internal/models"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeFalls starts consuming fall events (for the API to store and
// broadcast via WebSocket).
func (c *Consumer) ConsumeFalls(ctx context.Context, consumerName string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, FallsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", FallsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    5,
		FilterSubject: FallsSubjectBase + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch falls error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				if err := handler(ctx, msg); err != nil {
					slog.Error("process fall event error", "error", err, "subject", msg.Subject())
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("fall consumer started", "consumer", consumerName)
	return nil
}

// SubscribeControl calls handler for every valid camera command. Invalid
// messages are logged and dropped.
func (c *Consumer) SubscribeControl(handler func(models.CameraCommand)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(ControlSubject, func(msg *nats.Msg) {
		cmd, err := models.ParseCameraCommand(msg.Data)
		if err != nil {
			slog.Warn("drop control message", "error", err)
			return
		}
		handler(cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", ControlSubject, err)
	}
	return sub, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
