package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sender delivers a rendered notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Consumer drains NotificationsQueue into a Sender.
type Consumer struct {
	url    string
	sender Sender
	log    *slog.Logger
}

// NewConsumer returns a Consumer for url, or the local default broker when
// url is empty.
func NewConsumer(url string, sender Sender, log *slog.Logger) *Consumer {
	if url == "" {
		url = defaultAMQPURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{url: url, sender: sender, log: log.With("component", "notification-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled. Lost
// connections are re-dialled with exponential backoff capped at 30s.
// Messages that cannot be handled are rejected without requeue so a bad
// payload cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}
	if err := declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NotificationsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.Error("handle notification failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if n.To == "" {
		return fmt.Errorf("notification %s has no recipient", n.Kind)
	}
	if err := c.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send %s to %s: %w", n.Kind, n.To, err)
	}
	c.log.Info("notification delivered", "kind", n.Kind, "to", n.To)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
