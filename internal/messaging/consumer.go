package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/internal/services"
	"github.com/filedepot/backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// userEvent is the payload published by the authentication authority on
// its fanout exchange. Events other than user_deleted are acknowledged
// and ignored.
type userEvent struct {
	Event  string `json:"event"`
	UserID int64  `json:"user_id"`
}

const eventUserDeleted = "user_deleted"

// Consumer subscribes to the authority's user-update exchange and purges
// the storage of deleted users.
type Consumer struct {
	cfg   config.QueueConfig
	users *services.UserService
	conn  *amqp.Connection
	ch    *amqp.Channel
}

func NewConsumer(cfg config.QueueConfig, users *services.UserService) *Consumer {
	return &Consumer{cfg: cfg, users: users}
}

// Start connects, binds an exclusive queue to the fanout exchange and
// consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", c.cfg.Username, c.cfg.Password, c.cfg.Host, c.cfg.Port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("connecting to message broker: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening broker channel: %w", err)
	}
	c.ch = ch

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("declaring exchange %q: %w", c.cfg.Exchange, err)
	}

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("declaring queue: %w", err)
	}

	if err := ch.QueueBind(queue.Name, "", c.cfg.Exchange, false, nil); err != nil {
		c.Close()
		return fmt.Errorf("binding queue: %w", err)
	}

	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		c.Close()
		return fmt.Errorf("starting consumer: %w", err)
	}

	logger.Info("queue_consumer_started", map[string]interface{}{
		"exchange": c.cfg.Exchange,
		"queue":    queue.Name,
	})

	go c.loop(ctx, deliveries)
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				logger.Warn("queue_consumer_stopped", map[string]interface{}{
					"exchange": c.cfg.Exchange,
				})
				return
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var event userEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		logger.Warn("queue_message_malformed", map[string]interface{}{
			"error": err.Error(),
		})
		delivery.Ack(false)
		return
	}

	if event.Event != eventUserDeleted {
		delivery.Ack(false)
		return
	}

	if err := c.users.Delete(ctx, event.UserID); err != nil {
		logger.Error("user_purge_failed", err, map[string]interface{}{
			"user_id": event.UserID,
		})
		// redeliver so the purge is retried
		delivery.Nack(false, true)
		return
	}

	logger.Info("user_purged", map[string]interface{}{
		"user_id": event.UserID,
	})
	delivery.Ack(false)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
