package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/GoArmGo/PhotoViewer/internal/config"
	"github.com/GoArmGo/PhotoViewer/internal/messaging/payloads"
)

const publishTimeout = 5 * time.Second

// RefreshHandler обрабатывает один запрос на обновление каталога
type RefreshHandler func(context.Context, payloads.RefreshRequestPayload) error

// Client представляет собой клиент RabbitMQ
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	logger  *slog.Logger
}

// NewClient создает и инициализирует новый клиент RabbitMQ
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	client := &Client{logger: logger}

	conn, err := amqp.Dial(cfg.RabbitMQ.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к RabbitMQ: %w", err)
	}
	client.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("не удалось открыть канал RabbitMQ: %w", err)
	}
	client.channel = ch

	// Идемпотентно: очередь создаётся, только если её нет
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.RabbitMQQueueName, // name
		true,                           // durable
		false,                          // delete when unused
		false,                          // exclusive
		false,                          // no-wait
		nil,                            // arguments
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось объявить очередь: %w", err)
	}
	client.queue = q

	logger.Info("rabbitmq connected", "queue", q.Name, "messages", q.Messages)
	return client, nil
}

// Close закрывает соединение и канал RabbitMQ
func (c *Client) Close() error {
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("failed to close rabbitmq channel", "error", err)
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("failed to close rabbitmq connection", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.logger.Info("rabbitmq connection closed")
	return firstErr
}

// PublishRefreshRequest реализует ports.RefreshRequestPublisher.
func (c *Client) PublishRefreshRequest(ctx context.Context, payload payloads.RefreshRequestPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		publishCtx,
		"",           // exchange
		c.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    payload.RequestedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка публикации сообщения: %w", err)
	}
	c.logger.Info("refresh request published", "queue", c.queue.Name, "reason", payload.Reason)
	return nil
}

// StartConsumingRefreshRequests реализует ports.RefreshRequestConsumer.
// Сообщения обрабатываются в отдельной горутине до отмены ctx или закрытия канала.
func (c *Client) StartConsumingRefreshRequests(ctx context.Context, handler func(context.Context, payloads.RefreshRequestPayload) error) error {
	// Обновление каталога одно на процесс, больше одного сообщения брать незачем
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("ошибка настройки QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("ошибка регистрации потребителя: %w", err)
	}

	c.logger.Info("consumer registered", "queue", c.queue.Name)

	go consume(ctx, msgs, handler, c.logger)
	return nil
}

func consume(ctx context.Context, msgs <-chan amqp.Delivery, handler RefreshHandler, logger *slog.Logger) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("rabbitmq delivery channel closed, stopping consumer")
				return
			}
			handleDelivery(ctx, msg, handler, logger)
		case <-ctx.Done():
			logger.Info("context cancelled, stopping rabbitmq consumer")
			return
		}
	}
}

// handleDelivery: битое сообщение отклоняется без возврата в очередь,
// ошибка обработчика возвращает сообщение в очередь.
func handleDelivery(ctx context.Context, msg amqp.Delivery, handler RefreshHandler, logger *slog.Logger) {
	var payload payloads.RefreshRequestPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		logger.Error("malformed refresh request", "error", err, "body", string(msg.Body))
		if err := msg.Nack(false, false); err != nil {
			logger.Error("failed to nack malformed message", "error", err)
		}
		return
	}

	start := time.Now()
	if err := handler(ctx, payload); err != nil {
		logger.Error("refresh request failed", "error", err, "reason", payload.Reason)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("failed to nack message", "error", err)
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("failed to ack message", "error", err)
		return
	}
	logger.Info("refresh request processed",
		"reason", payload.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
