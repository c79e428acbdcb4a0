// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher sends events to RabbitMQ through the default exchange.
//
// The topic is used as the routing key, so each topic maps to one durable queue
// declared on first use. Messages are persistent.
type AMQPPublisher struct {
	conn   *amqp.Connection
	logger *slog.Logger

	// mu serializes use of the channel, which is not safe for concurrent publishing.
	mu       sync.Mutex
	channel  *amqp.Channel
	declared map[string]bool
}

// DialAMQP connects to the broker at url and opens a publishing channel.
func DialAMQP(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: amqp dial failed: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: amqp channel open failed: %w", err)
	}

	logger.Info("amqp_publisher_connected")

	return &AMQPPublisher{
		conn:     conn,
		logger:   logger,
		channel:  channel,
		declared: make(map[string]bool),
	}, nil
}

// Publish implements [Publisher].
func (publisher *AMQPPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s failed: %w", topic, err)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	if !publisher.declared[topic] {
		// Durable so messages survive broker restarts.
		if _, err := publisher.channel.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("events: queue declare %s failed: %w", topic, err)
		}
		publisher.declared[topic] = true
	}

	message := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := publisher.channel.PublishWithContext(ctx, "", topic, false, false, message); err != nil {
		return fmt.Errorf("events: publish %s failed: %w", topic, err)
	}

	return nil
}

// Ping fails once the broker connection has been closed. Readiness calls it.
func (publisher *AMQPPublisher) Ping(context.Context) error {
	if publisher.conn.IsClosed() {
		return errors.New("events: amqp connection closed")
	}
	return nil
}

// Close shuts down the channel and the connection.
func (publisher *AMQPPublisher) Close() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	if err := publisher.channel.Close(); err != nil {
		publisher.logger.Warn("amqp_channel_close_failed", slog.Any("error", err))
	}
	return publisher.conn.Close()
}
