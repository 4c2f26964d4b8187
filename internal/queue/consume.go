package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
)

type HandlerFunc func(ctx context.Context, body []byte) error

// Consume delivers messages of queueName to handler one at a time until
// ctx is done. Failures are routed through HandleFailure.
func Consume(ctx context.Context, ch *amqp091.Channel, queueName string, maxRetries int, handler HandlerFunc) error {
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := ch.Consume(
		queueName,
		queueName+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", queueName)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel for %s closed", queueName)
			}
			Deliver(ctx, ch, msg, queueName, maxRetries, handler)
		}
	}
}

// Deliver runs handler for one message and acknowledges or retries it.
func Deliver(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, maxRetries int, handler HandlerFunc) {
	start := time.Now()
	logger.Info("[Queue] Received message", "queue", queueName, "retries", Retries(msg.Headers))

	if err := handler(ctx, msg.Body); err != nil {
		logger.Error("[Queue] Error processing message", "queue", queueName, "err", err)
		HandleFailure(ch, msg, queueName, maxRetries, err)
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
	logger.Info("[Queue] Message processed", "queue", queueName, "duration", time.Since(start))
}
