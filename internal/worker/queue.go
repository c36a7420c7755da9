// Package worker runs the background half of the order pipeline: the
// dispatch queue consumer and the periodic status sweep. Provider calls are
// blocking network operations and never run on a request-serving goroutine.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const dispatchQueueName = "order.dispatch"

// Queue is a durable queue of order ids awaiting dispatch.
type Queue interface {
	PublishDispatch(ctx context.Context, orderID uuid.UUID) error
	// ConsumeDispatch delivers order ids to handler until ctx is done.
	ConsumeDispatch(ctx context.Context, handler func(ctx context.Context, orderID uuid.UUID) error) error
	Close() error
}

// AMQPQueue implements Queue on RabbitMQ.
type AMQPQueue struct {
	conn *amqp.Connection
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	return &AMQPQueue{conn: conn}, nil
}

func (q *AMQPQueue) declare(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		dispatchQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (q *AMQPQueue) PublishDispatch(ctx context.Context, orderID uuid.UUID) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if _, err := q.declare(ch); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	return ch.PublishWithContext(ctx,
		"",                // exchange
		dispatchQueueName, // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(orderID.String()),
		})
}

func (q *AMQPQueue) ConsumeDispatch(ctx context.Context, handler func(ctx context.Context, orderID uuid.UUID) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := q.declare(ch); err != nil {
		ch.Close()
		return fmt.Errorf("declare queue: %w", err)
	}

	msgs, err := ch.Consume(
		dispatchQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				orderID, err := uuid.ParseBytes(d.Body)
				if err != nil {
					slog.Error("bad dispatch message", "body", string(d.Body), "error", err)
					d.Nack(false, false)
					continue
				}
				if err := handler(ctx, orderID); err != nil {
					// An immediate requeue of a deterministic failure would
					// spin; drop the message. An order stranded in
					// processing is picked up again by the stale-claim
					// sweep.
					slog.Error("dispatch handler failed", "order", orderID, "error", err)
					d.Nack(false, false)
					continue
				}
				d.Ack(false)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) Close() error {
	return q.conn.Close()
}

// MemoryQueue is a channel-backed Queue for tests and single-process runs
// without a broker.
type MemoryQueue struct {
	ch chan uuid.UUID
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan uuid.UUID, size)}
}

func (q *MemoryQueue) PublishDispatch(ctx context.Context, orderID uuid.UUID) error {
	select {
	case q.ch <- orderID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) ConsumeDispatch(ctx context.Context, handler func(ctx context.Context, orderID uuid.UUID) error) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case orderID := <-q.ch:
				if err := handler(ctx, orderID); err != nil {
					slog.Error("dispatch handler failed", "order", orderID, "error", err)
				}
			}
		}
	}()
	return nil
}

func (q *MemoryQueue) Close() error { return nil }
