package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TranscriptionJob is the message body placed on the transcription queue.
type TranscriptionJob struct {
	AudioRecordingID string `json:"audioRecordingId"`
	TranscriptionID  string `json:"transcriptionId"`
	FilePath         string `json:"filePath"`
}

// Publisher is the producer side of the queue, narrow so handlers can take a fake in tests.
type Publisher interface {
	Publish(ctx context.Context, job TranscriptionJob) error
}

// AMQPQueue owns one AMQP connection and a named durable queue.
type AMQPQueue struct {
	conn   *amqp.Connection
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to the broker and declares the durable queue.
func Dial(url, name string, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", name, err)
	}

	return &AMQPQueue{conn: conn, name: name, logger: logger}, nil
}

// Publish sends one job with persistent delivery. A channel is opened per
// publish; amqp channels are not safe for concurrent use.
func (q *AMQPQueue) Publish(ctx context.Context, job TranscriptionJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		"",     // default exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", q.name, err)
	}

	q.logger.Debug("published transcription job",
		zap.String("queue", q.name),
		zap.String("transcription_id", job.TranscriptionID),
	)
	return nil
}

// Consume delivers jobs to handler one at a time (prefetch 1, manual ack).
// The delivery is acked whether handler succeeds or fails: a failed job is
// terminal and its error is recorded on the transcription row, not retried.
// Blocks until ctx is cancelled or the channel closes.
func (q *AMQPQueue) Consume(ctx context.Context, handler func(ctx context.Context, job TranscriptionJob) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		q.name,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume from %s: %w", q.name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume channel closed for %s", q.name)
			}
			var job TranscriptionJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				q.logger.Error("dropping malformed job", zap.Error(err))
				_ = d.Reject(false)
				continue
			}
			if err := handler(ctx, job); err != nil {
				q.logger.Error("transcription job failed",
					zap.String("transcription_id", job.TranscriptionID),
					zap.Error(err),
				)
			}
			_ = d.Ack(false)
		}
	}
}

// Close shuts down the underlying connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.conn.Close()
}
