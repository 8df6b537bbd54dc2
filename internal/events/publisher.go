// Package events publishes scan lifecycle events to an AMQP queue.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/pipeline"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "scandash-events"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("events: publisher closed")

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Message is the JSON body of a published event.
type Message struct {
	Type      pipeline.EventType `json:"type"`
	ScanID    string             `json:"scan_id"`
	URL       string             `json:"url"`
	Status    string             `json:"status"`
	Progress  int                `json:"progress"`
	Error     string             `json:"error,omitempty"`
	Summary   aggregate.Summary  `json:"summary"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewMessage flattens an orchestrator event.
func NewMessage(ev pipeline.Event) Message {
	return Message{
		Type:      ev.Type,
		ScanID:    ev.Scan.ID,
		URL:       ev.Scan.URL,
		Status:    string(ev.Scan.Status),
		Progress:  ev.Scan.Progress,
		Error:     ev.Scan.Error,
		Summary:   aggregate.Aggregate(ev.Scan.Findings),
		Timestamp: ev.At,
	}
}

// Publisher sends events to a single queue on the default exchange.
type Publisher struct {
	queue string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     Channel
	closed bool
}

// Dial connects to the broker at url and declares queue.
func Dial(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewPublisher(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares queue on an already open channel.
func NewPublisher(ch Channel, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue '%s': %w", queue, err)
	}
	return &Publisher{queue: queue, ch: ch}, nil
}

// Queue returns the queue name events are routed to.
func (p *Publisher) Queue() string { return p.queue }

// Publish sends one event.
func (p *Publisher) Publish(ev pipeline.Event) error {
	body, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	err = p.ch.Publish(
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    ev.At,
			Type:         string(ev.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to '%s': %w", p.queue, err)
	}
	slog.Debug("Event published", "queue", p.queue, "type", ev.Type, "scan_id", ev.Scan.ID)
	return nil
}

// Close releases the channel and connection. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
