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

const (
	dialTimeout  = 5 * time.Second
	redialPause  = 30 * time.Second
	exchangeKind = "topic"
)

// ErrBrokerUnavailable is returned without dialing while a failed dial is
// still within its back-off window.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

// Publisher sends billing events to a durable topic exchange over one
// long-lived connection, reopened on the next Publish after it drops.
type Publisher struct {
	url      string
	exchange string

	mu         sync.Mutex
	conn       *amqp.Connection
	ch         *amqp.Channel
	retryAfter time.Time
	now        func() time.Time
}

func NewPublisher(url, exchange string) *Publisher {
	if url == "" {
		slog.Info("AMQP_URL not set, billing events are dropped")
	}
	return &Publisher{url: url, exchange: exchange, now: time.Now}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.url != ""
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if !p.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	slog.Debug("event published", "exchange", p.exchange, "routing_key", routingKey)
	return nil
}

// channel returns the open channel, dialing when there is none. Callers hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	if p.now().Before(p.retryAfter) {
		return nil, ErrBrokerUnavailable
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(dialTimeout),
		Heartbeat: 10 * time.Second,
	})
	if err != nil {
		p.retryAfter = p.now().Add(redialPause)
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.retryAfter = p.now().Add(redialPause)
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		p.retryAfter = p.now().Add(redialPause)
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.retryAfter = time.Time{}
	slog.Info("event broker connected", "exchange", p.exchange)
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
