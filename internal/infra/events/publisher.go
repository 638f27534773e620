// Package events publishes transaction lifecycle events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("events")

const (
	publishTimeout = 5 * time.Second
	reconnectMin   = 500 * time.Millisecond
	reconnectMax   = 30 * time.Second
)

var errDisconnected = errors.New("broker connection is down")

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// link is one connection with its channel. closed yields once when
// either of them goes away.
type link struct {
	ch     channel
	closed <-chan *amqp091.Error
	close  func() error
}

// Publisher implements port.EventPublisher on a durable direct exchange.
// The routing key is "transaction.<action>". A lost connection is
// redialed in the background; publishes fail fast until it is back.
type Publisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	link     *link      // nil while reconnecting
	dial     func() (*link, error)
	exchange string
	logger   *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPublisher dials url and declares the exchange.
func NewPublisher(url, exchange string, logger *zap.Logger) (*Publisher, error) {
	return newPublisher(func() (*link, error) { return dial(url, exchange) }, exchange, logger)
}

func dial(url, exchange string) (*link, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	connClosed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp091.Error, 1))
	closed := make(chan *amqp091.Error, 1)
	go func() {
		var reason *amqp091.Error
		select {
		case reason = <-connClosed:
		case reason = <-chClosed:
		}
		closed <- reason
	}()

	return &link{
		ch:     ch,
		closed: closed,
		close: func() error {
			_ = ch.Close()
			return conn.Close()
		},
	}, nil
}

func newPublisher(dial func() (*link, error), exchange string, logger *zap.Logger) (*Publisher, error) {
	l, err := dial()
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		link:       l,
		dial:       dial,
		exchange:   exchange,
		logger:     logger,
		minBackoff: reconnectMin,
		maxBackoff: reconnectMax,
		done:       make(chan struct{}),
	}
	p.wg.Add(1)
	go p.watch(l)
	return p, nil
}

// watch replaces l whenever it closes, until the publisher is closed.
func (p *Publisher) watch(l *link) {
	defer p.wg.Done()
	for {
		var reason *amqp091.Error
		select {
		case <-p.done:
			return
		case reason = <-l.closed:
		}
		select {
		case <-p.done:
			return
		default:
		}

		p.mu.Lock()
		p.link = nil
		p.mu.Unlock()
		_ = l.close()

		cause := errDisconnected
		if reason != nil {
			cause = reason
		}
		p.logger.Warn("events: broker connection lost", zap.Error(cause))

		next, ok := p.reconnect()
		if !ok {
			return
		}
		l = next
	}
}

// reconnect dials with exponential backoff. It gives up only when the
// publisher is closed.
func (p *Publisher) reconnect() (*link, bool) {
	backoff := p.minBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-p.done:
			return nil, false
		case <-time.After(backoff):
		}

		l, err := p.dial()
		if err != nil {
			backoff = min(backoff*2, p.maxBackoff)
			p.logger.Warn("events: reconnect failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
			continue
		}

		p.mu.Lock()
		select {
		case <-p.done:
			p.mu.Unlock()
			_ = l.close()
			return nil, false
		default:
		}
		p.link = l
		p.mu.Unlock()

		p.logger.Info("events: reconnected", zap.Int("attempts", attempt))
		return l, true
	}
}

// Publish sends evt as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, evt domain.TransactionEvent) error {
	ctx, span := tracer.Start(ctx, "Events.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.routing_key", evt.RoutingKey()),
		attribute.String("user.id", evt.UserID),
	)

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	if p.link == nil {
		p.mu.Unlock()
		return fmt.Errorf("publish %s: %w", evt.RoutingKey(), errDisconnected)
	}
	err = p.link.ch.PublishWithContext(
		ctx,
		p.exchange,       // exchange
		evt.RoutingKey(), // routing key
		false,            // mandatory
		false,            // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    evt.ID,
			Timestamp:    evt.OccurredAt,
			Type:         evt.RoutingKey(),
			Body:         body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.RoutingKey(), err)
	}

	p.logger.Debug("event published",
		zap.String("routing_key", evt.RoutingKey()),
		zap.String("event_id", evt.ID),
		zap.String("exchange", p.exchange),
	)
	return nil
}

// Close stops reconnecting and closes the channel and the connection.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.link != nil {
			err = p.link.close()
			p.link = nil
		}
	})
	return err
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, domain.TransactionEvent) error { return nil }
