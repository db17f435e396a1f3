package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"messaging-service/internal/observability"
)

// Queue names used by the service.
const (
	QueueFanout            = "chat.fanout"
	QueueNotifications     = "notifications"
	QueueNotificationBatch = "notifications.batch"
	QueueDead              = "notifications.dead"
)

const (
	reconnectAttempts = 5
	reconnectInterval = 5 * time.Second

	retryCountHeader = "x-retry-count"
)

// Handler processes one queue message. A non-nil error sends the message back
// through the retry path; nil acknowledges it.
type Handler func(ctx context.Context, body []byte) error

// Transport is a durable, ack-based queue used for chat fanout and
// notification dispatch. At-least-once: consumers must tolerate duplicates.
type Transport interface {
	Publish(ctx context.Context, queue string, message any, priority uint8) error
	Consume(queue string, prefetch int, handler Handler) error
	Healthy() bool
	Close() error
}

// NewTransport connects to RabbitMQ or falls back to a noop transport when
// AMQP is disabled. maxTries bounds redeliveries before a message is parked
// on the dead-letter queue.
func NewTransport(amqpURL string, maxTries int) Transport {
	if amqpURL == "" {
		log.Printf("rabbitmq disabled, using noop: empty amqp url")
		return noopTransport{reason: "empty amqp url"}
	}

	t := &amqpTransport{url: amqpURL, maxTries: maxTries}
	if err := t.connect(); err != nil {
		log.Printf("rabbitmq disabled, using noop: %v", err)
		return noopTransport{reason: err.Error()}
	}
	return t
}

type consumerSpec struct {
	queue    string
	prefetch int
	handler  Handler
}

type amqpTransport struct {
	url      string
	maxTries int

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	consumers []consumerSpec
	closed    bool
	healthy   bool
}

func (t *amqpTransport) connect() error {
	conn, err := amqp.Dial(t.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := declareQueues(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.ch = ch
	t.healthy = true
	consumers := make([]consumerSpec, len(t.consumers))
	copy(consumers, t.consumers)
	t.mu.Unlock()

	for _, spec := range consumers {
		if err := t.startConsumer(spec); err != nil {
			log.Printf("rabbitmq consumer restart failed queue=%s: %v", spec.queue, err)
		}
	}

	go t.watch(conn)
	log.Printf("rabbitmq connected")
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	plain := []string{QueueFanout, QueueNotificationBatch, QueueDead}
	for _, queue := range plain {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return err
		}
	}
	// Single-item notification queue carries per-message priority 1..3.
	_, err := ch.QueueDeclare(QueueNotifications, true, false, false, false, amqp.Table{
		"x-max-priority": int32(3),
	})
	return err
}

// watch reconnects with a fixed interval for a bounded number of attempts.
// After the cap the transport stays down and requires operator intervention.
func (t *amqpTransport) watch(conn *amqp.Connection) {
	closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	t.mu.Lock()
	t.healthy = false
	closed := t.closed
	t.mu.Unlock()
	if closed || closeErr == nil {
		return
	}

	log.Printf("rabbitmq connection lost: %v", closeErr)
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		time.Sleep(reconnectInterval)
		if err := t.connect(); err != nil {
			log.Printf("rabbitmq reconnect attempt %d/%d failed: %v", attempt, reconnectAttempts, err)
			continue
		}
		return
	}
	log.Printf("rabbitmq reconnect giving up after %d attempts", reconnectAttempts)
}

func (t *amqpTransport) Publish(ctx context.Context, queue string, message any, priority uint8) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return t.publishRaw(ctx, queue, body, priority, amqp.Table{})
}

func (t *amqpTransport) publishRaw(ctx context.Context, queue string, body []byte, priority uint8, headers amqp.Table) error {
	t.mu.Lock()
	ch := t.ch
	t.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel unavailable")
	}

	err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     priority,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError()
		log.Printf("rabbitmq publish failed queue=%s: %v", queue, err)
	}
	return err
}

// Consume registers a handler for a queue. prefetch bounds in-flight work per
// consumer; the dispatch consumers run with prefetch=1 to serialize side
// effects per notification.
func (t *amqpTransport) Consume(queue string, prefetch int, handler Handler) error {
	spec := consumerSpec{queue: queue, prefetch: prefetch, handler: handler}
	t.mu.Lock()
	t.consumers = append(t.consumers, spec)
	t.mu.Unlock()
	return t.startConsumer(spec)
}

func (t *amqpTransport) startConsumer(spec consumerSpec) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rabbitmq connection unavailable")
	}

	// Each consumer gets its own channel so Qos applies independently.
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Qos(spec.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return err
	}

	deliveries, err := ch.Consume(spec.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return err
	}

	go func() {
		for d := range deliveries {
			t.handleDelivery(spec, d)
		}
	}()
	return nil
}

func (t *amqpTransport) handleDelivery(spec consumerSpec, d amqp.Delivery) {
	ctx := context.Background()
	err := spec.handler(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Printf("rabbitmq ack failed queue=%s: %v", spec.queue, ackErr)
		}
		return
	}

	tries := retryCount(d.Headers) + 1
	observability.IncQueueRetry(spec.queue)
	if tries >= t.maxTries {
		log.Printf("rabbitmq message dead-lettered queue=%s tries=%d: %v", spec.queue, tries, err)
		headers := amqp.Table{retryCountHeader: int32(tries), "x-origin-queue": spec.queue}
		if pubErr := t.publishRaw(ctx, QueueDead, d.Body, 0, headers); pubErr != nil {
			// Dead-letter publish failed; requeue so the message is not lost.
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	log.Printf("rabbitmq message requeued queue=%s tries=%d/%d: %v", spec.queue, tries, t.maxTries, err)
	headers := amqp.Table{retryCountHeader: int32(tries)}
	if pubErr := t.publishRaw(ctx, spec.queue, d.Body, d.Priority, headers); pubErr != nil {
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (t *amqpTransport) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.healthy
}

func (t *amqpTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	ch, conn := t.ch, t.conn
	t.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

type noopTransport struct {
	reason string
}

func (n noopTransport) Publish(ctx context.Context, queue string, message any, priority uint8) error {
	log.Printf("rabbitmq noop publish queue=%s priority=%d", queue, priority)
	return nil
}

func (n noopTransport) Consume(queue string, prefetch int, handler Handler) error {
	log.Printf("rabbitmq noop consume queue=%s", queue)
	return nil
}

func (n noopTransport) Healthy() bool { return false }

func (n noopTransport) Close() error { return nil }

// TransportMode reports the transport mode for logging.
func TransportMode(t Transport) string {
	switch t.(type) {
	case *amqpTransport:
		return "amqp"
	case noopTransport:
		return "noop"
	default:
		return "unknown"
	}
}
