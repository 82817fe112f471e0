package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/hotel-reservation/internal/mailer"
)

// ErrMalformed marks messages that can never be delivered.  They are
// dropped instead of retried.
var ErrMalformed = errors.New("malformed notification")

// MaxSendAttempts bounds how often a message whose send failed goes back
// through the retry queue.
const MaxSendAttempts = 5

const attemptsHeader = "x-attempts"

// Consumer reads the notification queue and sends one email per event.
// Messages whose send failed wait RetryDelay in "<Queue>.retry" and are
// dead-lettered back onto Queue.
type Consumer struct {
	URL         string
	Queue       string
	Sender      mailer.Sender
	Hotel       string
	SendTimeout time.Duration
	RetryDelay  time.Duration
}

func NewConsumer(url, queue string, sender mailer.Sender, hotel string, sendTimeout time.Duration) *Consumer {
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Consumer{URL: url, Queue: queue, Sender: sender, Hotel: hotel, SendTimeout: sendTimeout, RetryDelay: time.Minute}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeDrop
	outcomeRetry
)

// settle decides what happens to a delivery after Handle returned err on
// its attempts-th try.
func settle(err error, attempts int) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrMalformed):
		return outcomeDrop
	case attempts+1 >= MaxSendAttempts:
		return outcomeDrop
	default:
		return outcomeRetry
	}
}

// attemptsOf reads the retry counter stamped on a redelivered message.
func attemptsOf(h amqp.Table) int {
	switch v := h[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (c *Consumer) retryQueue() string { return c.Queue + ".retry" }

// Run connects to the broker and consumes until ctx is cancelled.  Dial
// failures back off exponentially up to 30s; a dropped connection is
// re-established after a short pause.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if _, err := ch.QueueDeclare(c.retryQueue(), true, false, false, false, amqp.Table{
		"x-message-ttl":             c.RetryDelay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": c.Queue,
	}); err != nil {
		return fmt.Errorf("retry queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, ch, d)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	attempts := attemptsOf(d.Headers)
	err := c.Handle(ctx, d.Body)
	switch settle(err, attempts) {
	case outcomeAck:
		_ = d.Ack(false)
	case outcomeDrop:
		log.Printf("notify-consumer: dropping message after %d attempt(s): %v", attempts+1, err)
		_ = d.Nack(false, false)
	case outcomeRetry:
		log.Printf("notify-consumer: send failed (attempt %d), retrying in %s: %v", attempts+1, c.RetryDelay, err)
		perr := ch.PublishWithContext(ctx, "", c.retryQueue(), false, false, amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{attemptsHeader: int32(attempts + 1)},
			Body:         d.Body,
		})
		if perr != nil {
			log.Printf("notify-consumer: retry publish failed: %v; requeueing", perr)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	}
}

// Handle routes one message body to its template and sends the email.
// Unknown event types are acknowledged and ignored so newer publishers do
// not block older consumers.  Errors wrapping ErrMalformed are permanent;
// a failed send is worth retrying.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: invalid json body", ErrMalformed)
	}
	typ := gjson.GetBytes(body, "type").String()
	if _, ok := templates[typ]; !ok {
		log.Printf("notify-consumer: ignoring event type %q", typ)
		return nil
	}
	to := gjson.GetBytes(body, "email").String()
	if to == "" {
		return fmt.Errorf("%w: %s event without recipient", ErrMalformed, typ)
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", ErrMalformed, err)
	}
	subject, html, err := render(ev, c.Hotel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.SendTimeout)
	defer cancel()
	receipt, err := c.Sender.Send(ctx, mailer.Message{To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", typ, to, err)
	}
	log.Printf("notify-consumer: sent %s to %s (id=%s)", typ, to, receipt.ID)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
