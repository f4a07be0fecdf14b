package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// AMQPPublisher publishes BookingDecidedEvents to RabbitMQ.  Decisions are
// rare, so each publish dials its own connection rather than holding one
// open across broker restarts.
type AMQPPublisher struct {
    url string
    log *zap.Logger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
    return &AMQPPublisher{url: url, log: log}
}

// PublishBookingDecided sends event to the booking.decided queue as a
// persistent message.  Errors are returned for the caller to log; a
// decision never depends on the publish succeeding.
func (p *AMQPPublisher) PublishBookingDecided(ctx context.Context, event BookingDecidedEvent) error {
    conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout(ctx))})
    if err != nil {
        return fmt.Errorf("rabbitmq dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := declare(ch); err != nil {
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        MessageId:    event.BookingID + ":" + event.Status,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", BookingDecidedQueue, false, false, pub); err != nil {
        return fmt.Errorf("rabbitmq publish: %w", err)
    }
    p.log.Debug("booking decision published", zap.String("booking_id", event.BookingID), zap.String("status", event.Status))
    return nil
}

// maxDialTimeout caps the broker dial; an earlier ctx deadline wins.
const maxDialTimeout = 5 * time.Second

func dialTimeout(ctx context.Context) time.Duration {
    if dl, ok := ctx.Deadline(); ok {
        if left := time.Until(dl); left < maxDialTimeout {
            return max(left, time.Millisecond)
        }
    }
    return maxDialTimeout
}

// declare makes sure the durable queue exists (idempotent).
func declare(ch *amqp.Channel) error {
    if _, err := ch.QueueDeclare(
        BookingDecidedQueue, // name
        true,                // durable
        false,               // autoDelete
        false,               // exclusive
        false,               // noWait
        nil,                 // args
    ); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    return nil
}
