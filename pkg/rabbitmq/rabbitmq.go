package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dashgate/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// AuthEventsQueue is the durable queue receiving registration and login events.
const AuthEventsQueue = "auth_events"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  log.FieldLogger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL    string
	Logger log.FieldLogger
}

// NewClient connects to RabbitMQ, opens a channel and declares the auth events queue.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err = declareQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", AuthEventsQueue, err)
	}

	logger.WithField("queue", AuthEventsQueue).Info("RabbitMQ client connected")

	return &Client{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

func declareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		AuthEventsQueue, // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishAuthEvent publishes event as persistent JSON to the auth events queue.
func (c *Client) PublishAuthEvent(event models.AuthEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	body, err := EncodeAuthEvent(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",              // default exchange
		AuthEventsQueue, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

// ConsumeAuthEvents starts a goroutine that hands every decoded event to
// handler. Messages are acked when handler succeeds, requeued when it fails and
// dropped when they cannot be decoded.
func (c *Client) ConsumeAuthEvents(handler func(models.AuthEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := declareQueue(c.channel)
	if err != nil {
		return fmt.Errorf("failed to declare queue for consuming: %w", err)
	}

	msgs, err := c.channel.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			c.handleDelivery(msg, handler)
		}
	}()
	return nil
}

func (c *Client) handleDelivery(msg amqp.Delivery, handler func(models.AuthEvent) error) {
	logger := c.logger.WithField("delivery_tag", msg.DeliveryTag)

	event, err := DecodeAuthEvent(msg.Body)
	if err != nil {
		logger.WithError(err).Error("dropping undecodable auth event")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.WithError(nackErr).Error("error nacking message")
		}
		return
	}

	if err := handler(event); err != nil {
		logger.WithError(err).Warn("error processing auth event, requeueing")
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.WithError(nackErr).Error("error nacking message")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		logger.WithError(ackErr).Error("error acking message")
	}
}

// EncodeAuthEvent marshals an event for the wire.
func EncodeAuthEvent(event models.AuthEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth event: %w", err)
	}
	return body, nil
}

// DecodeAuthEvent unmarshals an event and checks it carries a type.
func DecodeAuthEvent(body []byte) (models.AuthEvent, error) {
	var event models.AuthEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal auth event: %w", err)
	}
	if event.Type == "" {
		return event, fmt.Errorf("auth event without type")
	}
	return event, nil
}

// LogAuthEvent is a consumer handler that writes each event to logger.
func LogAuthEvent(logger log.FieldLogger) func(models.AuthEvent) error {
	return func(event models.AuthEvent) error {
		logger.WithFields(log.Fields{
			"event":       event.Type,
			"username":    event.Username,
			"event_id":    event.ID,
			"occurred_at": event.OccurredAt.Format(time.RFC3339),
		}).Info("auth event")
		return nil
	}
}
