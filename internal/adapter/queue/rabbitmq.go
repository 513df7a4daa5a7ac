package queue

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	commandExchange = "csms.commands"
	maxPriority     = 10
)

// RabbitMQQueue implements the MessageQueue interface using RabbitMQ
type RabbitMQQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	mu      sync.RWMutex
	log     *zap.Logger
}

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(url string, log *zap.Logger) (MessageQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:    conn,
		channel: ch,
		url:     url,
		log:     log,
	}

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ", zap.String("url", url))
	return q, nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	return q.publish(subject, data, amqp.Transient, 0)
}

// PublishPersistent delivers through the durable command exchange with a
// priority hint, so queued remote commands survive a broker restart.
func (q *RabbitMQQueue) PublishPersistent(subject string, data []byte, priority uint8) error {
	if priority > maxPriority {
		priority = maxPriority
	}
	return q.publish(subject, data, amqp.Persistent, priority)
}

func (q *RabbitMQQueue) publish(subject string, data []byte, deliveryMode, priority uint8) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.ExchangeDeclare(commandExchange, "direct", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	err = q.channel.Publish(
		commandExchange, subject, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: deliveryMode,
			Priority:     priority,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	return nil
}

func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.ExchangeDeclare(commandExchange, "direct", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	queue, err := q.channel.QueueDeclare(subject, true, false, false, false, amqp.Table{
		"x-max-priority": int32(maxPriority),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	err = q.channel.QueueBind(queue.Name, subject, commandExchange, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	msgs, err := q.channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Error("Error processing RabbitMQ message",
					zap.String("routing_key", subject),
					zap.Error(err),
				)
			}
		}
	}()

	q.log.Info("Subscribed to RabbitMQ routing key", zap.String("routing_key", subject))
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func (q *RabbitMQQueue) monitorConnection() {
	for {
		reason, ok := <-q.conn.NotifyClose(make(chan *amqp.Error))
		if !ok {
			return
		}
		q.log.Warn("RabbitMQ connection lost, reconnecting...", zap.String("reason", reason.Reason))

		for {
			time.Sleep(5 * time.Second)
			conn, err := amqp.Dial(q.url)
			if err != nil {
				q.log.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
				continue
			}
			ch, err := conn.Channel()
			if err != nil {
				conn.Close()
				continue
			}

			q.mu.Lock()
			q.conn = conn
			q.channel = ch
			q.mu.Unlock()

			q.log.Info("Successfully reconnected to RabbitMQ")
			break
		}
	}
}
