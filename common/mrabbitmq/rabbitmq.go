package mrabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/opendogma/dogma/common/mlog"
)

// RabbitMQConnection is a hub for one AMQP connection, channel and durable
// queue. No component is wired to it: the mirroring scheduler (C7) hands
// tasks to its workers over an in-process channel.
type RabbitMQConnection struct {
	ConnectionStringSource string
	Queue                  string
	conn                   *amqp.Connection
	Channel                *amqp.Channel
	Connected              bool
	Logger                 mlog.Logger
}

// Connect keeps a singleton connection and channel open to rabbitmq.
func (rc *RabbitMQConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("connecting to rabbitmq...")

	conn, err := amqp.Dial(rc.ConnectionStringSource)
	if err != nil {
		rc.Logger.Errorf("failed to connect to rabbitmq: %v", err)
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		rc.Logger.Errorf("failed to open channel on rabbitmq: %v", err)

		return fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(rc.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		rc.Logger.Errorf("failed to declare queue %s: %v", rc.Queue, err)

		return fmt.Errorf("declaring queue %s: %w", rc.Queue, err)
	}

	rc.Logger.Info("connected to rabbitmq")

	rc.conn = conn
	rc.Channel = ch
	rc.Connected = true

	return nil
}

// GetChannel returns the rabbitmq channel, connecting lazily if necessary.
func (rc *RabbitMQConnection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	if !rc.Connected {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Channel, nil
}

// Close tears down the channel and connection.
func (rc *RabbitMQConnection) Close() error {
	if rc.Channel != nil {
		if err := rc.Channel.Close(); err != nil {
			return err
		}
	}

	if rc.conn != nil {
		return rc.conn.Close()
	}

	return nil
}
