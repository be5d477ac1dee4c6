package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"stoplight/internal/general/contracts"
)

func declareTopology(ch *amqp.Channel) error {
	// Fanout exchange for activation events. No shared queues: every consumer binds
	// its own private queue (see Client.ConsumeFanout) so each instance receives its
	// own copy of every message instead of competing for deliveries.
	if err := ch.ExchangeDeclare(contracts.ExchangeStoplightFanout, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeStoplightFanout, err)
	}

	return nil
}
