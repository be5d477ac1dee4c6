package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"stoplight/internal/general/contracts"
)

// StartDeviceBridge starts the background consumer that relays activation messages
// from the fanout exchange into the local devices broadcast group. This is what lets
// a device listener attached to one instance see events produced by sessions on
// another. The bridge consumes through its own private queue bound to the exchange,
// so every instance receives every message; messages this instance produced itself
// are dropped to avoid double delivery to local devices.
func (service *simulationService) StartDeviceBridge(ctx context.Context, prefetch int) {
	go func() {
		backoff := time.Second
		for {
			err := service.rabbitmq.ConsumeFanout(ctx, contracts.ExchangeStoplightFanout, "device-bridge-"+service.originID, prefetch,
				func(ctx context.Context, d amqp.Delivery) error {
					return service.relayActivation(ctx, d.Body)
				},
			)

			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if err != nil {
				service.logger.Error(ctx, "device_bridge_consume_failed", "Device bridge consumer stopped; retrying", err,
					map[string]any{"exchange": contracts.ExchangeStoplightFanout})
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}

// relayActivation forwards one broker activation message to the local devices
// group. Messages carrying this instance's own producer tag are dropped: the
// originating session already delivered them to local devices via the broadcaster.
func (service *simulationService) relayActivation(ctx context.Context, body []byte) error {
	var msg contracts.ActivationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		service.logger.Error(ctx, "mq_message_parse_failed", "Failed to parse activation message", err,
			map[string]any{"size": len(body)})
		return err
	}

	if msg.Producer == service.originID {
		return nil
	}

	payload, err := contracts.EncodeActivationEvent(msg.Event)
	if err != nil {
		return err
	}
	service.broadcaster.Publish(ctx, contracts.BroadcastGroupDevices, payload)

	service.logger.Debug(ctx, "activation_relayed", "Relayed remote activation event to local devices",
		map[string]any{
			"session_id":   msg.SessionID,
			"group_id":     msg.Event.GroupID,
			"stoplight_id": msg.Event.StoplightID,
		})
	return nil
}
