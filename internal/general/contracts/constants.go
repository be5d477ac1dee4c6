package contracts

// Exchanges. Fanout consumers bind private server-named queues, so there are no
// shared queue names to agree on.
const (
	ExchangeStoplightFanout = "stoplight_fanout"
)

// Broadcast groups (in-process WebSocket fan-out)
const (
	BroadcastGroupDevices = "devices"
)
