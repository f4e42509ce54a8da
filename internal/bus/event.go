package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the daemon.
const (
	// KindInbound carries a *transport.Inbound fresh off the carrier.
	KindInbound = "transport.inbound"
	// KindReceived is published after an inbound message is stored.
	KindReceived = "message.received"
	// KindSendAck is published when a logical send completes.
	KindSendAck = "message.send_ack"
	// KindSendFailed is published when a logical send fails or partially fails.
	KindSendFailed = "message.send_failed"
	// KindDelivery is published when a delivery report updates a stored message.
	KindDelivery = "message.delivery"
	// KindStatusChanged is published by the daemon state machine.
	KindStatusChanged = "daemon.status_changed"
)
