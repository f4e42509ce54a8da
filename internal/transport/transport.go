// Package transport defines the carrier-facing boundary. The daemon never
// implements SMS delivery itself; it hands parts to a Transport and
// consumes its acknowledgement streams.
package transport

import "context"

// Ack is the carrier's sent acknowledgement for one part.
type Ack int

const (
	// AckSent means the part left the device.
	AckSent Ack = iota
	// AckFailed means the carrier refused the part.
	AckFailed
)

// Part is one transport-sized fragment of a logical send. Token correlates
// all parts of one send; Index/Total place the fragment in the sequence.
type Part struct {
	Token   string
	Address string
	Body    string
	Index   int
	Total   int
}

// DeliveryReport is the carrier's independent confirmation that a sent
// part reached the recipient device. It arrives on its own channel, often
// well after the sent ack.
type DeliveryReport struct {
	Token     string
	Index     int
	Delivered bool
}

// Inbound is a received message as handed over by the carrier.
type Inbound struct {
	Address   string
	Body      string
	Timestamp int64 // unix millis
}

// Transport dispatches parts and exposes the delivery-report stream.
// Send blocks until the carrier acks the part; a non-nil error means the
// part was never handed off at all (transport rejection), which is
// distinct from AckFailed.
type Transport interface {
	Send(ctx context.Context, p Part) (Ack, error)
	DeliveryReports() <-chan DeliveryReport
}

// Receiver is implemented by transports that can also produce inbound
// messages.
type Receiver interface {
	Inbound() <-chan Inbound
}
