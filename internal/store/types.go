package store

// Direction classifies a message row the way the SMS provider does.
type Direction string

const (
	// Inbound is a received message.
	Inbound Direction = "inbound"
	// Sent is an outgoing message acknowledged by the carrier.
	Sent Direction = "sent"
	// Draft is an unsent composed message.
	Draft Direction = "draft"
	// Outbox is an outgoing message waiting for a carrier ack.
	Outbox Direction = "outbox"
	// SendFailed is an outgoing message the carrier rejected.
	SendFailed Direction = "failed"
)

// DeliveryStatus is the carrier-reported delivery state of an outgoing
// message, independent of Direction: a Sent message may still be pending
// delivery to the recipient device.
type DeliveryStatus string

const (
	DeliveryNone      DeliveryStatus = "none"
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Message is one row of the message store.
type Message struct {
	ID             int64
	ThreadID       int64
	Address        string
	Body           string
	Timestamp      int64 // unix millis
	Direction      Direction
	Read           bool
	DeliveryStatus DeliveryStatus
}

// Contact is a directory entry, keyed by normalized phone number.
type Contact struct {
	ID       int64
	Name     string
	Phone    string
	PhotoRef string
}

// ConversationSummary is the store's per-thread rollup: the latest message
// body and the total message count. Everything else a conversation needs
// is derived per load.
type ConversationSummary struct {
	ThreadID     int64
	Snippet      string
	MessageCount int
}
