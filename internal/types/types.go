package types

import "time"

// EventKind identifies the shape of an inbound transport event.
type EventKind string

const (
	EventSent         EventKind = "message:sent"
	EventDelivered    EventKind = "message:delivered"
	EventSeen         EventKind = "message:seen"
	EventTyping       EventKind = "typing"
	EventNotification EventKind = "notification"
	EventTouched      EventKind = "conversation:touched"
)

// StatusLevel is the delivery status of a message. Levels form a total
// order and only ever advance; see Merge.
type StatusLevel int

const (
	StatusPending StatusLevel = iota
	StatusSent
	StatusDelivered
	StatusRead
)

func (s StatusLevel) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	}
	return "unknown"
}

// Merge returns the higher of two status levels.
func Merge(a, b StatusLevel) StatusLevel {
	if b > a {
		return b
	}
	return a
}

// Transition identifies a status crossing that may carry a side effect.
type Transition string

const (
	BecameSent      Transition = "became_sent"
	BecameDelivered Transition = "became_delivered"
	BecameRead      Transition = "became_read"
	TypingStarted   Transition = "typing_started"
)

// Event is one inbound fact from the transport. Events are immutable once
// decoded; they are compared against stored state, never mutated.
type Event struct {
	Kind           EventKind
	ConversationID string
	MessageID      string
	UserID         string
	UserName       string
	IsTyping       bool
	Sequence       int64 // 0 means the event arrived without a sequence
	OriginTS       time.Time
	OriginNode     string
	Notification   *Notification
	ReceivedAt     time.Time
}

// Notification is a generic toast-style event.
type Notification struct {
	Type     string
	Actor    string
	Message  string
	Metadata map[string]string
	TS       time.Time
	Read     bool
}

// IdentityKey is the stable key used to deduplicate notifications within a
// dispatch batch.
func (n Notification) IdentityKey() string {
	return n.Type + "|" + n.Actor + "|" + n.TS.UTC().Format(time.RFC3339Nano)
}

// TypingUser is a snapshot entry for one currently-typing identity.
type TypingUser struct {
	UserID   string
	UserName string
}

// MessageStatus is a read-only snapshot of one message's visible state.
type MessageStatus struct {
	MessageID      string
	ConversationID string
	Sequence       int64
	Rendered       StatusLevel
	Highest        StatusLevel
}
