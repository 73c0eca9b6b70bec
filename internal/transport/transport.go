// Package transport abstracts the bidirectional event channel between the
// reconciliation core and the backend: typed inbound events out, user
// intents in. The concrete implementation speaks JSON frames over a
// websocket.
package transport

import "github.com/weftlabs/weft/internal/types"

// ConnState describes the transport's connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
)

// Transport delivers decoded events and accepts outgoing intents. Events
// that fail validation are dropped inside the implementation and never
// reach the Events channel.
type Transport interface {
	// Events yields validated inbound events in arrival order. Arrival
	// order is not assumed to be causal order; ordering is resolved
	// downstream.
	Events() <-chan types.Event
	// States yields connection state changes, one per transition.
	States() <-chan ConnState

	JoinConversation(id string) error
	LeaveConversation(id string) error
	SendTyping(conversationID string, typing bool) error
	AcknowledgeReceipt(conversationID, messageID string) error

	Close() error
}
