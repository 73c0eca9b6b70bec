package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/weftlabs/weft/internal/types"
)

// frame is the wire shape of one inbound event.
type frame struct {
	Kind           string            `json:"kind"`
	ConversationID string            `json:"conversation_id"`
	MessageID      string            `json:"message_id"`
	UserID         string            `json:"user_id"`
	UserName       string            `json:"user_name"`
	IsTyping       *bool             `json:"is_typing"`
	Sequence       int64             `json:"seq"`
	TS             int64             `json:"ts"` // unix millis at origin
	NodeID         string            `json:"node_id"`
	NotifType      string            `json:"type"`
	Actor          string            `json:"actor"`
	Metadata       map[string]string `json:"metadata"`
	Message        string            `json:"message"`
	Read           bool              `json:"read"`
}

// InvalidEventError reports a frame that failed validation. Invalid frames
// are logged and dropped at the ingestion boundary, never propagated.
type InvalidEventError struct {
	Kind   string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid %q event: %s", e.Kind, e.Reason)
}

func invalid(kind, reason string) error {
	return &InvalidEventError{Kind: kind, Reason: reason}
}

// DecodeEvent validates and converts one wire frame. The returned error is
// an *InvalidEventError for malformed frames and a plain error for
// undecodable bytes.
func DecodeEvent(data []byte, receivedAt time.Time) (types.Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return types.Event{}, fmt.Errorf("decode frame: %w", err)
	}

	evt := types.Event{
		Kind:           types.EventKind(f.Kind),
		ConversationID: f.ConversationID,
		MessageID:      f.MessageID,
		UserID:         f.UserID,
		UserName:       f.UserName,
		Sequence:       f.Sequence,
		OriginNode:     f.NodeID,
		ReceivedAt:     receivedAt,
	}
	if f.TS != 0 {
		evt.OriginTS = time.UnixMilli(f.TS)
	}

	switch evt.Kind {
	case types.EventSent, types.EventDelivered:
		if f.ConversationID == "" || f.MessageID == "" {
			return types.Event{}, invalid(f.Kind, "missing conversation_id or message_id")
		}
	case types.EventSeen:
		if f.ConversationID == "" || f.UserID == "" {
			return types.Event{}, invalid(f.Kind, "missing conversation_id or user_id")
		}
	case types.EventTyping:
		if f.ConversationID == "" || f.UserID == "" {
			return types.Event{}, invalid(f.Kind, "missing conversation_id or user_id")
		}
		if f.IsTyping == nil {
			return types.Event{}, invalid(f.Kind, "missing is_typing")
		}
		evt.IsTyping = *f.IsTyping
	case types.EventTouched:
		if f.ConversationID == "" {
			return types.Event{}, invalid(f.Kind, "missing conversation_id")
		}
	case types.EventNotification:
		if f.NotifType == "" {
			return types.Event{}, invalid(f.Kind, "missing type")
		}
		evt.Notification = &types.Notification{
			Type:     f.NotifType,
			Actor:    f.Actor,
			Message:  f.Message,
			Metadata: f.Metadata,
			TS:       evt.OriginTS,
			Read:     f.Read,
		}
	default:
		return types.Event{}, invalid(f.Kind, "unknown kind")
	}

	return evt, nil
}

// StatusFor maps a status event kind to its lattice level.
func StatusFor(kind types.EventKind) (types.StatusLevel, bool) {
	switch kind {
	case types.EventSent:
		return types.StatusSent, true
	case types.EventDelivered:
		return types.StatusDelivered, true
	case types.EventSeen:
		return types.StatusRead, true
	}
	return types.StatusPending, false
}

// intent is the wire shape of one outgoing intent.
type intent struct {
	Kind           string `json:"kind"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	IsTyping       *bool  `json:"is_typing,omitempty"`
}
