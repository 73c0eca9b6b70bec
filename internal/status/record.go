package status

import (
	"time"

	"github.com/weftlabs/weft/internal/types"
)

// Record tracks one message's authoritative and visible status. Records are
// owned by the Registry; nothing outside this package mutates them.
type Record struct {
	MessageID      string
	ConversationID string

	// Highest is the authoritative status. It never decreases.
	Highest types.StatusLevel
	// LastKey is the ordering key of the newest accepted event.
	LastKey types.EventKey

	// Rendered trails Highest by the render buffer so short-lived
	// intermediate states never reach the screen. Read renders
	// immediately.
	Rendered      types.StatusLevel
	pendingRender types.StatusLevel
	renderTimer   *time.Timer

	readers map[string]struct{}
	fired   map[types.Transition]bool
}

func newRecord(messageID, conversationID string) *Record {
	return &Record{
		MessageID:      messageID,
		ConversationID: conversationID,
		Highest:        types.StatusPending,
		Rendered:       types.StatusPending,
		readers:        make(map[string]struct{}),
		fired:          make(map[types.Transition]bool),
	}
}

// Readers returns the ids that have read this message.
func (r *Record) Readers() []string {
	out := make([]string, 0, len(r.readers))
	for id := range r.readers {
		out = append(out, id)
	}
	return out
}

func (r *Record) stopRenderTimer() {
	if r.renderTimer != nil {
		r.renderTimer.Stop()
		r.renderTimer = nil
	}
}

// fireOnce marks a transition as fired and reports whether this call was
// the first. The caller decides whether the side effect is audible; the
// flag is set either way so a suppressed effect is never owed later.
func (r *Record) fireOnce(t types.Transition) bool {
	if r.fired[t] {
		return false
	}
	r.fired[t] = true
	return true
}

// transitionFor maps a status level to its crossing side effect.
func transitionFor(level types.StatusLevel) (types.Transition, bool) {
	switch level {
	case types.StatusSent:
		return types.BecameSent, true
	case types.StatusDelivered:
		return types.BecameDelivered, true
	case types.StatusRead:
		return types.BecameRead, true
	}
	return "", false
}
