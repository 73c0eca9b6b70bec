package engine

import (
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/transport"
	"github.com/weftlabs/weft/internal/types"
)

// eventLoop drains the transport until it closes. Events are handled
// strictly in arrival order; ordering across origins is resolved by the
// status registry, not here.
func (e *Engine) eventLoop() {
	defer e.wg.Done()
	for evt := range e.transport.Events() {
		e.handleEvent(evt)
	}
}

func (e *Engine) handleEvent(evt types.Event) {
	switch evt.Kind {
	case types.EventSent, types.EventDelivered:
		level, _ := transport.StatusFor(evt.Kind)
		e.dispatcher.IngestStatus(evt.MessageID, types.StatusDelta{
			ConversationID: evt.ConversationID,
			Status:         level,
			Key:            evt.Key(),
		})

	case types.EventSeen:
		if evt.UserID == e.cfg.UserID {
			// Echo of our own read receipt; counters already handled
			// optimistically when the conversation was opened.
			return
		}
		became := e.registry.MarkSeen(evt.ConversationID, evt.UserID, evt.Key())
		for _, id := range became {
			e.dispatcher.IngestStatus(id, types.StatusDelta{
				ConversationID: evt.ConversationID,
				Status:         types.StatusRead,
				Key:            evt.Key(),
			})
		}

	case types.EventTyping:
		if evt.UserID == e.cfg.UserID {
			return
		}
		e.typing.Observe(evt)

	case types.EventNotification:
		if evt.Notification != nil {
			e.dispatcher.IngestNotification(*evt.Notification)
		}

	case types.EventTouched:
		e.handleTouched(evt)

	default:
		e.logger.Warn("unhandled event kind", zap.String("kind", string(evt.Kind)))
	}
}

// handleTouched processes a new-message marker: acknowledge receipt so the
// sender sees Delivered, and bump the unread counter unless the user is
// looking right at the conversation.
func (e *Engine) handleTouched(evt types.Event) {
	if evt.MessageID != "" && evt.UserID != e.cfg.UserID {
		if err := e.transport.AcknowledgeReceipt(evt.ConversationID, evt.MessageID); err != nil {
			e.logger.Debug("receipt ack failed", zap.String("message", evt.MessageID), zap.Error(err))
		}
	}

	e.mu.RLock()
	active := e.active
	e.mu.RUnlock()

	if evt.ConversationID == active || evt.UserID == e.cfg.UserID {
		return
	}
	e.dispatcher.AddCountDelta(evt.ConversationID, 1)
}

// stateLoop reacts to transport connectivity changes. Gaps are filled by
// the directory refresh path, never by replaying missed events.
func (e *Engine) stateLoop() {
	defer e.wg.Done()
	everConnected := false
	for {
		select {
		case <-e.ctx.Done():
			return
		case st, ok := <-e.transport.States():
			if !ok {
				return
			}
			switch st {
			case transport.StateConnected:
				if everConnected {
					e.logger.Info("transport reconnected; reconciling")
					e.dispatcher.MarkRefreshNeeded()
					if err := e.refresh(e.ctx, true); err != nil {
						e.logger.Warn("post-reconnect refresh failed", zap.Error(err))
					}
				}
				everConnected = true
				e.joinAll()
			case transport.StateDisconnected:
				e.logger.Warn("transport disconnected; running on directory refreshes")
			}
		}
	}
}

func (e *Engine) joinAll() {
	e.mu.RLock()
	convs := make([]string, 0, len(e.conversations))
	for _, c := range e.conversations {
		convs = append(convs, c.ID)
	}
	e.mu.RUnlock()
	for _, id := range convs {
		if err := e.transport.JoinConversation(id); err != nil {
			e.logger.Debug("join failed", zap.String("conversation", id), zap.Error(err))
		}
	}
}
