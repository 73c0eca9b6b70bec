package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrNoActiveConversation is returned by intents that need a focused
// conversation.
var ErrNoActiveConversation = errors.New("engine: no active conversation")

// SetActiveConversation switches focus. The previous conversation's local
// typing session is closed out, the new one is optimistically marked read,
// and its statuses are reseeded from the directory in the background.
func (e *Engine) SetActiveConversation(conversationID string) {
	e.mu.Lock()
	prev := e.active
	e.active = conversationID
	e.mu.Unlock()

	if prev == conversationID {
		return
	}

	// Synthetic typing-stop for the conversation we are leaving.
	e.emitter.Stop()

	e.registry.SetActive(conversationID)
	e.typing.SetActive(conversationID)

	if prev != "" {
		e.counts.Unpin(prev)
	}
	if conversationID == "" {
		return
	}
	e.counts.MarkReadOptimistic(conversationID)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
		defer cancel()
		if err := e.directory.MarkConversationRead(ctx, conversationID); err != nil {
			e.logger.Warn("mark read failed", zap.String("conversation", conversationID), zap.Error(err))
		}
		if err := e.seedConversation(ctx, conversationID); err != nil {
			e.logger.Warn("reseed failed", zap.String("conversation", conversationID), zap.Error(err))
		}
		e.notifyInvalidate()
	}()
}

// CloseConversation tears down everything scoped to a conversation: its
// records, typing sessions, and their timers, plus the transport
// subscription. A closed conversation's stale timer callbacks can no
// longer touch live state.
func (e *Engine) CloseConversation(conversationID string) {
	e.mu.Lock()
	if e.active == conversationID {
		e.active = ""
	}
	e.mu.Unlock()

	e.emitter.Stop()
	e.registry.EvictConversation(conversationID)
	e.typing.EvictConversation(conversationID)
	e.counts.Unpin(conversationID)
	if err := e.transport.LeaveConversation(conversationID); err != nil {
		e.logger.Debug("leave failed", zap.String("conversation", conversationID), zap.Error(err))
	}
}

// StartTyping notes local input activity; the emitter throttles the
// outgoing signal.
func (e *Engine) StartTyping() {
	e.mu.RLock()
	active := e.active
	e.mu.RUnlock()
	if active == "" {
		return
	}
	e.emitter.Keystroke(active)
}

// StopTyping emits the stop signal immediately (send or blur).
func (e *Engine) StopTyping() {
	e.emitter.Stop()
}

// SendMessage persists a message to the active conversation. It returns a
// temporary id immediately; the record migrates to the real id once the
// directory call resolves, carrying its status and side-effect state.
func (e *Engine) SendMessage(body string) (string, error) {
	e.mu.RLock()
	active := e.active
	e.mu.RUnlock()
	if active == "" {
		return "", ErrNoActiveConversation
	}

	tempID := e.registry.NoteSend(active)
	e.emitter.Stop()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
		defer cancel()
		msg, err := e.directory.SendMessage(ctx, active, body)
		if err != nil {
			// The record stays pending; the next refresh or a live
			// event reconciles it.
			e.logger.Warn("send failed", zap.String("temp_id", tempID), zap.Error(err))
			return
		}
		e.registry.ResolveSend(tempID, msg.ID)
		e.notifyInvalidate()
	}()

	return tempID, nil
}
