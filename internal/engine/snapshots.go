package engine

import (
	"github.com/weftlabs/weft/internal/directory"
	"github.com/weftlabs/weft/internal/types"
)

// ActiveConversation reports the currently focused conversation, empty
// when none is.
func (e *Engine) ActiveConversation() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// Conversations returns the last known conversation list, cached or
// fresh, most recently touched first.
func (e *Engine) Conversations() []directory.Conversation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]directory.Conversation, len(e.conversations))
	copy(out, e.conversations)
	return out
}

// RenderedStatus is the buffered, display-safe status for one message.
func (e *Engine) RenderedStatus(messageID string) (types.StatusLevel, bool) {
	return e.registry.RenderedStatus(messageID)
}

// ConversationStatuses lists rendered statuses for a conversation in
// sequence order.
func (e *Engine) ConversationStatuses(conversationID string) []types.MessageStatus {
	return e.registry.Statuses(conversationID)
}

// TypingUsers lists remote users currently typing in a conversation,
// oldest session first.
func (e *Engine) TypingUsers(conversationID string) []types.TypingUser {
	return e.typing.TypingUsers(conversationID)
}

// UnreadCount reports the unread counter for one conversation.
func (e *Engine) UnreadCount(conversationID string) int {
	return e.counts.Conversation(conversationID)
}

// GlobalUnread reports the app-wide unread counter.
func (e *Engine) GlobalUnread() int {
	return e.counts.Global()
}

// UnreadSnapshot returns all per-conversation counters at once.
func (e *Engine) UnreadSnapshot() map[string]int {
	return e.counts.Snapshot()
}
