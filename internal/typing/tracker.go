// Package typing tracks who is typing in each conversation and throttles
// the local user's own typing signal so sustained typing costs O(1)
// network messages per half-second instead of one per keystroke.
package typing

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/sound"
	"github.com/weftlabs/weft/internal/types"
)

// TrackerConfig holds inbound-session tunables.
type TrackerConfig struct {
	// Expiry is how long a session survives without a renewing event.
	Expiry time.Duration
}

type session struct {
	user      types.TypingUser
	startedAt time.Time
	renewedAt time.Time
	expire    *time.Timer
}

// Tracker maintains per-conversation sets of currently-typing identities
// with inactivity expiry.
type Tracker struct {
	mu       sync.RWMutex
	cfg      TrackerConfig
	sessions map[string]map[string]*session // conversation -> user -> session
	active   string

	sink     sound.Sink
	logger   *zap.Logger
	onChange func(conversationID string)
}

// NewTracker creates an empty tracker.
func NewTracker(cfg TrackerConfig, sink sound.Sink, logger *zap.Logger) *Tracker {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 1400 * time.Millisecond
	}
	if sink == nil {
		sink = sound.Silent{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:      cfg,
		sessions: make(map[string]map[string]*session),
		sink:     sink,
		logger:   logger,
	}
}

// OnChange registers a callback fired whenever a conversation's typing set
// changes, including expiry-driven removals.
func (tr *Tracker) OnChange(fn func(conversationID string)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.onChange = fn
}

// SetActive marks the focused conversation; typing-started cues only sound
// there.
func (tr *Tracker) SetActive(conversationID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.active = conversationID
}

// Observe feeds one typing event into the tracker. A true signal creates
// or renews the session; a false signal tears it down immediately.
func (tr *Tracker) Observe(evt types.Event) {
	if evt.Kind != types.EventTyping || evt.ConversationID == "" || evt.UserID == "" {
		return
	}
	conv, user := evt.ConversationID, evt.UserID

	tr.mu.Lock()
	var started bool
	if evt.IsTyping {
		users := tr.sessions[conv]
		if users == nil {
			users = make(map[string]*session)
			tr.sessions[conv] = users
		}
		s, ok := users[user]
		now := time.Now()
		if !ok {
			s = &session{
				user:      types.TypingUser{UserID: user, UserName: evt.UserName},
				startedAt: now,
			}
			users[user] = s
			started = true
		}
		s.renewedAt = now
		if s.expire != nil {
			s.expire.Stop()
		}
		s.expire = time.AfterFunc(tr.cfg.Expiry, func() {
			tr.expire(conv, user)
		})
	} else {
		tr.removeLocked(conv, user)
	}
	audible := started && conv == tr.active
	fn := tr.onChange
	changed := started || !evt.IsTyping
	tr.mu.Unlock()

	if audible {
		tr.sink.Play(types.TypingStarted)
	}
	if changed && fn != nil {
		fn(conv)
	}
}

func (tr *Tracker) expire(conv, user string) {
	tr.mu.Lock()
	removed := tr.removeLocked(conv, user)
	fn := tr.onChange
	tr.mu.Unlock()
	if removed && fn != nil {
		fn(conv)
	}
}

func (tr *Tracker) removeLocked(conv, user string) bool {
	users := tr.sessions[conv]
	s, ok := users[user]
	if !ok {
		return false
	}
	if s.expire != nil {
		s.expire.Stop()
	}
	delete(users, user)
	if len(users) == 0 {
		delete(tr.sessions, conv)
	}
	return true
}

// TypingUsers returns a snapshot of who is typing in a conversation,
// ordered by session start.
func (tr *Tracker) TypingUsers(conversationID string) []types.TypingUser {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	users := tr.sessions[conversationID]
	sessions := make([]*session, 0, len(users))
	for _, s := range users {
		sessions = append(sessions, s)
	}
	// Oldest session first, user id as tie-breaker, for stable display.
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].startedAt.Equal(sessions[j].startedAt) {
			return sessions[i].startedAt.Before(sessions[j].startedAt)
		}
		return sessions[i].user.UserID < sessions[j].user.UserID
	})
	out := make([]types.TypingUser, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.user)
	}
	return out
}

// EvictConversation cancels every session timer owned by a conversation.
func (tr *Tracker) EvictConversation(conversationID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for user := range tr.sessions[conversationID] {
		tr.removeLocked(conversationID, user)
	}
}

// Close cancels all timers.
func (tr *Tracker) Close() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for conv, users := range tr.sessions {
		for user := range users {
			tr.removeLocked(conv, user)
		}
	}
}
