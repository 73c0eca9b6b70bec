// Package counts maintains per-conversation and global unread counters.
// Deltas from the dispatcher are a latency optimization; the directory
// service's fetched counts are ground truth and replace them wholesale.
package counts

import (
	"sync"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/types"
)

// Aggregator applies signed deltas clamped at zero and absorbs periodic
// authoritative refreshes.
type Aggregator struct {
	mu            sync.RWMutex
	conversations map[string]int
	global        int
	// optimisticZero marks conversations the user is actively viewing:
	// their counter is pinned at zero until a refresh confirms it, so a
	// stale non-zero refetch cannot resurrect a badge mid-read.
	optimisticZero map[string]struct{}
	logger         *zap.Logger
}

// New creates an empty aggregator.
func New(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		conversations:  make(map[string]int),
		optimisticZero: make(map[string]struct{}),
		logger:         logger,
	}
}

// ApplyUpdate folds a flushed Update's deltas into the counters.
func (a *Aggregator) ApplyUpdate(u *types.Update) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for conv, delta := range u.ConvDeltas {
		if _, pinned := a.optimisticZero[conv]; pinned && delta > 0 {
			// The user is looking at this conversation; new arrivals
			// are read on sight.
			continue
		}
		a.conversations[conv] = clamp(a.conversations[conv] + delta)
	}
	a.global = clamp(a.global + u.GlobalDelta)
	a.reconcileGlobalLocked()
}

// Replace swaps in an authoritative per-conversation count set, e.g. from
// a directory refetch. Pinned conversations keep their optimistic zero
// until the refresh agrees it is zero.
func (a *Aggregator) Replace(perConversation map[string]int, global int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := make(map[string]int, len(perConversation))
	suppressed := 0
	for conv, n := range perConversation {
		n = clamp(n)
		if _, pinned := a.optimisticZero[conv]; pinned {
			if n == 0 {
				delete(a.optimisticZero, conv)
			} else {
				a.logger.Debug("stale refresh ignored for viewed conversation",
					zap.String("conversation", conv), zap.Int("count", n))
				suppressed += n
				n = 0
			}
		}
		next[conv] = n
	}
	a.conversations = next
	a.global = clamp(global - suppressed)
	a.reconcileGlobalLocked()
}

// MarkReadOptimistic zeroes a conversation's counter immediately (the user
// opened it) and pins it until a refresh confirms.
func (a *Aggregator) MarkReadOptimistic(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.conversations[conversationID]
	a.conversations[conversationID] = 0
	a.global = clamp(a.global - prev)
	a.optimisticZero[conversationID] = struct{}{}
}

// Unpin releases the optimistic hold, e.g. when the conversation loses
// focus. The next refresh applies normally.
func (a *Aggregator) Unpin(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.optimisticZero, conversationID)
}

// Conversation returns the unread count for one conversation.
func (a *Aggregator) Conversation(conversationID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conversations[conversationID]
}

// Global returns the total unread count.
func (a *Aggregator) Global() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.global
}

// Snapshot returns a copy of every per-conversation counter.
func (a *Aggregator) Snapshot() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]int, len(a.conversations))
	for conv, n := range a.conversations {
		out[conv] = n
	}
	return out
}

// reconcileGlobalLocked keeps the global counter from drifting below the
// per-conversation sum when optimistic zeroes swallow deltas.
func (a *Aggregator) reconcileGlobalLocked() {
	sum := 0
	for _, n := range a.conversations {
		sum += n
	}
	if a.global < sum {
		a.global = sum
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
