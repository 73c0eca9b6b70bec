// Package status is the reconciliation core for per-message delivery
// state: it decides which events are newer than what has already been
// applied, merges accepted statuses monotonically, delays what the UI sees
// through a short render buffer, and guards transition side effects so
// each fires at most once.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/sound"
	"github.com/weftlabs/weft/internal/types"
)

// Config holds the registry's tunables.
type Config struct {
	// RenderBuffer is how long a non-terminal status advance is held
	// before it becomes visible.
	RenderBuffer time.Duration
}

// Registry owns every MessageStatusRecord. All reads and writes go through
// its mutex; timer callbacks re-enter through the same lock.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	records map[string]*Record
	byConv  map[string]map[string]*Record
	active  string

	sink     sound.Sink
	logger   *zap.Logger
	onRender func(messageID string, level types.StatusLevel)
}

// NewRegistry creates an empty registry. A nil sink or logger is replaced
// with a silent one.
func NewRegistry(cfg Config, sink sound.Sink, logger *zap.Logger) *Registry {
	if sink == nil {
		sink = sound.Silent{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		records: make(map[string]*Record),
		byConv:  make(map[string]map[string]*Record),
		sink:    sink,
		logger:  logger,
	}
}

// OnRender registers a callback invoked after a buffered status becomes
// visible. Used by the UI layer to repaint between dispatch flushes.
func (r *Registry) OnRender(fn func(messageID string, level types.StatusLevel)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRender = fn
}

// SetActive marks the conversation currently focused by the user. Side
// effects for other conversations are suppressed (but still consumed).
func (r *Registry) SetActive(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = conversationID
}

func (r *Registry) ensureLocked(messageID, conversationID string) *Record {
	rec, ok := r.records[messageID]
	if ok {
		return rec
	}
	rec = newRecord(messageID, conversationID)
	r.records[messageID] = rec
	conv := r.byConv[conversationID]
	if conv == nil {
		conv = make(map[string]*Record)
		r.byConv[conversationID] = conv
	}
	conv[messageID] = rec
	return rec
}

// RenderedStatus returns the status the UI should display for a message.
func (r *Registry) RenderedStatus(messageID string) (types.StatusLevel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[messageID]
	if !ok {
		return types.StatusPending, false
	}
	return rec.Rendered, true
}

// HighestStatus returns the authoritative status for a message.
func (r *Registry) HighestStatus(messageID string) (types.StatusLevel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[messageID]
	if !ok {
		return types.StatusPending, false
	}
	return rec.Highest, true
}

// Statuses returns snapshots for every tracked message in a conversation,
// ordered by sequence then message id.
func (r *Registry) Statuses(conversationID string) []types.MessageStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv := r.byConv[conversationID]
	out := make([]types.MessageStatus, 0, len(conv))
	for _, rec := range conv {
		out = append(out, types.MessageStatus{
			MessageID:      rec.MessageID,
			ConversationID: rec.ConversationID,
			Sequence:       rec.LastKey.Sequence,
			Rendered:       rec.Rendered,
			Highest:        rec.Highest,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out
}

// NoteSend creates a synthetic pending record for a message whose persist
// call has not resolved yet, and returns its temporary id.
func (r *Registry) NoteSend(conversationID string) string {
	tempID := "tmp-" + uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(tempID, conversationID)
	return tempID
}

// ResolveSend carries a temporary record's state over to the real message
// id once the persist call resolves. State is merged, never overwritten:
// events for the real id may already have arrived and won their races.
func (r *Registry) ResolveSend(tempID, realID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	temp, ok := r.records[tempID]
	if !ok {
		return
	}
	real := r.ensureLocked(realID, temp.ConversationID)
	real.Highest = types.Merge(real.Highest, temp.Highest)
	if real.Rendered < temp.Rendered {
		real.Rendered = temp.Rendered
	}
	if temp.LastKey.After(real.LastKey) {
		real.LastKey = temp.LastKey
	}
	for t := range temp.fired {
		real.fired[t] = true
	}
	for id := range temp.readers {
		real.readers[id] = struct{}{}
	}
	temp.stopRenderTimer()
	delete(r.records, tempID)
	if conv := r.byConv[temp.ConversationID]; conv != nil {
		delete(conv, tempID)
	}
}

// EvictConversation tears down every record owned by a conversation,
// cancelling their timers so stale callbacks cannot touch dead state.
func (r *Registry) EvictConversation(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.byConv[conversationID] {
		rec.stopRenderTimer()
		delete(r.records, id)
	}
	delete(r.byConv, conversationID)
}

// Close cancels every outstanding render timer.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		rec.stopRenderTimer()
	}
}
