package status

import (
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/types"
)

// ApplyResult reports what a delta did to a record.
type ApplyResult struct {
	Accepted bool
	Highest  types.StatusLevel
	// Crossed lists the transitions whose side effects fired for the
	// first time because of this delta.
	Crossed []types.Transition
}

// Apply runs one status delta through the full pipeline: ordering
// resolution, lattice merge, side-effect gate, render scheduling.
func (r *Registry) Apply(messageID string, d types.StatusDelta) ApplyResult {
	r.mu.Lock()
	rec := r.ensureLocked(messageID, d.ConversationID)

	// A Read without a sequence comes from a snapshot or a local
	// inference; it skips the ordering gate entirely because regressing
	// from Read is never valid.
	bypass := d.Status == types.StatusRead && d.Key.Sequence == 0

	if !bypass && !d.Key.After(rec.LastKey) {
		r.mu.Unlock()
		r.logger.Debug("stale status event ignored",
			zap.String("message", messageID),
			zap.Int64("seq", d.Key.Sequence),
			zap.Int64("last_seq", rec.LastKey.Sequence))
		return ApplyResult{Highest: rec.Highest}
	}

	// Once any event establishes Sent or higher, Pending is permanently
	// inadmissible for this record, even from a newer key.
	if d.Status == types.StatusPending && rec.Highest > types.StatusPending {
		r.mu.Unlock()
		r.logger.Debug("pending status inadmissible",
			zap.String("message", messageID),
			zap.Stringer("highest", rec.Highest))
		return ApplyResult{Highest: rec.Highest}
	}

	if !bypass {
		rec.LastKey = d.Key
	} else if d.Key.After(rec.LastKey) {
		rec.LastKey = d.Key
	}

	prev := rec.Highest
	rec.Highest = types.Merge(rec.Highest, d.Status)

	crossed := r.crossLocked(rec, prev)
	r.scheduleRenderLocked(rec)

	res := ApplyResult{Accepted: true, Highest: rec.Highest, Crossed: crossed}
	play := r.playableLocked(rec, crossed)
	r.mu.Unlock()

	for _, t := range play {
		r.sink.Play(t)
	}
	return res
}

// MarkSeen records that a user has read every tracked message in a
// conversation. Group conversations track readers per message; a message
// is Read once its reader set is non-empty. Returns the ids of messages
// that newly became Read.
func (r *Registry) MarkSeen(conversationID, userID string, key types.EventKey) []string {
	r.mu.Lock()
	var became []string
	var play []types.Transition
	for _, rec := range r.byConv[conversationID] {
		rec.readers[userID] = struct{}{}
		if rec.Highest >= types.StatusRead {
			continue
		}
		prev := rec.Highest
		rec.Highest = types.StatusRead
		if key.After(rec.LastKey) {
			rec.LastKey = key
		}
		crossed := r.crossLocked(rec, prev)
		r.scheduleRenderLocked(rec)
		became = append(became, rec.MessageID)
		play = append(play, r.playableLocked(rec, crossed)...)
	}
	r.mu.Unlock()

	for _, t := range play {
		r.sink.Play(t)
	}
	return became
}

// AddReader records a reader id for one message without the
// conversation-wide sweep of MarkSeen. Used when seeding from snapshots,
// where readers are listed per message.
func (r *Registry) AddReader(messageID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[messageID]
	if !ok {
		return
	}
	rec.readers[userID] = struct{}{}
}

// crossLocked fires the gate for each level crossed between prev and the
// record's new highest. Whichever event is first to establish a level owns
// its transition, which keeps a Delivered that overtook its Sent from
// swallowing BecameSent.
func (r *Registry) crossLocked(rec *Record, prev types.StatusLevel) []types.Transition {
	var crossed []types.Transition
	for level := prev + 1; level <= rec.Highest; level++ {
		t, ok := transitionFor(level)
		if !ok {
			continue
		}
		if rec.fireOnce(t) {
			crossed = append(crossed, t)
		}
	}
	return crossed
}

// playableLocked filters crossed transitions down to the ones that should
// actually sound: only the focused conversation is audible. Suppressed
// transitions stay consumed.
func (r *Registry) playableLocked(rec *Record, crossed []types.Transition) []types.Transition {
	if rec.ConversationID != r.active {
		return nil
	}
	return crossed
}

// scheduleRenderLocked advances the visible status. Read renders on the
// same tick; anything lower waits out the render buffer, and a newer value
// arriving before the timer fires replaces the queued one so intermediate
// states are never shown.
func (r *Registry) scheduleRenderLocked(rec *Record) {
	if rec.Highest <= rec.Rendered {
		return
	}
	if rec.Highest == types.StatusRead {
		rec.stopRenderTimer()
		rec.pendingRender = types.StatusRead
		rec.Rendered = types.StatusRead
		if r.onRender != nil {
			go r.onRender(rec.MessageID, types.StatusRead)
		}
		return
	}
	rec.pendingRender = rec.Highest
	rec.stopRenderTimer()
	id := rec.MessageID
	rec.renderTimer = newRenderTimer(r.cfg.RenderBuffer, func() {
		r.renderFired(id)
	})
}

// renderFired runs when a record's render buffer elapses.
func (r *Registry) renderFired(messageID string) {
	r.mu.Lock()
	rec, ok := r.records[messageID]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.renderTimer = nil
	if rec.pendingRender <= rec.Rendered {
		// A Read bypass already rendered something at least as high.
		r.mu.Unlock()
		return
	}
	rec.Rendered = rec.pendingRender
	level := rec.Rendered
	fn := r.onRender
	r.mu.Unlock()

	if fn != nil {
		fn(messageID, level)
	}
}
