// Package dispatch coalesces raw transport events into a single Update per
// flush and fans it out to every subscriber in the same tick, so separate
// UI surfaces never disagree with each other, even momentarily.
package dispatch

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/types"
)

// Subscriber receives every flushed Update. Subscribers run synchronously
// in registration order and must not call back into the dispatcher.
type Subscriber func(*types.Update)

// Config holds the dispatcher's flush timings.
type Config struct {
	// Debounce resets on every ingested event, coalescing bursts.
	Debounce time.Duration
	// MaxWait forces a flush after this much total wait even if events
	// keep arriving, bounding end-to-end latency under a continuous
	// stream.
	MaxWait time.Duration
}

// Dispatcher buffers events between flushes.
type Dispatcher struct {
	mu     sync.Mutex
	cfg    Config
	logger *zap.Logger

	subs []Subscriber
	// apply runs against the built Update before fan-out; the engine
	// hooks the registry and counter application in here so subscribers
	// observe post-merge state.
	apply func(*types.Update)

	pendingStatus map[string]types.StatusDelta
	notifications []types.Notification
	notifSeen     map[string]struct{}
	convDeltas    map[string]int
	globalDelta   int
	refreshNeeded bool

	debounce *time.Timer
	capTimer *time.Timer
	closed   bool
}

// New creates a dispatcher. Zero durations fall back to sane values.
func New(cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 75 * time.Millisecond
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{cfg: cfg, logger: logger}
	d.reset()
	return d
}

func (d *Dispatcher) reset() {
	d.pendingStatus = make(map[string]types.StatusDelta)
	d.notifications = nil
	d.notifSeen = make(map[string]struct{})
	d.convDeltas = make(map[string]int)
	d.globalDelta = 0
	d.refreshNeeded = false
}

// Subscribe registers a subscriber. Registration order is delivery order.
func (d *Dispatcher) Subscribe(fn Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
}

// OnFlush installs the pre-fan-out application hook.
func (d *Dispatcher) OnFlush(fn func(*types.Update)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apply = fn
}

// IngestStatus buffers a status delta. Within a batch only the entry with
// the highest ordering key per message survives; the full ordering gate
// still runs downstream, this merge is purely an optimization.
func (d *Dispatcher) IngestStatus(messageID string, delta types.StatusDelta) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if cur, ok := d.pendingStatus[messageID]; !ok || delta.Key.After(cur.Key) {
		d.pendingStatus[messageID] = delta
	}
	d.armLocked()
}

// IngestNotification buffers a notification, deduplicated by identity key.
func (d *Dispatcher) IngestNotification(n types.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	key := n.IdentityKey()
	if _, dup := d.notifSeen[key]; dup {
		d.logger.Debug("duplicate notification dropped", zap.String("key", key))
		return
	}
	d.notifSeen[key] = struct{}{}
	d.notifications = append(d.notifications, n)
	d.armLocked()
}

// AddCountDelta buffers a signed unread-count delta for a conversation.
// The global counter moves with it.
func (d *Dispatcher) AddCountDelta(conversationID string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || n == 0 {
		return
	}
	d.convDeltas[conversationID] += n
	d.globalDelta += n
	d.armLocked()
}

// MarkRefreshNeeded flags the next Update so subscribers know deltas may
// have gaps and an authoritative refetch is underway.
func (d *Dispatcher) MarkRefreshNeeded() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.refreshNeeded = true
	d.armLocked()
}

// armLocked resets the debounce timer and starts the hard cap on the first
// event of a batch.
func (d *Dispatcher) armLocked() {
	if d.debounce != nil {
		d.debounce.Stop()
	}
	d.debounce = time.AfterFunc(d.cfg.Debounce, d.Flush)
	if d.capTimer == nil {
		d.capTimer = time.AfterFunc(d.cfg.MaxWait, d.Flush)
	}
}

// Flush builds the pending batch into one Update and delivers it to every
// subscriber. Delivery happens under the dispatcher's lock: no event is
// processed until every subscriber has seen the batch.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}

func (d *Dispatcher) flushLocked() {
	if d.debounce != nil {
		d.debounce.Stop()
		d.debounce = nil
	}
	if d.capTimer != nil {
		d.capTimer.Stop()
		d.capTimer = nil
	}

	u := &types.Update{
		Notifications: d.notifications,
		StatusDeltas:  d.pendingStatus,
		ConvDeltas:    d.convDeltas,
		GlobalDelta:   d.globalDelta,
		RefreshNeeded: d.refreshNeeded,
		FlushedAt:     time.Now(),
	}
	d.reset()
	if u.Empty() {
		return
	}

	if d.apply != nil {
		d.apply(u)
	}
	for _, fn := range d.subs {
		fn(u)
	}
}

// Close flushes whatever is pending and stops the timers for good.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.flushLocked()
	d.closed = true
}
