// Package engine wires the reconciliation pipeline together: transport
// events flow through the coalescing dispatcher into the status registry,
// counters, and typing tracker, and the UI layer reads snapshots and
// subscribes to flushed updates.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/cache"
	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/counts"
	"github.com/weftlabs/weft/internal/directory"
	"github.com/weftlabs/weft/internal/dispatch"
	"github.com/weftlabs/weft/internal/sound"
	"github.com/weftlabs/weft/internal/status"
	"github.com/weftlabs/weft/internal/transport"
	"github.com/weftlabs/weft/internal/types"
	"github.com/weftlabs/weft/internal/typing"
)

// Options configures a new Engine.
type Options struct {
	Config    config.Config
	Transport transport.Transport
	Directory *directory.Client
	Cache     *cache.Cache // optional
	Sink      sound.Sink   // optional; defaults to silent
	Logger    *zap.Logger
}

// Engine is the reconciliation core's public face.
type Engine struct {
	cfg    config.Config
	logger *zap.Logger

	transport transport.Transport
	directory *directory.Client
	cache     *cache.Cache
	sink      sound.Sink

	registry   *status.Registry
	dispatcher *dispatch.Dispatcher
	counts     *counts.Aggregator
	typing     *typing.Tracker
	emitter    *typing.Emitter

	mu            sync.RWMutex
	conversations []directory.Conversation
	active        string
	invalidate    func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an engine. Start must be called before it does anything.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = sound.Silent{}
	}

	e := &Engine{
		cfg:       opts.Config,
		logger:    logger,
		transport: opts.Transport,
		directory: opts.Directory,
		cache:     opts.Cache,
		sink:      sink,
		ctx:       context.Background(),
	}

	e.registry = status.NewRegistry(
		status.Config{RenderBuffer: opts.Config.RenderBuffer()},
		sink,
		logger.Named("status"),
	)
	e.dispatcher = dispatch.New(
		dispatch.Config{Debounce: opts.Config.FlushDebounce(), MaxWait: opts.Config.FlushMaxWait()},
		logger.Named("dispatch"),
	)
	e.counts = counts.New(logger.Named("counts"))
	e.typing = typing.NewTracker(
		typing.TrackerConfig{Expiry: opts.Config.TypingExpiry()},
		sink,
		logger.Named("typing"),
	)
	e.emitter = typing.NewEmitter(
		typing.EmitterConfig{Throttle: opts.Config.TypingThrottle(), StopDebounce: opts.Config.TypingStop()},
		opts.Transport.SendTyping,
		logger.Named("typing"),
	)

	e.dispatcher.OnFlush(e.applyUpdate)
	e.registry.OnRender(func(string, types.StatusLevel) { e.notifyInvalidate() })
	e.typing.OnChange(func(string) { e.notifyInvalidate() })
	return e
}

// OnUpdate subscribes to flushed Updates. Subscribers run synchronously
// in registration order.
func (e *Engine) OnUpdate(fn func(*types.Update)) {
	e.dispatcher.Subscribe(fn)
}

// OnInvalidate registers a callback fired when snapshot state changed
// outside a flush: a render buffer elapsed or a typing session expired.
// The UI uses it to repaint.
func (e *Engine) OnInvalidate(fn func()) {
	e.mu.Lock()
	e.invalidate = fn
	e.mu.Unlock()
}

func (e *Engine) notifyInvalidate() {
	e.mu.RLock()
	fn := e.invalidate
	e.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Start loads cached and authoritative state, then begins consuming the
// transport. It returns once the background loops are running; a failed
// initial directory fetch degrades to live-only mode instead of failing.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.loadCache()
	if err := e.refresh(e.ctx, true); err != nil {
		e.logger.Warn("initial directory load failed; running live-only", zap.Error(err))
	}

	e.wg.Add(3)
	go e.eventLoop()
	go e.stateLoop()
	go e.refreshLoop()
	return nil
}

// Stop tears the engine down: transport closed, timers cancelled, one
// final flush delivered.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	_ = e.transport.Close()
	e.wg.Wait()
	e.emitter.Close()
	e.dispatcher.Close()
	e.typing.Close()
	e.registry.Close()
}

// applyUpdate runs inside the dispatcher's flush, before subscriber
// fan-out, so subscribers always observe post-merge state.
func (e *Engine) applyUpdate(u *types.Update) {
	for id, d := range u.StatusDeltas {
		e.registry.Apply(id, d)
	}
	e.counts.ApplyUpdate(u)
	for _, n := range u.Notifications {
		if !n.Read {
			e.sink.Toast(n)
		}
	}
}

// loadCache paints cached conversations and counters before the network
// is up.
func (e *Engine) loadCache() {
	if e.cache == nil {
		return
	}
	snap, ok, err := e.cache.Load()
	if err != nil {
		e.logger.Warn("snapshot cache unreadable", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	perConv := make(map[string]int, len(snap.Conversations))
	for _, conv := range snap.Conversations {
		perConv[conv.ID] = conv.UnreadCount
	}
	e.mu.Lock()
	e.conversations = snap.Conversations
	e.mu.Unlock()
	e.counts.Replace(perConv, snap.GlobalUnread)
	e.logger.Debug("painted from cache",
		zap.Int("conversations", len(snap.Conversations)),
		zap.Time("fetched_at", snap.FetchedAt))
}

func (e *Engine) refreshLoop() {
	defer e.wg.Done()
	interval := e.cfg.RefreshInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if err := e.refresh(e.ctx, false); err != nil {
				e.logger.Warn("periodic refresh failed", zap.Error(err))
			}
		}
	}
}
