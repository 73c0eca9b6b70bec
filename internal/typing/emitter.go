package typing

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EmitterConfig holds outgoing-signal tunables.
type EmitterConfig struct {
	// Throttle caps how often a true signal goes out while the user
	// types continuously.
	Throttle time.Duration
	// StopDebounce is how long after the last keystroke a false signal
	// goes out. Every keystroke resets it.
	StopDebounce time.Duration
}

// SendFunc delivers a typing intent to the transport.
type SendFunc func(conversationID string, typing bool) error

// Emitter converts raw keystrokes into a bounded stream of typing intents
// for the local user.
type Emitter struct {
	mu     sync.Mutex
	cfg    EmitterConfig
	send   SendFunc
	logger *zap.Logger

	conversationID string
	typing         bool
	lastTrue       time.Time
	stopTimer      *time.Timer
}

// NewEmitter creates an emitter bound to a send function.
func NewEmitter(cfg EmitterConfig, send SendFunc, logger *zap.Logger) *Emitter {
	if cfg.Throttle <= 0 {
		cfg.Throttle = 400 * time.Millisecond
	}
	if cfg.StopDebounce <= 0 {
		cfg.StopDebounce = 800 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{cfg: cfg, send: send, logger: logger}
}

// Keystroke notes input activity in a conversation. The first keystroke
// (and at most one per throttle window after it) emits a true signal; the
// stop debounce resets on every call.
func (e *Emitter) Keystroke(conversationID string) {
	e.mu.Lock()
	if e.typing && e.conversationID != conversationID {
		// Switched conversations mid-typing; close out the old one.
		e.emitStopLocked()
	}
	e.conversationID = conversationID

	now := time.Now()
	emit := !e.typing || now.Sub(e.lastTrue) >= e.cfg.Throttle
	if emit {
		e.typing = true
		e.lastTrue = now
	}

	if e.stopTimer != nil {
		e.stopTimer.Stop()
	}
	e.stopTimer = time.AfterFunc(e.cfg.StopDebounce, e.stopFired)
	e.mu.Unlock()

	if emit {
		if err := e.send(conversationID, true); err != nil {
			e.logger.Warn("typing signal failed", zap.Error(err))
		}
	}
}

// Stop emits a false signal immediately, e.g. on send or blur.
func (e *Emitter) Stop() {
	e.mu.Lock()
	e.emitStopLocked()
	e.mu.Unlock()
}

func (e *Emitter) stopFired() {
	e.mu.Lock()
	e.emitStopLocked()
	e.mu.Unlock()
}

// emitStopLocked sends the false signal if a session is open. The send
// happens under the lock: stop signals are rare and ordering with the next
// Keystroke matters more than contention.
func (e *Emitter) emitStopLocked() {
	if e.stopTimer != nil {
		e.stopTimer.Stop()
		e.stopTimer = nil
	}
	if !e.typing {
		return
	}
	e.typing = false
	if err := e.send(e.conversationID, false); err != nil {
		e.logger.Warn("typing stop signal failed", zap.Error(err))
	}
}

// Close tears down the debounce timer and closes any open session.
func (e *Emitter) Close() {
	e.Stop()
}
