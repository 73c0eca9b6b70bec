// Package sound plays the audible and toast side effects tied to status
// transitions. The at-most-once guarantee lives upstream in the status
// gate; sinks here just emit.
package sound

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/types"
)

// Sink receives gated side effects.
type Sink interface {
	Play(t types.Transition)
	Toast(n types.Notification)
}

// Beeper plays transition cues through the OS beep device and raises
// system notifications for toasts.
type Beeper struct {
	logger *zap.Logger
}

// NewBeeper creates a Beeper. A nil logger is replaced with a nop logger.
func NewBeeper(logger *zap.Logger) *Beeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Beeper{logger: logger}
}

// Cue frequencies, loosely rising with how final the transition is.
const (
	freqSent      = 440.0
	freqDelivered = 523.25
	freqRead      = 659.25
	freqTyping    = 392.0
	beepMillis    = 90
)

func (b *Beeper) Play(t types.Transition) {
	freq := freqSent
	switch t {
	case types.BecameDelivered:
		freq = freqDelivered
	case types.BecameRead:
		freq = freqRead
	case types.TypingStarted:
		freq = freqTyping
	}
	if err := beeep.Beep(freq, beepMillis); err != nil {
		b.logger.Debug("beep failed", zap.String("transition", string(t)), zap.Error(err))
	}
}

func (b *Beeper) Toast(n types.Notification) {
	title := n.Type
	if n.Actor != "" {
		title = n.Actor + " · " + n.Type
	}
	if err := beeep.Notify(title, n.Message, ""); err != nil {
		b.logger.Debug("notify failed", zap.String("type", n.Type), zap.Error(err))
	}
}

// Silent discards everything. Used in tests and headless runs.
type Silent struct{}

func (Silent) Play(types.Transition)     {}
func (Silent) Toast(types.Notification) {}

// Recorder captures side effects for assertions in tests.
type Recorder struct {
	Played  []types.Transition
	Toasted []types.Notification
}

func (r *Recorder) Play(t types.Transition)    { r.Played = append(r.Played, t) }
func (r *Recorder) Toast(n types.Notification) { r.Toasted = append(r.Toasted, n) }
