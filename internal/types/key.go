package types

import (
	"strings"
	"time"
)

// EventKey is the ordering key for status events: sequence first, origin
// timestamp to break sequence ties, origin node id to break timestamp ties.
// Node ids compare as plain strings so that two server instances stamping
// identical clocks still order deterministically.
type EventKey struct {
	Sequence   int64
	OriginTS   time.Time
	OriginNode string
}

// Compare returns -1, 0, or 1 ordering k against other.
func (k EventKey) Compare(other EventKey) int {
	if k.Sequence != other.Sequence {
		if k.Sequence < other.Sequence {
			return -1
		}
		return 1
	}
	if !k.OriginTS.Equal(other.OriginTS) {
		if k.OriginTS.Before(other.OriginTS) {
			return -1
		}
		return 1
	}
	return strings.Compare(k.OriginNode, other.OriginNode)
}

// After reports whether k is strictly newer than other. Equal keys are not
// after each other; retransmitted duplicates lose this comparison.
func (k EventKey) After(other EventKey) bool {
	return k.Compare(other) > 0
}

// Key extracts the ordering key from a status event.
func (e Event) Key() EventKey {
	return EventKey{Sequence: e.Sequence, OriginTS: e.OriginTS, OriginNode: e.OriginNode}
}
