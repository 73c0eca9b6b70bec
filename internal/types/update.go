package types

import "time"

// StatusDelta is the per-message entry of a dispatched batch: the status a
// message advanced to and the ordering key of the event that carried it.
type StatusDelta struct {
	ConversationID string
	Status         StatusLevel
	Key            EventKey
}

// Update is the single object flushed by the dispatcher per coalescing
// cycle. Every subscriber receives the same Update in the same tick and
// must treat it as read-only.
type Update struct {
	Notifications []Notification
	StatusDeltas  map[string]StatusDelta
	ConvDeltas    map[string]int
	GlobalDelta   int
	RefreshNeeded bool
	FlushedAt     time.Time
}

// Empty reports whether the update carries nothing worth flushing.
func (u *Update) Empty() bool {
	return len(u.Notifications) == 0 &&
		len(u.StatusDeltas) == 0 &&
		len(u.ConvDeltas) == 0 &&
		u.GlobalDelta == 0 &&
		!u.RefreshNeeded
}
