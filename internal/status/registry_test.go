package status

import (
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/sound"
	"github.com/weftlabs/weft/internal/types"
)

func newTestRegistry(t *testing.T, buffer time.Duration) (*Registry, *sound.Recorder) {
	t.Helper()
	rec := &sound.Recorder{}
	r := NewRegistry(Config{RenderBuffer: buffer}, rec, nil)
	r.SetActive("conv-1")
	t.Cleanup(r.Close)
	return r, rec
}

func delta(status types.StatusLevel, seq int64) types.StatusDelta {
	return types.StatusDelta{
		ConversationID: "conv-1",
		Status:         status,
		Key:            types.EventKey{Sequence: seq, OriginTS: time.Unix(1000+seq, 0), OriginNode: "srv-1"},
	}
}

func waitForRendered(t *testing.T, r *Registry, messageID string, want types.StatusLevel) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := r.RenderedStatus(messageID); got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := r.RenderedStatus(messageID)
	t.Fatalf("rendered status = %v, want %v", got, want)
}

func TestStaleSequenceRejectedAfterRead(t *testing.T) {
	r, _ := newTestRegistry(t, time.Millisecond)

	r.Apply("m1", delta(types.StatusSent, 1))
	r.Apply("m1", delta(types.StatusRead, 3))
	res := r.Apply("m1", delta(types.StatusDelivered, 2))

	if res.Accepted {
		t.Errorf("seq=2 after seq=3 should be rejected as stale")
	}
	if got, _ := r.HighestStatus("m1"); got != types.StatusRead {
		t.Errorf("highest = %v, want read", got)
	}
}

func TestHighestStatusMonotonicUnderPermutations(t *testing.T) {
	events := []types.StatusDelta{
		delta(types.StatusSent, 1),
		delta(types.StatusDelivered, 2),
		delta(types.StatusRead, 3),
		delta(types.StatusSent, 1), // duplicate
	}

	perms := permute(events)
	for i, order := range perms {
		r, _ := newTestRegistry(t, time.Millisecond)
		prev := types.StatusPending
		for _, d := range order {
			r.Apply("m1", d)
			got, _ := r.HighestStatus("m1")
			if got < prev {
				t.Fatalf("perm %d: highest regressed from %v to %v", i, prev, got)
			}
			prev = got
			rendered, _ := r.RenderedStatus("m1")
			if rendered > got {
				t.Fatalf("perm %d: rendered %v exceeds highest %v", i, rendered, got)
			}
		}
		if prev != types.StatusRead {
			t.Fatalf("perm %d: final highest = %v, want read", i, prev)
		}
		r.Close()
	}
}

func permute(in []types.StatusDelta) [][]types.StatusDelta {
	if len(in) <= 1 {
		return [][]types.StatusDelta{append([]types.StatusDelta(nil), in...)}
	}
	var out [][]types.StatusDelta
	for i := range in {
		rest := make([]types.StatusDelta, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permute(rest) {
			out = append(out, append([]types.StatusDelta{in[i]}, p...))
		}
	}
	return out
}

func TestDeliveredBeforeSentFiresBothTransitionsOnce(t *testing.T) {
	r, rec := newTestRegistry(t, time.Millisecond)

	// Delivered(seq=2) overtakes Sent(seq=1) in the network.
	r.Apply("m1", delta(types.StatusDelivered, 2))
	r.Apply("m1", delta(types.StatusSent, 1))

	if got, _ := r.HighestStatus("m1"); got != types.StatusDelivered {
		t.Errorf("highest = %v, want delivered", got)
	}
	if n := countTransition(rec.Played, types.BecameSent); n != 1 {
		t.Errorf("BecameSent fired %d times, want 1", n)
	}
	if n := countTransition(rec.Played, types.BecameDelivered); n != 1 {
		t.Errorf("BecameDelivered fired %d times, want 1", n)
	}
}

func TestSideEffectAtMostOnceUnderRedelivery(t *testing.T) {
	r, rec := newTestRegistry(t, time.Millisecond)

	for i := 0; i < 5; i++ {
		r.Apply("m1", delta(types.StatusDelivered, 2))
		r.Apply("m1", delta(types.StatusSent, 1))
	}

	for _, tr := range []types.Transition{types.BecameSent, types.BecameDelivered} {
		if n := countTransition(rec.Played, tr); n != 1 {
			t.Errorf("%s fired %d times, want 1", tr, n)
		}
	}
}

func countTransition(got []types.Transition, want types.Transition) int {
	n := 0
	for _, t := range got {
		if t == want {
			n++
		}
	}
	return n
}

func TestUnfocusedConversationSuppressesSoundButConsumesIt(t *testing.T) {
	r, rec := newTestRegistry(t, time.Millisecond)
	r.SetActive("conv-other")

	r.Apply("m1", delta(types.StatusSent, 1))
	if len(rec.Played) != 0 {
		t.Fatalf("unfocused conversation played %v", rec.Played)
	}

	// Focusing later must not replay the suppressed effect.
	r.SetActive("conv-1")
	r.Apply("m1", delta(types.StatusSent, 1)) // duplicate, rejected anyway
	r.Apply("m1", delta(types.StatusDelivered, 2))
	if n := countTransition(rec.Played, types.BecameSent); n != 0 {
		t.Errorf("suppressed BecameSent was owed retroactively")
	}
	if n := countTransition(rec.Played, types.BecameDelivered); n != 1 {
		t.Errorf("BecameDelivered fired %d times, want 1", n)
	}
}

func TestRenderBufferHoldsIntermediateStates(t *testing.T) {
	r, _ := newTestRegistry(t, 80*time.Millisecond)

	r.Apply("m1", delta(types.StatusSent, 1))
	if got, _ := r.RenderedStatus("m1"); got != types.StatusPending {
		t.Fatalf("rendered = %v before buffer elapsed, want pending", got)
	}

	// Delivered arrives inside the buffer window; Sent must never render.
	r.Apply("m1", delta(types.StatusDelivered, 2))
	waitForRendered(t, r, "m1", types.StatusDelivered)
}

func TestReadBypassesRenderBuffer(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour) // buffer long enough to never fire

	r.Apply("m1", delta(types.StatusSent, 1))
	r.Apply("m1", delta(types.StatusRead, 2))

	if got, _ := r.RenderedStatus("m1"); got != types.StatusRead {
		t.Errorf("read must render on the same tick, got %v", got)
	}
}

func TestSnapshotReadWithoutSequenceBypassesOrdering(t *testing.T) {
	r, _ := newTestRegistry(t, time.Millisecond)

	r.Apply("m1", delta(types.StatusDelivered, 7))
	res := r.Apply("m1", types.StatusDelta{ConversationID: "conv-1", Status: types.StatusRead})

	if !res.Accepted {
		t.Fatalf("sequence-less Read must bypass the ordering gate")
	}
	if got, _ := r.HighestStatus("m1"); got != types.StatusRead {
		t.Errorf("highest = %v, want read", got)
	}
}

func TestSequencelessNonReadNeverRegresses(t *testing.T) {
	r, _ := newTestRegistry(t, time.Millisecond)

	r.Apply("m1", delta(types.StatusDelivered, 5))
	res := r.Apply("m1", types.StatusDelta{ConversationID: "conv-1", Status: types.StatusSent})

	if res.Accepted {
		t.Errorf("sequence-less non-Read event must lose against a retained sequence")
	}
}

func TestPendingInadmissibleAfterSent(t *testing.T) {
	r, _ := newTestRegistry(t, time.Millisecond)

	r.Apply("m1", delta(types.StatusSent, 1))
	res := r.Apply("m1", delta(types.StatusPending, 9))

	if res.Accepted {
		t.Errorf("pending must be permanently inadmissible once Sent is established")
	}
	if got, _ := r.HighestStatus("m1"); got != types.StatusSent {
		t.Errorf("highest = %v, want sent", got)
	}
}

func TestResolveSendCarriesStateWithoutRefiring(t *testing.T) {
	r, rec := newTestRegistry(t, time.Millisecond)

	tempID := r.NoteSend("conv-1")
	if got, ok := r.RenderedStatus(tempID); !ok || got != types.StatusPending {
		t.Fatalf("temp record rendered = %v ok=%v, want pending", got, ok)
	}

	// The sent confirmation raced ahead and landed on the temp id.
	r.Apply(tempID, delta(types.StatusSent, 1))
	r.ResolveSend(tempID, "m-real")

	if _, ok := r.HighestStatus(tempID); ok {
		t.Errorf("temp record should be discarded after resolution")
	}
	if got, _ := r.HighestStatus("m-real"); got != types.StatusSent {
		t.Errorf("real record highest = %v, want sent", got)
	}

	// A redelivered sent event must not refire through the real id.
	r.Apply("m-real", delta(types.StatusSent, 1))
	if n := countTransition(rec.Played, types.BecameSent); n != 1 {
		t.Errorf("BecameSent fired %d times across temp/real ids, want 1", n)
	}
}

func TestMarkSeenEstablishesReadForTrackedMessages(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)

	r.Apply("m1", delta(types.StatusDelivered, 2))
	r.Apply("m2", delta(types.StatusSent, 1))

	became := r.MarkSeen("conv-1", "user-7", types.EventKey{Sequence: 3, OriginTS: time.Unix(2000, 0), OriginNode: "srv-1"})
	if len(became) != 2 {
		t.Fatalf("MarkSeen returned %d messages, want 2", len(became))
	}
	for _, id := range []string{"m1", "m2"} {
		if got, _ := r.RenderedStatus(id); got != types.StatusRead {
			t.Errorf("%s rendered = %v, want read (bypasses buffer)", id, got)
		}
	}

	// Redelivery adds no new readers and changes nothing.
	if became := r.MarkSeen("conv-1", "user-7", types.EventKey{Sequence: 3}); len(became) != 0 {
		t.Errorf("second MarkSeen returned %d messages, want 0", len(became))
	}
}

func TestEvictConversationDropsRecords(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)

	r.Apply("m1", delta(types.StatusSent, 1))
	r.EvictConversation("conv-1")

	if _, ok := r.HighestStatus("m1"); ok {
		t.Errorf("record survived conversation eviction")
	}
	if got := r.Statuses("conv-1"); len(got) != 0 {
		t.Errorf("Statuses returned %d entries after eviction", len(got))
	}
}

func TestStatusesSortedBySequence(t *testing.T) {
	r, _ := newTestRegistry(t, time.Millisecond)

	r.Apply("m-b", delta(types.StatusSent, 2))
	r.Apply("m-a", delta(types.StatusSent, 1))

	got := r.Statuses("conv-1")
	if len(got) != 2 || got[0].MessageID != "m-a" || got[1].MessageID != "m-b" {
		t.Errorf("unexpected order: %+v", got)
	}
}
