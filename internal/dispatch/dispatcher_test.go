package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/types"
)

type capture struct {
	mu      sync.Mutex
	updates []*types.Update
}

func (c *capture) sub(u *types.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *capture) wait(t *testing.T, n int) []*types.Update {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.updates)
		c.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) < n {
		t.Fatalf("got %d updates, want at least %d", len(c.updates), n)
	}
	return append([]*types.Update(nil), c.updates...)
}

func statusDelta(seq int64) types.StatusDelta {
	return types.StatusDelta{
		ConversationID: "conv-1",
		Status:         types.StatusDelivered,
		Key:            types.EventKey{Sequence: seq, OriginTS: time.Unix(seq, 0), OriginNode: "srv"},
	}
}

func TestBurstCoalescesIntoSingleUpdate(t *testing.T) {
	d := New(Config{Debounce: 40 * time.Millisecond, MaxWait: time.Second}, nil)
	defer d.Close()
	c := &capture{}
	d.Subscribe(c.sub)

	for i := 1; i <= 5; i++ {
		d.IngestStatus("m"+string(rune('0'+i)), statusDelta(int64(i)))
	}

	updates := c.wait(t, 1)
	if len(updates) != 1 {
		t.Fatalf("burst produced %d updates, want 1", len(updates))
	}
	if len(updates[0].StatusDeltas) != 5 {
		t.Errorf("update carries %d deltas, want 5", len(updates[0].StatusDeltas))
	}
}

func TestAllSubscribersSeeTheSameUpdateReference(t *testing.T) {
	d := New(Config{Debounce: 20 * time.Millisecond, MaxWait: time.Second}, nil)
	defer d.Close()
	a, b := &capture{}, &capture{}
	d.Subscribe(a.sub)
	d.Subscribe(b.sub)

	d.IngestStatus("m1", statusDelta(1))

	ua := a.wait(t, 1)
	ub := b.wait(t, 1)
	if ua[0] != ub[0] {
		t.Errorf("subscribers received different Update objects")
	}
}

func TestBatchKeepsHighestKeyPerMessage(t *testing.T) {
	d := New(Config{Debounce: 40 * time.Millisecond, MaxWait: time.Second}, nil)
	defer d.Close()
	c := &capture{}
	d.Subscribe(c.sub)

	d.IngestStatus("m1", statusDelta(3))
	d.IngestStatus("m1", statusDelta(2)) // lower key within the same batch

	u := c.wait(t, 1)[0]
	if got := u.StatusDeltas["m1"].Key.Sequence; got != 3 {
		t.Errorf("batch kept seq %d, want 3", got)
	}
}

func TestHardCapBoundsLatencyUnderContinuousStream(t *testing.T) {
	d := New(Config{Debounce: 50 * time.Millisecond, MaxWait: 200 * time.Millisecond}, nil)
	defer d.Close()
	c := &capture{}
	d.Subscribe(c.sub)

	// Feed events faster than the debounce so it alone would never fire.
	stop := make(chan struct{})
	go func() {
		seq := int64(0)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				seq++
				d.IngestStatus("m1", statusDelta(seq))
			}
		}
	}()
	defer close(stop)

	start := time.Now()
	c.wait(t, 1)
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("flush took %v despite a 200ms hard cap", elapsed)
	}
}

func TestNotificationsDeduplicatedByIdentity(t *testing.T) {
	d := New(Config{Debounce: 30 * time.Millisecond, MaxWait: time.Second}, nil)
	defer d.Close()
	c := &capture{}
	d.Subscribe(c.sub)

	n := types.Notification{Type: "mention", Actor: "alice", TS: time.Unix(500, 0)}
	d.IngestNotification(n)
	d.IngestNotification(n)
	d.IngestNotification(types.Notification{Type: "mention", Actor: "bob", TS: time.Unix(500, 0)})

	u := c.wait(t, 1)[0]
	if len(u.Notifications) != 2 {
		t.Errorf("update carries %d notifications, want 2", len(u.Notifications))
	}
}

func TestCountDeltasSummedPerConversationAndGlobally(t *testing.T) {
	d := New(Config{Debounce: 30 * time.Millisecond, MaxWait: time.Second}, nil)
	defer d.Close()
	c := &capture{}
	d.Subscribe(c.sub)

	d.AddCountDelta("conv-1", 1)
	d.AddCountDelta("conv-1", 1)
	d.AddCountDelta("conv-2", 1)
	d.AddCountDelta("conv-1", -1)

	u := c.wait(t, 1)[0]
	if u.ConvDeltas["conv-1"] != 1 || u.ConvDeltas["conv-2"] != 1 {
		t.Errorf("conversation deltas = %v", u.ConvDeltas)
	}
	if u.GlobalDelta != 2 {
		t.Errorf("global delta = %d, want 2", u.GlobalDelta)
	}
}

func TestApplyHookRunsBeforeSubscribers(t *testing.T) {
	d := New(Config{Debounce: 20 * time.Millisecond, MaxWait: time.Second}, nil)
	defer d.Close()

	var order []string
	var mu sync.Mutex
	d.OnFlush(func(*types.Update) {
		mu.Lock()
		order = append(order, "apply")
		mu.Unlock()
	})
	done := make(chan struct{})
	d.Subscribe(func(*types.Update) {
		mu.Lock()
		order = append(order, "subscriber")
		mu.Unlock()
		close(done)
	})

	d.IngestStatus("m1", statusDelta(1))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("flush never reached subscriber")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "apply" || order[1] != "subscriber" {
		t.Errorf("flush order = %v", order)
	}
}

func TestEmptyFlushProducesNoUpdate(t *testing.T) {
	d := New(Config{Debounce: 10 * time.Millisecond, MaxWait: 50 * time.Millisecond}, nil)
	c := &capture{}
	d.Subscribe(c.sub)
	d.Flush()
	d.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) != 0 {
		t.Errorf("empty flush reached subscribers: %d updates", len(c.updates))
	}
}
