package counts

import (
	"testing"

	"github.com/weftlabs/weft/internal/types"
)

func update(conv map[string]int, global int) *types.Update {
	return &types.Update{ConvDeltas: conv, GlobalDelta: global}
}

func TestDeltasNeverDriveCountersNegative(t *testing.T) {
	a := New(nil)

	a.ApplyUpdate(update(map[string]int{"c1": 2}, 2))
	a.ApplyUpdate(update(map[string]int{"c1": -5}, -5))

	if got := a.Conversation("c1"); got != 0 {
		t.Errorf("conversation count = %d, want 0", got)
	}
	if got := a.Global(); got != 0 {
		t.Errorf("global count = %d, want 0", got)
	}
}

func TestReplaceIsAuthoritative(t *testing.T) {
	a := New(nil)

	a.ApplyUpdate(update(map[string]int{"c1": 3, "c2": 1}, 4))
	a.Replace(map[string]int{"c1": 7}, 7)

	if got := a.Conversation("c1"); got != 7 {
		t.Errorf("c1 = %d, want 7 (replace, not merge)", got)
	}
	if got := a.Conversation("c2"); got != 0 {
		t.Errorf("c2 = %d, want 0 after authoritative replace", got)
	}
	if got := a.Global(); got != 7 {
		t.Errorf("global = %d, want 7", got)
	}
}

func TestOptimisticZeroWinsOverStaleRefresh(t *testing.T) {
	a := New(nil)

	a.ApplyUpdate(update(map[string]int{"c1": 4}, 4))
	a.MarkReadOptimistic("c1")
	if got := a.Conversation("c1"); got != 0 {
		t.Fatalf("c1 = %d after optimistic mark, want 0", got)
	}

	// A refresh raced the mark-read call on the server.
	a.Replace(map[string]int{"c1": 4}, 4)
	if got := a.Conversation("c1"); got != 0 {
		t.Errorf("stale refresh overrode optimistic zero: c1 = %d", got)
	}

	// The next refresh confirms; the pin is released.
	a.Replace(map[string]int{"c1": 0}, 0)
	a.Replace(map[string]int{"c1": 2}, 2)
	if got := a.Conversation("c1"); got != 2 {
		t.Errorf("post-confirmation refresh ignored: c1 = %d, want 2", got)
	}
}

func TestPinnedConversationIgnoresPositiveDeltas(t *testing.T) {
	a := New(nil)

	a.MarkReadOptimistic("c1")
	a.ApplyUpdate(update(map[string]int{"c1": 1}, 1))

	if got := a.Conversation("c1"); got != 0 {
		t.Errorf("viewed conversation accumulated unread: %d", got)
	}
}

func TestUnpinRestoresNormalRefresh(t *testing.T) {
	a := New(nil)

	a.MarkReadOptimistic("c1")
	a.Unpin("c1")
	a.Replace(map[string]int{"c1": 3}, 3)

	if got := a.Conversation("c1"); got != 3 {
		t.Errorf("c1 = %d after unpin+refresh, want 3", got)
	}
}

func TestGlobalNeverBelowConversationSum(t *testing.T) {
	a := New(nil)

	a.ApplyUpdate(update(map[string]int{"c1": 2, "c2": 3}, 1))

	if got, want := a.Global(), 5; got != want {
		t.Errorf("global = %d, want at least the conversation sum %d", got, want)
	}
}
