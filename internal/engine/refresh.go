package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/weftlabs/weft/internal/cache"
	"github.com/weftlabs/weft/internal/directory"
	"github.com/weftlabs/weft/internal/types"
)

// refresh pulls authoritative state from the directory. Counters are
// replaced, not merged: the delta stream between refreshes is only a
// latency optimization. With seed set, message snapshots are fetched per
// conversation to rebuild statuses after a cold start or a gap.
func (e *Engine) refresh(ctx context.Context, seed bool) error {
	convs, err := e.directory.Conversations(ctx)
	if err != nil {
		return err
	}

	unread, err := e.directory.UnreadCountsFetch(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.conversations = convs
	e.mu.Unlock()
	e.counts.Replace(unread.Conversations, unread.Global)

	if seed {
		for _, conv := range convs {
			if err := e.seedConversation(ctx, conv.ID); err != nil {
				e.logger.Warn("seed failed",
					zap.String("conversation", conv.ID), zap.Error(err))
			}
		}
	}

	e.storeCache(convs, unread)
	e.notifyInvalidate()
	return nil
}

// seedConversation rebuilds statuses for one conversation from persisted
// delivery markers. Snapshot-derived statuses flow through the same merge
// path as live events; a snapshot can only advance state, never regress
// it.
func (e *Engine) seedConversation(ctx context.Context, conversationID string) error {
	msgs, err := e.directory.Messages(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		key := types.EventKey{
			Sequence:   m.Sequence,
			OriginTS:   time.UnixMilli(m.OriginTSMillis),
			OriginNode: m.OriginNode,
		}
		level := types.StatusSent
		switch {
		case len(m.ReadBy) > 0:
			level = types.StatusRead
		case m.Delivered:
			level = types.StatusDelivered
		}
		e.registry.Apply(m.ID, types.StatusDelta{
			ConversationID: conversationID,
			Status:         level,
			Key:            key,
		})
		for _, reader := range m.ReadBy {
			e.registry.AddReader(m.ID, reader)
		}
	}
	return nil
}

func (e *Engine) storeCache(convs []directory.Conversation, unread directory.UnreadCounts) {
	if e.cache == nil {
		return
	}
	for i := range convs {
		if n, ok := unread.Conversations[convs[i].ID]; ok {
			convs[i].UnreadCount = n
		}
	}
	err := e.cache.Store(cache.Snapshot{
		Conversations: convs,
		GlobalUnread:  unread.Global,
		FetchedAt:     time.Now(),
	})
	if err != nil {
		e.logger.Warn("snapshot cache write failed", zap.Error(err))
	}
}
