package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/types"
)

func TestDecodeDeliveredEvent(t *testing.T) {
	data := []byte(`{"kind":"message:delivered","conversation_id":"c1","message_id":"m1","seq":4,"ts":1700000000000,"node_id":"srv-2"}`)

	now := time.Now()
	evt, err := DecodeEvent(data, now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Kind != types.EventDelivered || evt.MessageID != "m1" || evt.Sequence != 4 {
		t.Errorf("decoded event = %+v", evt)
	}
	if evt.OriginNode != "srv-2" {
		t.Errorf("origin node = %q", evt.OriginNode)
	}
	if !evt.ReceivedAt.Equal(now) {
		t.Errorf("received at = %v, want %v", evt.ReceivedAt, now)
	}
	if evt.OriginTS.UnixMilli() != 1700000000000 {
		t.Errorf("origin ts = %v", evt.OriginTS)
	}
}

func TestDecodeTypingEvent(t *testing.T) {
	data := []byte(`{"kind":"typing","conversation_id":"c1","user_id":"u1","user_name":"Alice","is_typing":true}`)

	evt, err := DecodeEvent(data, time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !evt.IsTyping || evt.UserName != "Alice" {
		t.Errorf("decoded event = %+v", evt)
	}
}

func TestDecodeNotificationEvent(t *testing.T) {
	data := []byte(`{"kind":"notification","type":"mention","actor":"bob","message":"hey","ts":1700000000000}`)

	evt, err := DecodeEvent(data, time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Notification == nil || evt.Notification.Type != "mention" || evt.Notification.Actor != "bob" {
		t.Errorf("notification = %+v", evt.Notification)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing message id", `{"kind":"message:sent","conversation_id":"c1"}`},
		{"missing conversation", `{"kind":"message:delivered","message_id":"m1"}`},
		{"seen without user", `{"kind":"message:seen","conversation_id":"c1"}`},
		{"typing without flag", `{"kind":"typing","conversation_id":"c1","user_id":"u1"}`},
		{"notification without type", `{"kind":"notification","actor":"x"}`},
		{"unknown kind", `{"kind":"message:exploded","conversation_id":"c1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tc.data), time.Now())
			var inv *InvalidEventError
			if !errors.As(err, &inv) {
				t.Errorf("err = %v, want InvalidEventError", err)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte("not json"), time.Now()); err == nil {
		t.Errorf("garbage decoded without error")
	}
}

func TestStatusForMapsStatusKinds(t *testing.T) {
	cases := []struct {
		kind types.EventKind
		want types.StatusLevel
		ok   bool
	}{
		{types.EventSent, types.StatusSent, true},
		{types.EventDelivered, types.StatusDelivered, true},
		{types.EventSeen, types.StatusRead, true},
		{types.EventTyping, types.StatusPending, false},
	}
	for _, tc := range cases {
		got, ok := StatusFor(tc.kind)
		if got != tc.want || ok != tc.ok {
			t.Errorf("StatusFor(%s) = %v,%v want %v,%v", tc.kind, got, ok, tc.want, tc.ok)
		}
	}
}
