package telegram

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

type captureBroadcaster struct {
	mu        sync.Mutex
	envelopes []gate.EventEnvelope
}

func (c *captureBroadcaster) Broadcast(envelope gate.EventEnvelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envelopes = append(c.envelopes, envelope)
}

func (c *captureBroadcaster) all() []gate.EventEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gate.EventEnvelope(nil), c.envelopes...)
}

func TestMapMessageUpdate(t *testing.T) {
	t.Parallel()

	base := &tg.Message{ID: 5, Message: "hello", Date: 1700000000, PeerID: &tg.PeerUser{UserID: 7}}
	base.SetFromID(&tg.PeerUser{UserID: 7})

	t.Run("new message", func(t *testing.T) {
		t.Parallel()

		envelope, ok := mapMessageUpdate(base, false)
		if !ok {
			t.Fatal("mapMessageUpdate() dropped message")
		}
		if envelope.Type != gate.EnvelopeNewMessage || envelope.ChatID != "7" {
			t.Fatalf("envelope = %+v", envelope)
		}
		if envelope.Message == nil || envelope.Message.ID != 5 || envelope.Message.SenderID != 7 {
			t.Fatalf("envelope message = %+v", envelope.Message)
		}
		if !envelope.Message.Date.Equal(time.Unix(1700000000, 0).UTC()) {
			t.Fatalf("envelope date = %v", envelope.Message.Date)
		}
	})

	t.Run("edited message", func(t *testing.T) {
		t.Parallel()

		envelope, ok := mapMessageUpdate(base, true)
		if !ok || envelope.Type != gate.EnvelopeMessageEdited {
			t.Fatalf("edited envelope = %+v ok=%v", envelope, ok)
		}
	})

	t.Run("empty message is dropped", func(t *testing.T) {
		t.Parallel()

		if _, ok := mapMessageUpdate(&tg.MessageEmpty{ID: 9}, false); ok {
			t.Fatal("mapMessageUpdate() kept empty message")
		}
	})
}

func TestMapServiceMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		action     tg.MessageActionClass
		wantAction string
		wantOK     bool
	}{
		{name: "user added", action: &tg.MessageActionChatAddUser{Users: []int64{7}}, wantAction: gate.ActionUserJoined, wantOK: true},
		{name: "joined by link", action: &tg.MessageActionChatJoinedByLink{InviterID: 7}, wantAction: gate.ActionUserJoined, wantOK: true},
		{name: "user removed", action: &tg.MessageActionChatDeleteUser{UserID: 7}, wantAction: gate.ActionUserLeft, wantOK: true},
		{name: "chat created maps to unknown", action: &tg.MessageActionChatCreate{Title: "x"}, wantAction: gate.ActionUnknown, wantOK: true},
		{name: "unrelated service action is dropped", action: &tg.MessageActionPinMessage{}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := &tg.MessageService{
				ID:     5,
				PeerID: &tg.PeerChat{ChatID: 10},
				Action: tt.action,
			}
			envelope, ok := mapServiceMessage(msg)
			if ok != tt.wantOK {
				t.Fatalf("mapServiceMessage() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if envelope.Type != gate.EnvelopeChatAction || envelope.Action != tt.wantAction || envelope.ChatID != "-10" {
				t.Fatalf("envelope = %+v", envelope)
			}
		})
	}
}

func TestSubscriberDispatchesUpdates(t *testing.T) {
	t.Parallel()

	sink := &captureBroadcaster{}
	sub, err := NewSubscriber(NewPeerStore(), sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSubscriber() error: %v", err)
	}

	sender := &tg.User{ID: 7}
	sender.SetAccessHash(77)

	msg := &tg.Message{ID: 5, Message: "hello", Date: 1700000000, PeerID: &tg.PeerUser{UserID: 7}}
	batch := &tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateNewMessage{Message: msg},
			&tg.UpdateDeleteMessages{Messages: []int{1, 2}},
		},
		Users: []tg.UserClass{sender},
	}

	if err := sub.Handler().Handle(context.Background(), batch); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	envelopes := sink.all()
	if len(envelopes) != 2 {
		t.Fatalf("got %d envelopes, want 2: %+v", len(envelopes), envelopes)
	}
	if envelopes[0].Type != gate.EnvelopeNewMessage {
		t.Fatalf("first envelope = %+v", envelopes[0])
	}
	if envelopes[1].Type != gate.EnvelopeMessageDeleted || len(envelopes[1].DeletedIDs) != 2 {
		t.Fatalf("second envelope = %+v", envelopes[1])
	}
}

func TestSubscriberExpandsShortUpdates(t *testing.T) {
	t.Parallel()

	sink := &captureBroadcaster{}
	sub, err := NewSubscriber(NewPeerStore(), sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSubscriber() error: %v", err)
	}
	handler := sub.Handler()

	t.Run("private message", func(t *testing.T) {
		short := &tg.UpdateShortMessage{ID: 5, UserID: 100, Message: "hi", Date: 1700000000}
		if err := handler.Handle(context.Background(), short); err != nil {
			t.Fatalf("Handle() error: %v", err)
		}

		envelopes := sink.all()
		if len(envelopes) != 1 {
			t.Fatalf("got %d envelopes, want 1", len(envelopes))
		}
		envelope := envelopes[0]
		if envelope.Type != gate.EnvelopeNewMessage || envelope.ChatID != "100" {
			t.Fatalf("envelope = %+v", envelope)
		}
		if envelope.Message == nil || envelope.Message.Text != "hi" || envelope.Message.SenderID != 100 {
			t.Fatalf("envelope message = %+v", envelope.Message)
		}
	})

	t.Run("basic group message", func(t *testing.T) {
		short := &tg.UpdateShortChatMessage{ID: 6, FromID: 100, ChatID: 44, Message: "yo", Date: 1700000001}
		if err := handler.Handle(context.Background(), short); err != nil {
			t.Fatalf("Handle() error: %v", err)
		}

		envelopes := sink.all()
		envelope := envelopes[len(envelopes)-1]
		if envelope.Type != gate.EnvelopeNewMessage || envelope.ChatID != "-44" {
			t.Fatalf("envelope = %+v", envelope)
		}
		if envelope.Message == nil || envelope.Message.SenderID != 100 {
			t.Fatalf("envelope message = %+v", envelope.Message)
		}
	})

	t.Run("outgoing private message keeps direction", func(t *testing.T) {
		short := &tg.UpdateShortMessage{ID: 7, UserID: 100, Message: "sent", Date: 1700000002}
		short.SetOut(true)
		if err := handler.Handle(context.Background(), short); err != nil {
			t.Fatalf("Handle() error: %v", err)
		}

		envelopes := sink.all()
		envelope := envelopes[len(envelopes)-1]
		if envelope.Message == nil || !envelope.Message.IsOut || envelope.Message.SenderID != 0 {
			t.Fatalf("envelope message = %+v", envelope.Message)
		}
	})
}

func TestSubscriberChannelDeleteCarriesChatID(t *testing.T) {
	t.Parallel()

	sink := &captureBroadcaster{}
	sub, err := NewSubscriber(NewPeerStore(), sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSubscriber() error: %v", err)
	}

	batch := &tg.Updates{
		Updates: []tg.UpdateClass{
			&tg.UpdateDeleteChannelMessages{ChannelID: 123, Messages: []int{9}},
		},
	}
	if err := sub.Handler().Handle(context.Background(), batch); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	envelopes := sink.all()
	if len(envelopes) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(envelopes))
	}
	want := "-1000000000123"
	if envelopes[0].ChatID != want {
		t.Fatalf("chat id = %q, want %q", envelopes[0].ChatID, want)
	}
}
