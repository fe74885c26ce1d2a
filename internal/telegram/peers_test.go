package telegram

import (
	"fmt"
	"testing"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

func TestChatIDRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		peer     tg.PeerClass
		wantID   int64
		wantKind gate.EntityKind
		wantRaw  int64
	}{
		{
			name:     "user",
			peer:     &tg.PeerUser{UserID: 42},
			wantID:   42,
			wantKind: gate.EntityUser,
			wantRaw:  42,
		},
		{
			name:     "basic group",
			peer:     &tg.PeerChat{ChatID: 99},
			wantID:   -99,
			wantKind: gate.EntityGroup,
			wantRaw:  99,
		},
		{
			name:     "channel",
			peer:     &tg.PeerChannel{ChannelID: 123},
			wantID:   -(channelIDOffset + 123),
			wantKind: gate.EntityChannel,
			wantRaw:  123,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, ok := chatIDForPeer(tt.peer)
			if !ok {
				t.Fatalf("chatIDForPeer(%T) not ok", tt.peer)
			}
			if id != tt.wantID {
				t.Fatalf("chatIDForPeer() = %d, want %d", id, tt.wantID)
			}

			kind, raw := splitChatID(id)
			if kind != tt.wantKind || raw != tt.wantRaw {
				t.Fatalf("splitChatID(%d) = (%s, %d), want (%s, %d)", id, kind, raw, tt.wantKind, tt.wantRaw)
			}
		})
	}
}

func newTestStore() *PeerStore {
	store := NewPeerStore()

	alice := &tg.User{ID: 7}
	alice.SetFirstName("Alice")
	alice.SetAccessHash(77)
	alice.SetUsername("alice")
	alice.SetPhone("15550001")
	store.RememberUser(alice)

	store.RememberChat(&tg.Chat{ID: 10, Title: "Book Club"})

	megagroup := &tg.Channel{ID: 20, Title: "Ops Floor", Megagroup: true}
	megagroup.SetAccessHash(2020)
	store.RememberChat(megagroup)

	broadcast := &tg.Channel{ID: 30, Title: "Announcements"}
	broadcast.SetAccessHash(3030)
	broadcast.Broadcast = true
	store.RememberChat(broadcast)

	return store
}

func TestPeerStoreInputPeer(t *testing.T) {
	t.Parallel()

	store := newTestStore()

	tests := []struct {
		name     string
		chatID   int64
		wantType string
		wantErr  bool
	}{
		{name: "user", chatID: 7, wantType: "*tg.InputPeerUser"},
		{name: "basic group", chatID: -10, wantType: "*tg.InputPeerChat"},
		{name: "megagroup routes through channel peer", chatID: -(channelIDOffset + 20), wantType: "*tg.InputPeerChannel"},
		{name: "broadcast channel", chatID: -(channelIDOffset + 30), wantType: "*tg.InputPeerChannel"},
		{name: "unknown user", chatID: 404, wantErr: true},
		{name: "unknown group", chatID: -404, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			peer, err := store.InputPeer(tt.chatID)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("InputPeer(%d) expected error", tt.chatID)
				}
				return
			}
			if err != nil {
				t.Fatalf("InputPeer(%d) error: %v", tt.chatID, err)
			}
			if got := fmt.Sprintf("%T", peer); got != tt.wantType {
				t.Fatalf("InputPeer(%d) = %s, want %s", tt.chatID, got, tt.wantType)
			}
		})
	}
}

func TestPeerStoreEntity(t *testing.T) {
	t.Parallel()

	store := newTestStore()

	t.Run("user entity carries identity fields", func(t *testing.T) {
		t.Parallel()

		entity, ok := store.Entity(7)
		if !ok {
			t.Fatal("Entity(7) not found")
		}
		if !entity.IsUser() || entity.Title != "Alice" || entity.Username != "alice" || entity.Phone != "15550001" {
			t.Fatalf("Entity(7) = %+v", entity)
		}
		if entity.HasMembers || entity.HasInviteLink {
			t.Fatalf("user entity has group capabilities: %+v", entity)
		}
	})

	t.Run("megagroup reports as group", func(t *testing.T) {
		t.Parallel()

		chatID := -(channelIDOffset + 20)
		entity, ok := store.Entity(chatID)
		if !ok {
			t.Fatalf("Entity(%d) not found", chatID)
		}
		if !entity.IsGroup() {
			t.Fatalf("megagroup kind = %s, want group", entity.Kind)
		}
		if !entity.HasMembers || !entity.HasInviteLink {
			t.Fatalf("megagroup lost capabilities: %+v", entity)
		}
	})

	t.Run("broadcast channel reports as channel", func(t *testing.T) {
		t.Parallel()

		chatID := -(channelIDOffset + 30)
		entity, ok := store.Entity(chatID)
		if !ok {
			t.Fatalf("Entity(%d) not found", chatID)
		}
		if !entity.IsChannel() || entity.Title != "Announcements" {
			t.Fatalf("Entity(%d) = %+v", chatID, entity)
		}
	})

	t.Run("unknown id misses", func(t *testing.T) {
		t.Parallel()

		if _, ok := store.Entity(404); ok {
			t.Fatal("Entity(404) unexpectedly found")
		}
	})
}
