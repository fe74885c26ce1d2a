package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

// channelIDOffset maps raw channel ids into the signed chat-id space used by
// callers: user ids stay positive, basic groups negate, channels negate past
// the offset.
const channelIDOffset int64 = 1_000_000_000_000

// chatIDForPeer converts a provider peer into the caller-facing signed chat id.
func chatIDForPeer(peer tg.PeerClass) (int64, bool) {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return typed.UserID, true
	case *tg.PeerChat:
		return -typed.ChatID, true
	case *tg.PeerChannel:
		return -(channelIDOffset + typed.ChannelID), true
	default:
		return 0, false
	}
}

// chatIDString renders the caller-facing chat id for envelope payloads.
func chatIDString(peer tg.PeerClass) string {
	id, ok := chatIDForPeer(peer)
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// splitChatID reverses chatIDForPeer into the raw provider id per entity class.
func splitChatID(chatID int64) (kind gate.EntityKind, raw int64) {
	switch {
	case chatID <= -channelIDOffset:
		return gate.EntityChannel, -chatID - channelIDOffset
	case chatID < 0:
		return gate.EntityGroup, -chatID
	default:
		return gate.EntityUser, chatID
	}
}

// peerInfo is one remembered provider entity with its outbound credentials.
type peerInfo struct {
	accessHash int64
	title      string
	username   string
	phone      string
	firstName  string
	lastName   string
	megagroup  bool
	broadcast  bool
	bot        bool
}

// PeerStore remembers provider entities discovered from inbound updates and
// dialog listings so numeric identifiers can be resolved back into concrete
// input peers for outbound RPC.
type PeerStore struct {
	mu       sync.RWMutex
	users    map[int64]peerInfo
	groups   map[int64]peerInfo
	channels map[int64]peerInfo
}

// NewPeerStore creates an empty, concurrency-safe peer store.
func NewPeerStore() *PeerStore {
	return &PeerStore{
		users:    make(map[int64]peerInfo),
		groups:   make(map[int64]peerInfo),
		channels: make(map[int64]peerInfo),
	}
}

// RememberUser ingests one provider user object.
func (s *PeerStore) RememberUser(user *tg.User) {
	if s == nil || user == nil {
		return
	}

	username, _ := user.GetUsername()
	firstName, _ := user.GetFirstName()
	lastName, _ := user.GetLastName()
	phone, _ := user.GetPhone()
	accessHash, _ := user.GetAccessHash()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = peerInfo{
		accessHash: accessHash,
		username:   username,
		firstName:  firstName,
		lastName:   lastName,
		phone:      phone,
		bot:        user.Bot,
	}
}

// RememberChat ingests one provider chat or channel object.
func (s *PeerStore) RememberChat(chat tg.ChatClass) {
	if s == nil || chat == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch typed := chat.(type) {
	case *tg.Chat:
		s.groups[typed.ID] = peerInfo{title: typed.Title}
	case *tg.ChatForbidden:
		s.groups[typed.ID] = peerInfo{title: typed.Title}
	case *tg.Channel:
		accessHash, _ := typed.GetAccessHash()
		username, _ := typed.GetUsername()
		s.channels[typed.ID] = peerInfo{
			accessHash: accessHash,
			title:      typed.Title,
			username:   username,
			megagroup:  typed.Megagroup,
			broadcast:  typed.Broadcast,
		}
	case *tg.ChannelForbidden:
		s.channels[typed.ID] = peerInfo{
			accessHash: typed.AccessHash,
			title:      typed.Title,
			broadcast:  typed.Broadcast,
			megagroup:  typed.Megagroup,
		}
	}
}

// RememberEntities ingests the entity side tables attached to one update batch.
func (s *PeerStore) RememberEntities(entities tg.Entities) {
	if s == nil {
		return
	}
	for _, user := range entities.Users {
		s.RememberUser(user)
	}
	for _, chat := range entities.Chats {
		s.RememberChat(chat)
	}
	for _, channel := range entities.Channels {
		s.RememberChat(channel)
	}
}

// InputPeer resolves a caller-facing chat id into an outbound input peer.
func (s *PeerStore) InputPeer(chatID int64) (tg.InputPeerClass, error) {
	if s == nil {
		return nil, fmt.Errorf("input peer: nil store")
	}

	kind, raw := splitChatID(chatID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case gate.EntityUser:
		info, ok := s.users[raw]
		if !ok {
			return nil, fmt.Errorf("input peer: user %d not known", raw)
		}
		return &tg.InputPeerUser{UserID: raw, AccessHash: info.accessHash}, nil
	case gate.EntityGroup:
		if _, ok := s.groups[raw]; ok {
			return &tg.InputPeerChat{ChatID: raw}, nil
		}
		// Megagroups surface as groups but route through channel peers.
		if info, ok := s.channels[raw]; ok {
			return &tg.InputPeerChannel{ChannelID: raw, AccessHash: info.accessHash}, nil
		}
		return nil, fmt.Errorf("input peer: group %d not known", raw)
	case gate.EntityChannel:
		info, ok := s.channels[raw]
		if !ok {
			return nil, fmt.Errorf("input peer: channel %d not known", raw)
		}
		return &tg.InputPeerChannel{ChannelID: raw, AccessHash: info.accessHash}, nil
	default:
		return nil, fmt.Errorf("input peer: unsupported chat id %d", chatID)
	}
}

// Entity returns the remembered resolved entity for a caller-facing chat id.
func (s *PeerStore) Entity(chatID int64) (gate.ResolvedEntity, bool) {
	if s == nil {
		return gate.ResolvedEntity{}, false
	}

	kind, raw := splitChatID(chatID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case gate.EntityUser:
		info, ok := s.users[raw]
		if !ok {
			return gate.ResolvedEntity{}, false
		}
		return userEntity(raw, info), true
	case gate.EntityGroup:
		if info, ok := s.groups[raw]; ok {
			return groupEntity(chatID, info), true
		}
		if info, ok := s.channels[raw]; ok && info.megagroup {
			return channelEntity(chatID, info), true
		}
		return gate.ResolvedEntity{}, false
	case gate.EntityChannel:
		info, ok := s.channels[raw]
		if !ok {
			return gate.ResolvedEntity{}, false
		}
		return channelEntity(chatID, info), true
	default:
		return gate.ResolvedEntity{}, false
	}
}

func userEntity(id int64, info peerInfo) gate.ResolvedEntity {
	title := strings.TrimSpace(strings.TrimSpace(info.firstName) + " " + strings.TrimSpace(info.lastName))
	if title == "" {
		title = info.username
	}
	return gate.ResolvedEntity{
		Kind:     gate.EntityUser,
		ID:       id,
		Title:    title,
		Username: info.username,
		Phone:    info.phone,
	}
}

func groupEntity(chatID int64, info peerInfo) gate.ResolvedEntity {
	return gate.ResolvedEntity{
		Kind:          gate.EntityGroup,
		ID:            chatID,
		Title:         info.title,
		HasMembers:    true,
		HasInviteLink: true,
	}
}

func channelEntity(chatID int64, info peerInfo) gate.ResolvedEntity {
	kind := gate.EntityChannel
	if info.megagroup {
		kind = gate.EntityGroup
	}
	return gate.ResolvedEntity{
		Kind:          kind,
		ID:            chatID,
		Title:         info.title,
		Username:      info.username,
		HasMembers:    true,
		HasInviteLink: true,
	}
}
