package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 200
	warmDialogLimit  = 500
	memberPageSize   = 200
)

// Chats lists the most recent dialogs, newest first, with unread counters
// and a preview of the latest message.
func (g *Gateway) Chats(ctx context.Context, limit int) ([]gate.Chat, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultChatLimit
	}
	if limit > maxChatLimit {
		limit = maxChatLimit
	}

	dialogs, messages, err := g.fetchDialogs(ctx, api, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	previews := indexTopMessages(messages)

	chats := make([]gate.Chat, 0, len(dialogs))
	for _, dialog := range dialogs {
		chat, ok := g.chatFromDialog(dialog, previews)
		if !ok {
			continue
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// warmDialogs refreshes the peer store from the dialog list without
// producing a listing. The resolver retries numeric lookups after a warm.
func (g *Gateway) warmDialogs(ctx context.Context) error {
	api, err := g.api()
	if err != nil {
		return err
	}
	if _, _, err := g.fetchDialogs(ctx, api, warmDialogLimit); err != nil {
		return fmt.Errorf("warm dialogs: %w", err)
	}
	return nil
}

// fetchDialogs pulls one dialog page and feeds every attached entity into
// the peer store.
func (g *Gateway) fetchDialogs(ctx context.Context, api *tg.Client, limit int) ([]*tg.Dialog, []tg.MessageClass, error) {
	result, err := api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      limit,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		rawDialogs []tg.DialogClass
		messages   []tg.MessageClass
		users      []tg.UserClass
		chats      []tg.ChatClass
	)
	switch typed := result.(type) {
	case *tg.MessagesDialogs:
		rawDialogs, messages, users, chats = typed.Dialogs, typed.Messages, typed.Users, typed.Chats
	case *tg.MessagesDialogsSlice:
		rawDialogs, messages, users, chats = typed.Dialogs, typed.Messages, typed.Users, typed.Chats
	default:
		return nil, nil, fmt.Errorf("unexpected dialogs response %T", result)
	}

	for _, user := range users {
		if typed, ok := user.(*tg.User); ok {
			g.store.RememberUser(typed)
		}
	}
	for _, chat := range chats {
		g.store.RememberChat(chat)
	}

	dialogs := make([]*tg.Dialog, 0, len(rawDialogs))
	for _, raw := range rawDialogs {
		if dialog, ok := raw.(*tg.Dialog); ok {
			dialogs = append(dialogs, dialog)
		}
	}
	return dialogs, messages, nil
}

// previewKey identifies one chat's top message.
type previewKey struct {
	chatID int64
	msgID  int
}

func indexTopMessages(messages []tg.MessageClass) map[previewKey]*tg.Message {
	index := make(map[previewKey]*tg.Message, len(messages))
	for _, raw := range messages {
		msg, ok := raw.(*tg.Message)
		if !ok {
			continue
		}
		chatID, ok := chatIDForPeer(msg.PeerID)
		if !ok {
			continue
		}
		index[previewKey{chatID: chatID, msgID: msg.ID}] = msg
	}
	return index
}

func (g *Gateway) chatFromDialog(dialog *tg.Dialog, previews map[previewKey]*tg.Message) (gate.Chat, bool) {
	chatID, ok := chatIDForPeer(dialog.Peer)
	if !ok {
		return gate.Chat{}, false
	}

	entity, ok := g.store.Entity(chatID)
	if !ok {
		return gate.Chat{}, false
	}

	chat := gate.Chat{
		ID:          strconv.FormatInt(chatID, 10),
		Name:        entity.Title,
		UnreadCount: dialog.UnreadCount,
		IsUser:      entity.IsUser(),
		IsGroup:     entity.IsGroup(),
		IsChannel:   entity.IsChannel(),
	}

	if preview, ok := previews[previewKey{chatID: chatID, msgID: dialog.TopMessage}]; ok {
		chat.LastMessage = preview.Message
		date := time.Unix(int64(preview.Date), 0).UTC()
		chat.LastMessageDate = &date
	}
	return chat, true
}

// Members lists the participants of a group or channel identified by any
// resolvable identifier. Private users have no member list.
func (g *Gateway) Members(ctx context.Context, identifier string) ([]gate.Member, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}

	entity, err := g.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if entity.IsUser() {
		return nil, fmt.Errorf("list members of %q: %w", identifier, gate.ErrNoMembers)
	}

	kind, raw := splitChatID(entity.ID)
	if kind == gate.EntityGroup {
		if _, isBasic := g.basicGroup(raw); isBasic {
			return g.basicGroupMembers(ctx, api, raw)
		}
	}
	return g.channelMembers(ctx, api, entity.ID)
}

func (g *Gateway) basicGroup(rawID int64) (peerInfo, bool) {
	g.store.mu.RLock()
	defer g.store.mu.RUnlock()
	info, ok := g.store.groups[rawID]
	return info, ok
}

func (g *Gateway) basicGroupMembers(ctx context.Context, api *tg.Client, chatID int64) ([]gate.Member, error) {
	full, err := api.MessagesGetFullChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}

	members := make([]gate.Member, 0, len(full.Users))
	for _, raw := range full.Users {
		user, ok := raw.(*tg.User)
		if !ok {
			continue
		}
		g.store.RememberUser(user)
		members = append(members, memberFromUser(user))
	}
	return members, nil
}

func (g *Gateway) channelMembers(ctx context.Context, api *tg.Client, chatID int64) ([]gate.Member, error) {
	input, err := g.store.InputPeer(chatID)
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}
	channel, ok := input.(*tg.InputPeerChannel)
	if !ok {
		return nil, fmt.Errorf("list channel members: peer %T is not a channel", input)
	}

	result, err := api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
		Channel: &tg.InputChannel{
			ChannelID:  channel.ChannelID,
			AccessHash: channel.AccessHash,
		},
		Filter: &tg.ChannelParticipantsRecent{},
		Limit:  memberPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}

	participants, ok := result.(*tg.ChannelsChannelParticipants)
	if !ok {
		return nil, fmt.Errorf("list channel members: unexpected response %T", result)
	}

	members := make([]gate.Member, 0, len(participants.Users))
	for _, raw := range participants.Users {
		user, ok := raw.(*tg.User)
		if !ok {
			continue
		}
		g.store.RememberUser(user)
		members = append(members, memberFromUser(user))
	}
	return members, nil
}

func memberFromUser(user *tg.User) gate.Member {
	username, _ := user.GetUsername()
	firstName, _ := user.GetFirstName()
	lastName, _ := user.GetLastName()
	return gate.Member{
		ID:        user.ID,
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
		IsBot:     user.Bot,
	}
}
