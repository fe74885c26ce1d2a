package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tggate/pkg/gate"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/tg"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// SendOptions shapes one outbound message.
type SendOptions struct {
	// ReplyToID, when non-zero, marks the message as a reply.
	ReplyToID int
	// Silent delivers without a client-side notification.
	Silent bool
	// ScheduleAt, when non-zero, schedules delivery for that unix time.
	ScheduleAt int64
}

// History returns up to limit messages from a chat, newest first. OffsetID
// above zero continues a previous page below that message id.
func (g *Gateway) History(ctx context.Context, identifier string, limit, offsetID int) ([]gate.Message, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}

	peer, entity, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return nil, err
	}

	result, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		Limit:    clampHistoryLimit(limit),
		OffsetID: offsetID,
	})
	if err != nil {
		return nil, fmt.Errorf("get history for %q: %w", identifier, err)
	}

	return g.collectMessages(entity.ID, result)
}

// Search returns messages matching the query text, newest first. An empty
// identifier searches across all chats.
func (g *Gateway) Search(ctx context.Context, identifier, query string, limit int) ([]gate.Message, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}

	if identifier == "" {
		return g.searchGlobal(ctx, api, query, limit)
	}

	peer, entity, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return nil, err
	}

	result, err := api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
		Peer:   peer,
		Q:      query,
		Filter: &tg.InputMessagesFilterEmpty{},
		Limit:  clampHistoryLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("search %q in %q: %w", query, identifier, err)
	}

	return g.collectMessages(entity.ID, result)
}

func (g *Gateway) searchGlobal(ctx context.Context, api *tg.Client, query string, limit int) ([]gate.Message, error) {
	result, err := api.MessagesSearchGlobal(ctx, &tg.MessagesSearchGlobalRequest{
		Q:          query,
		Filter:     &tg.InputMessagesFilterEmpty{},
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      clampHistoryLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("global search %q: %w", query, err)
	}

	return g.collectMessages(0, result)
}

// Send delivers a text message to a chat and returns the acknowledged
// message id.
func (g *Gateway) Send(ctx context.Context, identifier, text string, opts SendOptions) (gate.SentMessage, error) {
	api, err := g.api()
	if err != nil {
		return gate.SentMessage{}, err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return gate.SentMessage{}, err
	}

	randomID, err := crypto.RandInt64(crypto.DefaultRand())
	if err != nil {
		return gate.SentMessage{}, fmt.Errorf("send message random id: %w", err)
	}

	request := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: randomID,
		Silent:   opts.Silent,
	}
	if opts.ReplyToID != 0 {
		request.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: opts.ReplyToID}
	}
	if opts.ScheduleAt != 0 {
		request.SetScheduleDate(int(opts.ScheduleAt))
	}

	updates, err := api.MessagesSendMessage(ctx, request)
	if err != nil {
		return gate.SentMessage{}, fmt.Errorf("send message to %q: %w", identifier, err)
	}

	messageID, err := unpack.MessageID(updates, nil)
	if err != nil {
		return gate.SentMessage{}, fmt.Errorf("extract sent message id: %w", err)
	}

	now := time.Now().UTC()
	g.logger.Info("message sent",
		slog.String("chat", identifier),
		slog.Int("message_id", messageID),
	)
	return gate.SentMessage{ID: messageID, Text: text, Date: &now}, nil
}

// Edit replaces the text of a previously sent message.
func (g *Gateway) Edit(ctx context.Context, identifier string, messageID int, text string) (gate.SentMessage, error) {
	api, err := g.api()
	if err != nil {
		return gate.SentMessage{}, err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return gate.SentMessage{}, err
	}

	if _, err := api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:    peer,
		ID:      messageID,
		Message: text,
	}); err != nil {
		return gate.SentMessage{}, fmt.Errorf("edit message %d in %q: %w", messageID, identifier, err)
	}

	now := time.Now().UTC()
	return gate.SentMessage{ID: messageID, Text: text, Date: &now}, nil
}

// Delete removes messages for every participant.
func (g *Gateway) Delete(ctx context.Context, identifier string, messageIDs []int) error {
	api, err := g.api()
	if err != nil {
		return err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return err
	}

	if channel, ok := peer.(*tg.InputPeerChannel); ok {
		_, err := api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: &tg.InputChannel{
				ChannelID:  channel.ChannelID,
				AccessHash: channel.AccessHash,
			},
			ID: messageIDs,
		})
		if err != nil {
			return fmt.Errorf("delete channel messages in %q: %w", identifier, err)
		}
		return nil
	}

	if _, err := api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
		Revoke: true,
		ID:     messageIDs,
	}); err != nil {
		return fmt.Errorf("delete messages in %q: %w", identifier, err)
	}
	return nil
}

// Forward copies messages from one chat into another and returns the new
// message ids in the destination.
func (g *Gateway) Forward(ctx context.Context, fromIdentifier, toIdentifier string, messageIDs []int) ([]int, error) {
	api, err := g.api()
	if err != nil {
		return nil, err
	}

	from, _, err := g.resolveInput(ctx, fromIdentifier)
	if err != nil {
		return nil, err
	}
	to, _, err := g.resolveInput(ctx, toIdentifier)
	if err != nil {
		return nil, err
	}

	randomIDs := make([]int64, len(messageIDs))
	for i := range randomIDs {
		randomID, err := crypto.RandInt64(crypto.DefaultRand())
		if err != nil {
			return nil, fmt.Errorf("forward random id: %w", err)
		}
		randomIDs[i] = randomID
	}

	updates, err := api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: from,
		ToPeer:   to,
		ID:       messageIDs,
		RandomID: randomIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("forward messages from %q to %q: %w", fromIdentifier, toIdentifier, err)
	}

	return forwardedIDs(updates), nil
}

// Pin pins a message in a chat, or unpins it.
func (g *Gateway) Pin(ctx context.Context, identifier string, messageID int, unpin bool) error {
	api, err := g.api()
	if err != nil {
		return err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return err
	}

	if _, err := api.MessagesUpdatePinnedMessage(ctx, &tg.MessagesUpdatePinnedMessageRequest{
		Peer:  peer,
		ID:    messageID,
		Unpin: unpin,
	}); err != nil {
		return fmt.Errorf("pin message %d in %q: %w", messageID, identifier, err)
	}
	return nil
}

// React sets the reaction on a message. An empty emoticon clears any
// existing reaction.
func (g *Gateway) React(ctx context.Context, identifier string, messageID int, emoticon string) error {
	api, err := g.api()
	if err != nil {
		return err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return err
	}

	request := &tg.MessagesSendReactionRequest{
		Peer:  peer,
		MsgID: messageID,
	}
	reaction := []tg.ReactionClass{}
	if emoticon != "" {
		reaction = append(reaction, &tg.ReactionEmoji{Emoticon: emoticon})
	}
	request.SetReaction(reaction)

	if _, err := api.MessagesSendReaction(ctx, request); err != nil {
		return fmt.Errorf("react to message %d in %q: %w", messageID, identifier, err)
	}
	return nil
}

// MarkRead acknowledges messages in a chat up to maxID, or the whole history
// when maxID is zero.
func (g *Gateway) MarkRead(ctx context.Context, identifier string, maxID int) error {
	api, err := g.api()
	if err != nil {
		return err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return err
	}

	if channel, ok := peer.(*tg.InputPeerChannel); ok {
		if _, err := api.ChannelsReadHistory(ctx, &tg.ChannelsReadHistoryRequest{
			Channel: &tg.InputChannel{
				ChannelID:  channel.ChannelID,
				AccessHash: channel.AccessHash,
			},
			MaxID: maxID,
		}); err != nil {
			return fmt.Errorf("mark read in %q: %w", identifier, err)
		}
		return nil
	}

	if _, err := api.MessagesReadHistory(ctx, &tg.MessagesReadHistoryRequest{
		Peer:  peer,
		MaxID: maxID,
	}); err != nil {
		return fmt.Errorf("mark read in %q: %w", identifier, err)
	}
	return nil
}

// resolveInput resolves an identifier and materializes the outbound peer.
func (g *Gateway) resolveInput(ctx context.Context, identifier string) (tg.InputPeerClass, gate.ResolvedEntity, error) {
	entity, err := g.Resolve(ctx, identifier)
	if err != nil {
		return nil, gate.ResolvedEntity{}, err
	}
	peer, err := g.store.InputPeer(entity.ID)
	if err != nil {
		return nil, gate.ResolvedEntity{}, &gate.NotFoundError{Identifier: identifier, Err: err}
	}
	return peer, entity, nil
}

// collectMessages flattens any history response variant into the caller
// projection, remembering attached entities along the way.
func (g *Gateway) collectMessages(chatID int64, result tg.MessagesMessagesClass) ([]gate.Message, error) {
	var (
		rawMessages []tg.MessageClass
		users       []tg.UserClass
		chats       []tg.ChatClass
	)
	switch typed := result.(type) {
	case *tg.MessagesMessages:
		rawMessages, users, chats = typed.Messages, typed.Users, typed.Chats
	case *tg.MessagesMessagesSlice:
		rawMessages, users, chats = typed.Messages, typed.Users, typed.Chats
	case *tg.MessagesChannelMessages:
		rawMessages, users, chats = typed.Messages, typed.Users, typed.Chats
	default:
		return nil, fmt.Errorf("unexpected messages response %T", result)
	}

	for _, user := range users {
		if typed, ok := user.(*tg.User); ok {
			g.store.RememberUser(typed)
		}
	}
	for _, chat := range chats {
		g.store.RememberChat(chat)
	}

	chatIDText := ""
	if chatID != 0 {
		chatIDText = strconv.FormatInt(chatID, 10)
	}
	messages := make([]gate.Message, 0, len(rawMessages))
	for _, raw := range rawMessages {
		msg, ok := raw.(*tg.Message)
		if !ok {
			continue
		}
		// Global search results span chats, so the chat id comes from the
		// message itself.
		msgChatID := chatIDText
		if msgChatID == "" {
			msgChatID = chatIDString(msg.PeerID)
		}
		messages = append(messages, messageProjection(msg, msgChatID))
	}
	return messages, nil
}

func messageProjection(msg *tg.Message, chatID string) gate.Message {
	date := time.Unix(int64(msg.Date), 0).UTC()
	out := gate.Message{
		ID:     msg.ID,
		Text:   msg.Message,
		Date:   &date,
		ChatID: chatID,
		IsOut:  msg.Out,
	}

	if from, ok := msg.GetFromID(); ok {
		if user, ok := from.(*tg.PeerUser); ok {
			out.SenderID = user.UserID
		}
	}

	if reply, ok := msg.GetReplyTo(); ok {
		if header, ok := reply.(*tg.MessageReplyHeader); ok {
			if replyID, ok := header.GetReplyToMsgID(); ok {
				out.IsReply = true
				out.ReplyToID = replyID
			}
		}
	}

	if media, ok := msg.GetMedia(); ok {
		out.MediaDescriptor = Classify(media)
	}
	return out
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func forwardedIDs(updates tg.UpdatesClass) []int {
	container, ok := updates.(*tg.Updates)
	if !ok {
		return nil
	}

	ids := make([]int, 0, len(container.Updates))
	for _, update := range container.Updates {
		switch typed := update.(type) {
		case *tg.UpdateNewMessage:
			if msg, ok := typed.Message.(*tg.Message); ok {
				ids = append(ids, msg.ID)
			}
		case *tg.UpdateNewChannelMessage:
			if msg, ok := typed.Message.(*tg.Message); ok {
				ids = append(ids, msg.ID)
			}
		}
	}
	return ids
}
