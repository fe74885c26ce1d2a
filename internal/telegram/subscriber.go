package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tggate/pkg/gate"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

// Broadcaster receives normalized envelopes for fan-out to subscribers.
// Delivery is fire-and-forget; a slow subscriber never blocks the feed.
type Broadcaster interface {
	Broadcast(envelope gate.EventEnvelope)
}

// Subscriber turns the provider update stream into normalized envelopes.
// Each update is mapped independently; a failure to map one update is logged
// and dropped without disturbing the stream.
type Subscriber struct {
	store      *PeerStore
	sink       Broadcaster
	logger     *slog.Logger
	dispatcher tg.UpdateDispatcher
}

// NewSubscriber wires the update dispatcher for messages, edits, deletions,
// and chat membership actions.
func NewSubscriber(store *PeerStore, sink Broadcaster, logger *slog.Logger) (*Subscriber, error) {
	if store == nil {
		return nil, fmt.Errorf("new subscriber: peer store is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("new subscriber: broadcaster is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Subscriber{
		store:      store,
		sink:       sink,
		logger:     logger.With(slog.String("component", "subscriber")),
		dispatcher: tg.NewUpdateDispatcher(),
	}

	s.dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		s.handleMessage(e, update.Message, false)
		return nil
	})
	s.dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		s.handleMessage(e, update.Message, false)
		return nil
	})
	s.dispatcher.OnEditMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateEditMessage) error {
		s.handleMessage(e, update.Message, true)
		return nil
	})
	s.dispatcher.OnEditChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateEditChannelMessage) error {
		s.handleMessage(e, update.Message, true)
		return nil
	})
	s.dispatcher.OnDeleteMessages(func(ctx context.Context, e tg.Entities, update *tg.UpdateDeleteMessages) error {
		s.emit(deleteEnvelope("", update.Messages))
		return nil
	})
	s.dispatcher.OnDeleteChannelMessages(func(ctx context.Context, e tg.Entities, update *tg.UpdateDeleteChannelMessages) error {
		chatID := chatIDString(&tg.PeerChannel{ChannelID: update.ChannelID})
		s.emit(deleteEnvelope(chatID, update.Messages))
		return nil
	})

	return s, nil
}

// Handler exposes the subscriber as the client update handler. Private and
// basic-group messages arrive as compact short updates that the generated
// dispatcher does not expand, so those are mapped here before dispatch.
func (s *Subscriber) Handler() telegram.UpdateHandler {
	return telegram.UpdateHandlerFunc(func(ctx context.Context, updates tg.UpdatesClass) error {
		switch typed := updates.(type) {
		case *tg.UpdateShortMessage:
			s.handleMessage(tg.Entities{}, expandShortMessage(typed), false)
			return nil
		case *tg.UpdateShortChatMessage:
			s.handleMessage(tg.Entities{}, expandShortChatMessage(typed), false)
			return nil
		}
		return s.dispatcher.Handle(ctx, updates)
	})
}

// expandShortMessage rebuilds the message object a compact private-chat
// update stands for. The update's user id is both the peer and, for inbound
// messages, the sender.
func expandShortMessage(update *tg.UpdateShortMessage) *tg.Message {
	message := &tg.Message{
		ID:      update.ID,
		Out:     update.Out,
		PeerID:  &tg.PeerUser{UserID: update.UserID},
		Date:    update.Date,
		Message: update.Message,
	}
	if !update.Out {
		message.SetFromID(&tg.PeerUser{UserID: update.UserID})
	}
	return message
}

func expandShortChatMessage(update *tg.UpdateShortChatMessage) *tg.Message {
	message := &tg.Message{
		ID:      update.ID,
		Out:     update.Out,
		PeerID:  &tg.PeerChat{ChatID: update.ChatID},
		Date:    update.Date,
		Message: update.Message,
	}
	message.SetFromID(&tg.PeerUser{UserID: update.FromID})
	return message
}

func (s *Subscriber) handleMessage(entities tg.Entities, raw tg.MessageClass, edited bool) {
	s.store.RememberEntities(entities)

	envelope, ok := mapMessageUpdate(raw, edited)
	if !ok {
		s.logger.Debug("update dropped", slog.String("type", raw.TypeName()))
		return
	}
	s.emit(envelope)
}

func (s *Subscriber) emit(envelope gate.EventEnvelope) {
	s.sink.Broadcast(envelope)
}

// mapMessageUpdate maps one inbound message object onto an envelope.
// Service messages become chat actions; empty messages are dropped.
func mapMessageUpdate(raw tg.MessageClass, edited bool) (gate.EventEnvelope, bool) {
	switch msg := raw.(type) {
	case *tg.Message:
		envelope := gate.EventEnvelope{
			Type:   gate.EnvelopeNewMessage,
			ChatID: chatIDString(msg.PeerID),
			Message: &gate.EventMessage{
				ID:    msg.ID,
				Text:  msg.Message,
				Date:  time.Unix(int64(msg.Date), 0).UTC(),
				IsOut: msg.Out,
			},
		}
		if edited {
			envelope.Type = gate.EnvelopeMessageEdited
		}
		if from, ok := msg.GetFromID(); ok {
			if user, ok := from.(*tg.PeerUser); ok {
				envelope.Message.SenderID = user.UserID
			}
		}
		return envelope, true
	case *tg.MessageService:
		return mapServiceMessage(msg)
	default:
		return gate.EventEnvelope{}, false
	}
}

// mapServiceMessage maps membership service messages onto chat actions.
func mapServiceMessage(msg *tg.MessageService) (gate.EventEnvelope, bool) {
	action := ""
	switch msg.Action.(type) {
	case *tg.MessageActionChatAddUser, *tg.MessageActionChatJoinedByLink, *tg.MessageActionChatJoinedByRequest:
		action = gate.ActionUserJoined
	case *tg.MessageActionChatDeleteUser:
		action = gate.ActionUserLeft
	case *tg.MessageActionChatCreate, *tg.MessageActionChannelCreate, *tg.MessageActionChatMigrateTo, *tg.MessageActionChannelMigrateFrom:
		action = gate.ActionUnknown
	default:
		return gate.EventEnvelope{}, false
	}

	return gate.EventEnvelope{
		Type:   gate.EnvelopeChatAction,
		ChatID: chatIDString(msg.PeerID),
		Action: action,
	}, true
}

func deleteEnvelope(chatID string, ids []int) gate.EventEnvelope {
	return gate.EventEnvelope{
		Type:       gate.EnvelopeMessageDeleted,
		ChatID:     chatID,
		DeletedIDs: ids,
	}
}
