package gate

import "time"

// EnvelopeType identifies the semantic category of a live feed envelope.
type EnvelopeType string

const (
	// EnvelopeNewMessage identifies newly received or sent messages.
	EnvelopeNewMessage EnvelopeType = "new_message"
	// EnvelopeMessageEdited identifies edited messages.
	EnvelopeMessageEdited EnvelopeType = "message_edited"
	// EnvelopeMessageDeleted identifies retracted messages.
	EnvelopeMessageDeleted EnvelopeType = "message_deleted"
	// EnvelopeChatAction identifies membership actions in a chat.
	EnvelopeChatAction EnvelopeType = "chat_action"
	// EnvelopeConnected is the acknowledgement handshake on subscribe.
	EnvelopeConnected EnvelopeType = "connected"
	// EnvelopePing is the idle keepalive envelope.
	EnvelopePing EnvelopeType = "ping"
)

// Chat actions carried by EnvelopeChatAction.
const (
	// ActionUserJoined marks a member joining the chat.
	ActionUserJoined = "user_joined"
	// ActionUserLeft marks a member leaving or being removed.
	ActionUserLeft = "user_left"
	// ActionUnknown marks membership actions without a finer mapping.
	ActionUnknown = "unknown"
)

// EventMessage is the minimal message projection pushed to subscribers.
type EventMessage struct {
	ID       int       `json:"id"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
	SenderID int64     `json:"sender_id,omitempty"`
	IsOut    bool      `json:"is_out"`
}

// EventEnvelope is the normalized record emitted for any provider-side
// change and for connection lifecycle signals.
type EventEnvelope struct {
	Type       EnvelopeType  `json:"type"`
	ChatID     string        `json:"chat_id,omitempty"`
	Message    *EventMessage `json:"message,omitempty"`
	DeletedIDs []int         `json:"deleted_ids,omitempty"`
	Action     string        `json:"action,omitempty"`
}
